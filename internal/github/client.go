// Package github implements the release-list and pull-request metadata
// collaborators against the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/changelog-tools/chronicle/internal/changes"
	"github.com/changelog-tools/chronicle/internal/errors"
	"github.com/changelog-tools/chronicle/internal/release"
)

// DefaultBaseURL is the GitHub REST API endpoint.
const DefaultBaseURL = "https://api.github.com"

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 30 * time.Second

// pageSize is the page size used for list endpoints. Only the first page
// is ever requested: releases more than a page back are a documented
// limitation of the release source, not a bug to fix.
const pageSize = 100

// Client talks to the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (GitHub Enterprise, tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithToken sets the bearer token used for authentication.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a GitHub API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// releasePayload is the wire shape of one release list entry.
type releasePayload struct {
	Name       string `json:"name"`
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// pullRequestPayload is the wire shape of a pull request.
type pullRequestPayload struct {
	Number            int    `json:"number"`
	Title             string `json:"title"`
	Body              string `json:"body"`
	HTMLURL           string `json:"html_url"`
	MergeCommitSHA    string `json:"merge_commit_sha"`
	AuthorAssociation string `json:"author_association"`
	User              struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Base struct {
		Repo struct {
			Name  string `json:"name"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repo"`
	} `json:"base"`
}

func (p *pullRequestPayload) toInfo(owner, repo string) changes.PullRequestInfo {
	info := changes.PullRequestInfo{
		Number:         p.Number,
		Title:          p.Title,
		Body:           p.Body,
		URL:            p.HTMLURL,
		Author:         p.User.Login,
		AuthorRole:     p.AuthorAssociation,
		MergeCommitSHA: p.MergeCommitSHA,
		BaseOwner:      p.Base.Repo.Owner.Login,
		BaseRepo:       p.Base.Repo.Name,
	}
	if info.BaseOwner == "" {
		info.BaseOwner = owner
	}
	if info.BaseRepo == "" {
		info.BaseRepo = repo
	}
	for _, l := range p.Labels {
		info.Labels = append(info.Labels, l.Name)
	}
	return info
}

// ListReleases returns the repository's releases, newest first.
// Only the first page is fetched.
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]release.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, owner, repo, pageSize)

	var payload []releasePayload
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, errors.WrapWithMessage(err, errors.Transport,
			fmt.Sprintf("listing releases for %s/%s", owner, repo))
	}

	releases := make([]release.Release, 0, len(payload))
	for _, r := range payload {
		name := r.TagName
		if name == "" {
			name = r.Name
		}
		releases = append(releases, release.Release{Name: name, Prerelease: r.Prerelease})
	}
	return releases, nil
}

// GetPullRequest fetches a single pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (changes.PullRequestInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)

	var payload pullRequestPayload
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return changes.PullRequestInfo{}, errors.WrapWithMessage(err, errors.Transport,
			fmt.Sprintf("fetching pull request %s/%s#%d", owner, repo, number))
	}
	return payload.toInfo(owner, repo), nil
}

// ListClosedPullRequests returns the most recently updated closed pull
// requests, first page only. Used as a batch lookup before falling back
// to per-number fetches.
func (c *Client) ListClosedPullRequests(ctx context.Context, owner, repo string) ([]changes.PullRequestInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=closed&sort=updated&direction=desc&per_page=%d",
		c.baseURL, owner, repo, pageSize)

	var payload []pullRequestPayload
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, errors.WrapWithMessage(err, errors.Transport,
			fmt.Sprintf("listing closed pull requests for %s/%s", owner, repo))
	}

	infos := make([]changes.PullRequestInfo, 0, len(payload))
	for i := range payload {
		infos = append(infos, payload[i].toInfo(owner, repo))
	}
	return infos, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	logDebug("[github] GET %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
