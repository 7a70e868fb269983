package github

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/changelog-tools/chronicle/internal/changes"
	"github.com/changelog-tools/chronicle/internal/errors"
)

// fetchConcurrency bounds the parallel per-number fallback fetches.
// The graph walk itself stays strictly sequential; this parallelism is
// internal to a single batch lookup.
const fetchConcurrency = 5

// MergeRef names one pull request observed in a revision walk, together
// with the merge commit that introduced it.
type MergeRef struct {
	Number     int
	CommitHash string
}

// FetchPullRequests resolves metadata for every referenced pull request.
// The batch closed-PR listing is consulted first; numbers it misses are
// fetched individually. A pull request whose recorded merge commit does
// not match the one observed in the revision walk is discarded, guarding
// against force-pushed history producing a stale match. Any number that
// cannot be resolved at all is a transport failure: the caller never
// receives partial results.
func (c *Client) FetchPullRequests(ctx context.Context, owner, repo string, refs []MergeRef) ([]changes.PullRequestInfo, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	listed, err := c.ListClosedPullRequests(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[int]changes.PullRequestInfo, len(listed))
	for _, pr := range listed {
		byNumber[pr.Number] = pr
	}

	resolved := make(map[int]changes.PullRequestInfo, len(refs))
	var missing []MergeRef
	for _, ref := range refs {
		if pr, ok := byNumber[ref.Number]; ok {
			resolved[ref.Number] = pr
		} else {
			missing = append(missing, ref)
		}
	}

	if len(missing) > 0 {
		fetched, err := c.fetchIndividually(ctx, owner, repo, missing)
		if err != nil {
			return nil, err
		}
		for number, pr := range fetched {
			resolved[number] = pr
		}
	}

	var result []changes.PullRequestInfo
	for _, ref := range refs {
		pr, ok := resolved[ref.Number]
		if !ok {
			return nil, errors.NewTransportError(
				fmt.Sprintf("pull request %s/%s#%d could not be resolved", owner, repo, ref.Number))
		}
		if pr.MergeCommitSHA != ref.CommitHash {
			// Stale metadata from rewritten history; drop it.
			continue
		}
		result = append(result, pr)
	}
	return result, nil
}

// fetchIndividually fetches the given refs with bounded parallelism.
func (c *Client) fetchIndividually(ctx context.Context, owner, repo string, refs []MergeRef) (map[int]changes.PullRequestInfo, error) {
	var mu sync.Mutex
	fetched := make(map[int]changes.PullRequestInfo, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			pr, err := c.GetPullRequest(gctx, owner, repo, ref.Number)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[ref.Number] = pr
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}
