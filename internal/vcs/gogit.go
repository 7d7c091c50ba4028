package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const (
	// abbrevLength is the length of the abbreviated commit hash in describe output.
	abbrevLength = 7
	// maxCandidates bounds the tags considered by Describe, like git's --candidates default.
	maxCandidates = 10
)

// GoGit implements Client with go-git.
type GoGit struct {
	opts Options
	// auth is resolved once from the environment; nil for anonymous access.
	auth transport.AuthMethod
}

// NewGoGit creates a go-git backed client.
func NewGoGit(opts Options) *GoGit {
	return &GoGit{
		opts: opts,
		auth: authFromEnv(),
	}
}

// Update pulls the current branch and fetches all tags.
func (g *GoGit) Update(ctx context.Context, dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree %s: %w", dir, err)
	}

	auth := g.authFor(remoteURL(repo))

	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName:        git.DefaultRemoteName,
		Auth:              auth,
		Progress:          g.progress(),
		RecurseSubmodules: g.submodules(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull %s: %w", dir, err)
	}

	// Pull follows the branch only; tags feed the version report.
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       auth,
		Progress:   g.progress(),
		Tags:       git.AllTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch tags %s: %w", dir, err)
	}

	return nil
}

// Clone creates a working copy of url in dir with all tags.
func (g *GoGit) Clone(ctx context.Context, url, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	_, statErr := os.Stat(dir)
	existed := statErr == nil

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:               url,
		Auth:              g.authFor(url),
		Progress:          g.progress(),
		Tags:              git.AllTags,
		Depth:             g.opts.Depth,
		RecurseSubmodules: g.submodules(),
	})
	if err != nil {
		// A half-written clone would be mistaken for a working copy next run.
		if !existed {
			_ = os.RemoveAll(dir)
		}

		return fmt.Errorf("clone %s: %w", url, err)
	}

	return nil
}

// Describe returns "<tag>" when HEAD is tagged and "<tag>-<n>-g<abbrev>" otherwise.
// n counts the commits reachable from HEAD but not from the tag. Among the first
// maxCandidates tagged commits met walking back from HEAD by committer time, the one
// with the smallest n wins, the earlier one on a tie, as "git describe --tags" does.
func (g *GoGit) Describe(ctx context.Context, dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("head %s: %w", dir, err)
	}

	tags, err := tagsByCommit(repo)
	if err != nil {
		return "", err
	}

	if len(tags) == 0 {
		return "", ErrNoTags
	}

	if name, ok := tags[head.Hash()]; ok {
		return name, nil
	}

	candidates, total, err := describeCandidates(ctx, repo, head.Hash(), tags)
	if err != nil {
		return "", fmt.Errorf("walk history %s: %w", dir, err)
	}

	if len(candidates) == 0 {
		return "", ErrNoTags
	}

	var (
		best     string
		distance = -1
	)

	for _, candidate := range candidates {
		reachable, countErr := countReachable(ctx, repo, candidate)
		if countErr != nil {
			return "", fmt.Errorf("walk history %s: %w", dir, countErr)
		}

		if n := total - reachable; distance < 0 || n < distance {
			best, distance = tags[candidate], n
		}
	}

	return fmt.Sprintf("%s-%d-g%s", best, distance, head.Hash().String()[:abbrevLength]), nil
}

// describeCandidates walks back from head by committer time and returns the first
// tagged commits in the order met, plus the number of commits reachable from head.
func describeCandidates(
	ctx context.Context,
	repo *git.Repository,
	head plumbing.Hash,
	tags map[plumbing.Hash]string,
) ([]plumbing.Hash, int, error) {
	commits, err := repo.Log(&git.LogOptions{
		From:  head,
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, 0, err
	}
	defer commits.Close()

	var (
		candidates []plumbing.Hash
		total      int
	)

	err = commits.ForEach(func(c *object.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		total++

		if _, ok := tags[c.Hash]; ok && len(candidates) < maxCandidates {
			candidates = append(candidates, c.Hash)
		}

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return candidates, total, nil
}

// countReachable returns the number of commits reachable from from, itself included.
func countReachable(ctx context.Context, repo *git.Repository, from plumbing.Hash) (int, error) {
	commits, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return 0, err
	}
	defer commits.Close()

	var count int

	err = commits.ForEach(func(*object.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		count++

		return nil
	})

	return count, err
}

// tagsByCommit maps every tagged commit to one tag name, preferring annotated tags
// and then the lexically greatest name so the choice is stable.
func tagsByCommit(repo *git.Repository) (map[plumbing.Hash]string, error) {
	type candidate struct {
		name      string
		annotated bool
	}

	refs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer refs.Close()

	byCommit := make(map[plumbing.Hash][]candidate)

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		target, annotated := ref.Hash(), false

		if tag, tagErr := repo.TagObject(ref.Hash()); tagErr == nil {
			commit, commitErr := tag.Commit()
			if commitErr != nil {
				// Tags of trees or blobs cannot be described.
				return nil //nolint:nilerr // Skip non-commit tags.
			}

			target, annotated = commit.Hash, true
		}

		byCommit[target] = append(byCommit[target], candidate{name: ref.Name().Short(), annotated: annotated})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}

	result := make(map[plumbing.Hash]string, len(byCommit))

	for hash, candidates := range byCommit {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].annotated != candidates[j].annotated {
				return candidates[i].annotated
			}

			return candidates[i].name > candidates[j].name
		})

		result[hash] = candidates[0].name
	}

	return result, nil
}

// remoteURL returns the first URL of the origin remote, if any.
func remoteURL(repo *git.Repository) string {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return ""
	}

	if urls := remote.Config().URLs; len(urls) > 0 {
		return urls[0]
	}

	return ""
}

// authFor returns the configured credentials for HTTP(S) remotes only;
// local and file remotes reject credentials.
//
//nolint:ireturn // go-git API takes the interface.
func (g *GoGit) authFor(url string) transport.AuthMethod {
	if g.auth == nil {
		return nil
	}

	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return g.auth
	}

	return nil
}

// progress returns the sideband writer when verbose output was requested.
func (g *GoGit) progress() io.Writer {
	if !g.opts.Verbose {
		return nil
	}

	if g.opts.Progress != nil {
		return g.opts.Progress
	}

	return os.Stdout
}

// submodules translates the boolean option to go-git's recursion depth.
func (g *GoGit) submodules() git.SubmoduleRescursivity {
	if g.opts.RecurseSubmodules {
		return git.DefaultSubmoduleRecursionDepth
	}

	return git.NoRecurseSubmodules
}

// authFromEnv picks a token from the environment for HTTPS remotes.
//
//nolint:ireturn // go-git API takes the interface.
func authFromEnv() transport.AuthMethod {
	tokens := []struct {
		env      string
		username string
	}{
		{env: "GITHUB_TOKEN", username: "x-access-token"},
		{env: "GITLAB_TOKEN", username: "gitlab-ci-token"},
		{env: "GIT_TOKEN", username: "git"},
	}

	for _, token := range tokens {
		if value := os.Getenv(token.env); value != "" {
			return &http.BasicAuth{
				Username: token.username,
				Password: value,
			}
		}
	}

	return nil
}
