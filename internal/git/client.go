package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Client defines the interface for git operations. The cache manager
// plans state transitions and calls through this boundary, which keeps
// the actual git invocations mockable in tests.
type Client interface {
	// Clone clones a repository into opts.Dir and returns the checked
	// out commit hash.
	Clone(ctx context.Context, opts CloneOptions) (string, error)

	// Refresh updates an existing clone in dir to the latest state of
	// ref via fetch, checkout, and hard reset, returning the new
	// commit hash.
	Refresh(ctx context.Context, dir, url, ref string, auth AuthOptions) (string, error)
}

// defaultClient implements Client using go-git.
type defaultClient struct{}

var _ Client = (*defaultClient)(nil)

// NewDefaultClient creates a go-git backed client.
func NewDefaultClient() Client {
	return &defaultClient{}
}

// Clone performs a shallow, branch-scoped clone. When the ref is not a
// branch it retries as a tag, and finally falls back to a depth-1
// default-branch clone plus an explicit fetch and checkout of the ref.
func (c *defaultClient) Clone(ctx context.Context, opts CloneOptions) (string, error) {
	auth, err := authMethod(opts.URL, opts.Auth)
	if err != nil {
		return "", err
	}

	if opts.Ref == "" {
		repo, err := git.PlainCloneContext(ctx, opts.Dir, false, &git.CloneOptions{
			URL:   opts.URL,
			Auth:  auth,
			Depth: 1,
		})
		if err != nil {
			return "", ClassifyError(opts.URL, opts.Ref, err)
		}
		return headCommit(repo)
	}

	// Branch-scoped first, then tag-scoped.
	for _, refName := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(opts.Ref),
		plumbing.NewTagReferenceName(opts.Ref),
	} {
		repo, err := git.PlainCloneContext(ctx, opts.Dir, false, &git.CloneOptions{
			URL:           opts.URL,
			Auth:          auth,
			Depth:         1,
			ReferenceName: refName,
			SingleBranch:  true,
		})
		if err == nil {
			return headCommit(repo)
		}
		if classified := ClassifyError(opts.URL, opts.Ref, err); !isRefMiss(classified) {
			return "", classified
		}
		removeContents(opts.Dir)
		slog.Debug("scoped clone missed, retrying", "url", opts.URL, "ref", refName.String())
	}

	// The ref is neither a branch nor a tag (a commit hash, usually).
	// Clone the default branch shallow, fetch the ref explicitly, and
	// check it out.
	repo, err := git.PlainCloneContext(ctx, opts.Dir, false, &git.CloneOptions{
		URL:   opts.URL,
		Auth:  auth,
		Depth: 1,
	})
	if err != nil {
		return "", ClassifyError(opts.URL, opts.Ref, err)
	}
	if err := fetchRef(ctx, repo, opts.Ref, auth); err != nil {
		return "", ClassifyError(opts.URL, opts.Ref, err)
	}
	if err := checkout(repo, opts.Ref); err != nil {
		return "", ClassifyError(opts.URL, opts.Ref, err)
	}
	return headCommit(repo)
}

// Refresh brings an existing clone up to date: fetch the ref, check it
// out, and hard-reset the worktree so local drift cannot survive.
func (c *defaultClient) Refresh(ctx context.Context, dir, url, ref string, authOpts AuthOptions) (string, error) {
	auth, err := authMethod(url, authOpts)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", ClassifyError(url, ref, err)
	}

	if err := fetchRef(ctx, repo, ref, auth); err != nil {
		return "", ClassifyError(url, ref, err)
	}
	if ref != "" {
		if err := checkout(repo, ref); err != nil {
			return "", ClassifyError(url, ref, err)
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", ClassifyError(url, ref, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", ClassifyError(url, ref, err)
	}
	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: head.Hash()}); err != nil {
		return "", ClassifyError(url, ref, err)
	}
	return head.Hash().String(), nil
}

func fetchRef(ctx context.Context, repo *git.Repository, ref string, auth transport.AuthMethod) error {
	specs := []config.RefSpec{
		"+refs/heads/*:refs/remotes/origin/*",
		"+refs/tags/*:refs/tags/*",
	}
	if ref != "" && plumbing.IsHash(ref) {
		specs = append(specs, config.RefSpec(fmt.Sprintf("+%s:%s", ref, ref)))
	}
	err := repo.FetchContext(ctx, &git.FetchOptions{
		Auth:     auth,
		RefSpecs: specs,
		Force:    true,
		Tags:     git.AllTags,
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	return err
}

// checkout resolves ref as a branch, tag, or raw hash and detaches the
// worktree onto it.
func checkout(repo *git.Repository, ref string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}
	hash, err := resolveRevision(repo, ref)
	if err != nil {
		return err
	}
	return worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true})
}

func resolveRevision(repo *git.Repository, ref string) (*plumbing.Hash, error) {
	for _, candidate := range []string{
		ref,
		"refs/remotes/origin/" + ref,
		"refs/tags/" + ref,
	} {
		if hash, err := repo.ResolveRevision(plumbing.Revision(candidate)); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("reference not found: %s", ref)
}

func headCommit(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func isRefMiss(err error) bool {
	var refErr *RefNotFoundError
	return errors.As(err, &refErr)
}

// removeContents clears a directory between clone attempts; go-git
// refuses to clone into a non-empty directory.
func removeContents(dir string) {
	_ = os.RemoveAll(dir)
	_ = os.MkdirAll(dir, 0o750)
}

func authMethod(url string, opts AuthOptions) (transport.AuthMethod, error) {
	if opts.Token != "" {
		// Token auth rewrites the credential into the HTTPS exchange.
		return &githttp.BasicAuth{Username: "x-access-token", Password: opts.Token}, nil
	}
	if opts.SSHKeyPath != "" {
		keys, err := gitssh.NewPublicKeysFromFile("git", opts.SSHKeyPath, "")
		if err != nil {
			return nil, &AuthError{URL: url, Cause: err}
		}
		return keys, nil
	}
	return nil, nil
}
