package gitx

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/danieljhkim/dotmirror/internal/clock"
	"github.com/danieljhkim/dotmirror/internal/filter"
)

// Fallback signature when the repository has no user.name/user.email.
const (
	defaultSignatureName  = "dotmirror"
	defaultSignatureEmail = "dotmirror@localhost"
)

// RealRepo implements Repo over a go-git repository.
type RealRepo struct {
	repo *gogit.Repository
	root string
	clk  clock.Clock

	sigName  string
	sigEmail string
}

// Open opens the repository containing path, walking up to find the .git
// directory, and resolves the commit signature from the repository's git
// config.
func Open(path string, clk clock.Clock) (*RealRepo, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	r := &RealRepo{
		repo:     repo,
		root:     wt.Filesystem.Root(),
		clk:      clk,
		sigName:  defaultSignatureName,
		sigEmail: defaultSignatureEmail,
	}

	if cfg, err := repo.ConfigScoped(gitcfg.SystemScope); err == nil {
		if cfg.User.Name != "" {
			r.sigName = cfg.User.Name
		}
		if cfg.User.Email != "" {
			r.sigEmail = cfg.User.Email
		}
	}

	return r, nil
}

// Root returns the absolute path of the working tree root.
func (r *RealRepo) Root() string {
	return r.root
}

// IsClean reports whether the working tree has no uncommitted changes.
func (r *RealRepo) IsClean() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to compute worktree status: %w", err)
	}
	return status.IsClean(), nil
}

// HasRemote returns an error if the named remote is not configured.
func (r *RealRepo) HasRemote(name string) error {
	if _, err := r.repo.Remote(name); err != nil {
		if errors.Is(err, gogit.ErrRemoteNotFound) {
			return fmt.Errorf("%w: %q", ErrRemoteMissing, name)
		}
		return fmt.Errorf("failed to look up remote %q: %w", name, err)
	}
	return nil
}

// CurrentBranch returns the branch HEAD points at.
func (r *RealRepo) CurrentBranch() (string, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("HEAD is detached")
	}
	return head.Target().Short(), nil
}

// BranchHead resolves the local head of the given branch.
func (r *RealRepo) BranchHead(branch string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrBranchMissing, branch)
		}
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve branch %q: %w", branch, err)
	}
	return ref.Hash(), nil
}

// FetchBranch performs a read-only fetch of the branch from the remote,
// updating only refs/remotes/<remote>/<branch>. A branch missing on the
// remote is not an error; it shows up as a missing tracking ref.
func (r *RealRepo) FetchBranch(ctx context.Context, remote, branch string) error {
	refspec := gitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch))
	err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []gitcfg.RefSpec{refspec},
		Tags:       gogit.NoTags,
	})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return nil
	}

	var noMatch gogit.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return nil
	}

	return fmt.Errorf("failed to fetch %q from remote %q: %w", branch, remote, err)
}

// RemoteTrackingHead resolves refs/remotes/<remote>/<branch>.
func (r *RealRepo) RemoteTrackingHead(remote, branch string) (plumbing.Hash, bool, error) {
	ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("failed to resolve tracking ref for %s/%s: %w", remote, branch, err)
	}
	return ref.Hash(), true, nil
}

// Classify computes the divergence between two commits via their merge base.
func (r *RealRepo) Classify(local, remote plumbing.Hash) (Divergence, error) {
	if local == remote {
		return UpToDate, nil
	}

	localCommit, err := r.repo.CommitObject(local)
	if err != nil {
		return DivergenceUnknown, fmt.Errorf("failed to read local commit %s: %w", local, err)
	}
	remoteCommit, err := r.repo.CommitObject(remote)
	if err != nil {
		return DivergenceUnknown, fmt.Errorf("failed to read remote commit %s: %w", remote, err)
	}

	bases, err := localCommit.MergeBase(remoteCommit)
	if err != nil {
		return DivergenceUnknown, fmt.Errorf("failed to compute merge base: %w", err)
	}

	for _, base := range bases {
		if base.Hash == remote {
			return Ahead, nil
		}
		if base.Hash == local {
			return Behind, nil
		}
	}
	return Diverged, nil
}

// UniqueCommits lists commits reachable from each side but not from their
// common ancestors, capped at limit per side.
func (r *RealRepo) UniqueCommits(local, remote plumbing.Hash, limit int) ([]CommitSummary, []CommitSummary, error) {
	localCommit, err := r.repo.CommitObject(local)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read local commit %s: %w", local, err)
	}
	remoteCommit, err := r.repo.CommitObject(remote)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read remote commit %s: %w", remote, err)
	}

	bases, err := localCommit.MergeBase(remoteCommit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute merge base: %w", err)
	}

	ignore := make([]plumbing.Hash, 0, len(bases))
	for _, base := range bases {
		ignore = append(ignore, base.Hash)
	}

	localOnly, err := r.collectCommits(localCommit, ignore, limit)
	if err != nil {
		return nil, nil, err
	}
	remoteOnly, err := r.collectCommits(remoteCommit, ignore, limit)
	if err != nil {
		return nil, nil, err
	}
	return localOnly, remoteOnly, nil
}

// collectCommits walks history from a tip, skipping the ignored commits and
// their ancestors, and stops after limit commits.
func (r *RealRepo) collectCommits(tip *object.Commit, ignore []plumbing.Hash, limit int) ([]CommitSummary, error) {
	var out []CommitSummary
	iter := object.NewCommitPreorderIter(tip, nil, ignore)
	err := iter.ForEach(func(c *object.Commit) error {
		out = append(out, summarize(c.Hash, c.Message))
		if limit > 0 && len(out) >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history from %s: %w", tip.Hash, err)
	}
	return out, nil
}

// PushBranch pushes the local branch verbatim to the remote.
func (r *RealRepo) PushBranch(ctx context.Context, remote, branch string) error {
	refspec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitcfg.RefSpec{refspec},
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %q to remote %q: %w", branch, remote, err)
	}
	return nil
}

// FilteredTree builds a filtered copy of the commit's tree in the object
// store and returns the new tree hash.
func (r *RealRepo) FilteredTree(commit plumbing.Hash, spec *filter.Spec) (plumbing.Hash, error) {
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read commit %s: %w", commit, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read tree of commit %s: %w", commit, err)
	}
	return filter.Apply(r.repo.Storer, tree, spec)
}

// LsRemoteHead resolves the remote's branch tip with a read-only ref listing.
func (r *RealRepo) LsRemoteHead(ctx context.Context, remote, branch string) (plumbing.Hash, bool, error) {
	rem, err := r.repo.Remote(remote)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to look up remote %q: %w", remote, err)
	}

	refs, err := rem.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("failed to list refs of remote %q: %w", remote, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash(), true, nil
		}
	}
	return plumbing.ZeroHash, false, nil
}

// TreeOf returns the tree hash of a commit.
func (r *RealRepo) TreeOf(commit plumbing.Hash) (plumbing.Hash, error) {
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrCommitNotLocal, commit)
		}
		return plumbing.ZeroHash, fmt.Errorf("failed to read commit %s: %w", commit, err)
	}
	return c.TreeHash, nil
}

// CommitMessage returns the full message of a commit.
func (r *RealRepo) CommitMessage(commit plumbing.Hash) (string, error) {
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return "", fmt.Errorf("failed to read commit %s: %w", commit, err)
	}
	return c.Message, nil
}

// SynthesizeCommit writes a new commit object wrapping the given tree.
func (r *RealRepo) SynthesizeCommit(tree, parent plumbing.Hash, message string) (plumbing.Hash, error) {
	now := r.clk.Now()
	sig := object.Signature{
		Name:  r.sigName,
		Email: r.sigEmail,
		When:  now,
	}

	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  tree,
	}
	if !parent.IsZero() {
		commit.ParentHashes = []plumbing.Hash{parent}
	}

	eo := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(eo); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(eo)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}
	return hash, nil
}

// PushCommit pushes a single commit to the remote branch ref. When
// expectedOld is non-zero the remote must still point at it for the update to
// be accepted.
//
// The refspec is forced because a non-forced push runs a local ancestry walk
// that needs the old tip's commit object, which is absent when the tip is
// only known from a ref listing. Safety comes from the RequireRemoteRefs
// guard instead, and the update is fast-forward by construction: the pushed
// commit's parent is exactly the guarded old tip.
func (r *RealRepo) PushCommit(ctx context.Context, remote, branch string, commit, expectedOld plumbing.Hash) error {
	opts := &gogit.PushOptions{
		RemoteName: remote,
		RefSpecs: []gitcfg.RefSpec{
			gitcfg.RefSpec(fmt.Sprintf("+%s:refs/heads/%s", commit, branch)),
		},
	}
	if !expectedOld.IsZero() {
		opts.RequireRemoteRefs = []gitcfg.RefSpec{
			gitcfg.RefSpec(fmt.Sprintf("%s:refs/heads/%s", expectedOld, branch)),
		}
	}

	err := r.repo.PushContext(ctx, opts)
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push commit %s to %q on remote %q: %w", commit, branch, remote, err)
	}
	return nil
}

// SetRemoteTracking updates the local refs/remotes/<remote>/<branch> ref.
func (r *RealRepo) SetRemoteTracking(remote, branch string, hash plumbing.Hash) error {
	name := plumbing.NewRemoteReferenceName(remote, branch)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(name, hash)); err != nil {
		return fmt.Errorf("failed to update tracking ref %s: %w", name, err)
	}
	return nil
}
