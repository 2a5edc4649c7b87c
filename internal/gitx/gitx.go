// Package gitx provides git repository access for the publish pipeline.
//
// All object-store and remote operations go through the Repo interface. The
// real implementation is built on go-git plumbing (trees, commit objects, ref
// pushes) rather than worktree-level commands, so publishing never checks out,
// merges, or otherwise touches the working directory. The interface
// deliberately has no operation that fetches from an arbitrary remote into
// the worktree: the only fetch is the read-only branch fetch used for
// divergence checking against the private remote.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/danieljhkim/dotmirror/internal/filter"
)

var (
	// ErrNotARepository indicates the path is not inside a git repository.
	ErrNotARepository = errors.New("not a git repository")

	// ErrRemoteMissing indicates a configured remote does not exist in the
	// repository.
	ErrRemoteMissing = errors.New("remote not configured in repository")

	// ErrBranchMissing indicates the configured branch has no local ref.
	ErrBranchMissing = errors.New("branch not found")

	// ErrCommitNotLocal indicates a commit hash (typically a remote tip) has
	// no object in the local store.
	ErrCommitNotLocal = errors.New("commit object not present locally")
)

// Divergence classifies the relationship between the local branch head and
// the private remote's branch head.
type Divergence int

const (
	// DivergenceUnknown is the zero value, before any comparison ran.
	DivergenceUnknown Divergence = iota

	// UpToDate means both heads are the same commit.
	UpToDate

	// Ahead means the remote head is an ancestor of the local head.
	Ahead

	// Behind means the local head is an ancestor of the remote head.
	Behind

	// Diverged means neither head is an ancestor of the other.
	Diverged
)

// String returns the operator-facing name of the divergence state.
func (d Divergence) String() string {
	switch d {
	case UpToDate:
		return "up-to-date"
	case Ahead:
		return "ahead"
	case Behind:
		return "behind"
	case Diverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the divergence state as its string name.
func (d Divergence) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

// CommitSummary is a one-line description of a commit, used when surfacing
// diverged histories to the operator.
type CommitSummary struct {
	Hash  plumbing.Hash
	Title string
}

// String formats the summary as "<short-hash> <title>".
func (s CommitSummary) String() string {
	return fmt.Sprintf("%s %s", s.Hash.String()[:7], s.Title)
}

// summarize extracts a CommitSummary from a hash and full commit message.
func summarize(hash plumbing.Hash, message string) CommitSummary {
	title, _, _ := strings.Cut(message, "\n")
	return CommitSummary{Hash: hash, Title: strings.TrimSpace(title)}
}

// Repo provides the repository operations used by the publish pipeline.
type Repo interface {
	// Root returns the absolute path of the repository's working tree root.
	Root() string

	// IsClean reports whether the working tree has no uncommitted changes.
	IsClean() (bool, error)

	// HasRemote returns an error if the named remote is not configured.
	HasRemote(name string) error

	// CurrentBranch returns the branch HEAD points at.
	CurrentBranch() (string, error)

	// BranchHead resolves the local head of the given branch.
	BranchHead(branch string) (plumbing.Hash, error)

	// FetchBranch performs a read-only fetch of the branch from the remote,
	// updating only the remote-tracking ref. A branch that does not exist on
	// the remote is not an error.
	FetchBranch(ctx context.Context, remote, branch string) error

	// RemoteTrackingHead resolves refs/remotes/<remote>/<branch>.
	// Returns found=false if no tracking ref exists.
	RemoteTrackingHead(remote, branch string) (plumbing.Hash, bool, error)

	// Classify computes the divergence between two commits using their
	// merge base.
	Classify(local, remote plumbing.Hash) (Divergence, error)

	// UniqueCommits lists the commits reachable from each side but not from
	// their common ancestors, capped at limit per side.
	UniqueCommits(local, remote plumbing.Hash, limit int) (localOnly, remoteOnly []CommitSummary, err error)

	// PushBranch pushes the local branch verbatim to the remote.
	PushBranch(ctx context.Context, remote, branch string) error

	// FilteredTree builds a filtered copy of the commit's tree in the object
	// store and returns the new tree hash. Pure with respect to the working
	// directory and all refs.
	FilteredTree(commit plumbing.Hash, spec *filter.Spec) (plumbing.Hash, error)

	// LsRemoteHead resolves the remote's branch tip with a read-only ref
	// listing. No objects are transferred.
	LsRemoteHead(ctx context.Context, remote, branch string) (plumbing.Hash, bool, error)

	// TreeOf returns the tree hash of a commit. Returns ErrCommitNotLocal if
	// the commit object is not in the local store.
	TreeOf(commit plumbing.Hash) (plumbing.Hash, error)

	// CommitMessage returns the full message of a commit.
	CommitMessage(commit plumbing.Hash) (string, error)

	// SynthesizeCommit writes a new commit object wrapping the given tree.
	// A zero parent produces a parentless commit.
	SynthesizeCommit(tree, parent plumbing.Hash, message string) (plumbing.Hash, error)

	// PushCommit pushes a single commit to the remote branch ref as an atomic
	// update. When expectedOld is non-zero the update is rejected unless the
	// remote ref still points at it.
	PushCommit(ctx context.Context, remote, branch string, commit, expectedOld plumbing.Hash) error

	// SetRemoteTracking updates the local refs/remotes/<remote>/<branch> ref.
	SetRemoteTracking(remote, branch string, hash plumbing.Hash) error
}
