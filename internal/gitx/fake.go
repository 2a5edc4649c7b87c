package gitx

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/danieljhkim/dotmirror/internal/filter"
)

// FakeRepo is a test double that tracks operations without touching a real
// repository or any remote.
type FakeRepo struct {
	// Configurable state
	RootDir        string
	Clean          bool
	Branch         string
	Remotes        map[string]bool
	Heads          map[string]plumbing.Hash           // branch -> local head
	TrackingHeads  map[string]plumbing.Hash           // "<remote>/<branch>" -> head
	RemoteHeads    map[string]plumbing.Hash           // "<remote>/<branch>" -> advertised tip
	Trees          map[plumbing.Hash]plumbing.Hash    // commit -> tree
	Messages       map[plumbing.Hash]string           // commit -> message
	Div            Divergence
	LocalOnly      []CommitSummary
	RemoteOnly     []CommitSummary
	FilteredHash   plumbing.Hash
	SynthesizedVal plumbing.Hash

	// Configurable errors
	IsCleanErr     error
	FetchErr       error
	PushBranchErr  error
	FilterErr      error
	LsRemoteErr    error
	PushCommitErr  error
	SetTrackingErr error

	// Recorded calls
	FetchCalls       []FetchCall
	PushBranchCalls  []PushBranchCall
	FilterCalls      []FilterCall
	LsRemoteCalls    []LsRemoteCall
	SynthesizeCalls  []SynthesizeCall
	PushCommitCalls  []PushCommitCall
	SetTrackingCalls []SetTrackingCall
}

type FetchCall struct {
	Remote string
	Branch string
}

type PushBranchCall struct {
	Remote string
	Branch string
}

type FilterCall struct {
	Commit plumbing.Hash
	Spec   *filter.Spec
}

type LsRemoteCall struct {
	Remote string
	Branch string
}

type SynthesizeCall struct {
	Tree    plumbing.Hash
	Parent  plumbing.Hash
	Message string
}

type PushCommitCall struct {
	Remote      string
	Branch      string
	Commit      plumbing.Hash
	ExpectedOld plumbing.Hash
}

type SetTrackingCall struct {
	Remote string
	Branch string
	Hash   plumbing.Hash
}

// NewFakeRepo creates a FakeRepo with a clean worktree and no remotes or
// branches configured.
func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		RootDir:       "/repo",
		Clean:         true,
		Remotes:       make(map[string]bool),
		Heads:         make(map[string]plumbing.Hash),
		TrackingHeads: make(map[string]plumbing.Hash),
		RemoteHeads:   make(map[string]plumbing.Hash),
		Trees:         make(map[plumbing.Hash]plumbing.Hash),
		Messages:      make(map[plumbing.Hash]string),
	}
}

func trackingKey(remote, branch string) string {
	return remote + "/" + branch
}

func (f *FakeRepo) Root() string {
	return f.RootDir
}

func (f *FakeRepo) IsClean() (bool, error) {
	return f.Clean, f.IsCleanErr
}

func (f *FakeRepo) HasRemote(name string) error {
	if !f.Remotes[name] {
		return fmt.Errorf("%w: %q", ErrRemoteMissing, name)
	}
	return nil
}

func (f *FakeRepo) CurrentBranch() (string, error) {
	if f.Branch == "" {
		return "", fmt.Errorf("HEAD is detached")
	}
	return f.Branch, nil
}

func (f *FakeRepo) BranchHead(branch string) (plumbing.Hash, error) {
	head, ok := f.Heads[branch]
	if !ok {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrBranchMissing, branch)
	}
	return head, nil
}

func (f *FakeRepo) FetchBranch(ctx context.Context, remote, branch string) error {
	f.FetchCalls = append(f.FetchCalls, FetchCall{Remote: remote, Branch: branch})
	if f.FetchErr != nil {
		return f.FetchErr
	}
	// A real fetch refreshes the tracking ref from the remote's state.
	if head, ok := f.RemoteHeads[trackingKey(remote, branch)]; ok {
		f.TrackingHeads[trackingKey(remote, branch)] = head
	}
	return nil
}

func (f *FakeRepo) RemoteTrackingHead(remote, branch string) (plumbing.Hash, bool, error) {
	head, ok := f.TrackingHeads[trackingKey(remote, branch)]
	return head, ok, nil
}

func (f *FakeRepo) Classify(local, remote plumbing.Hash) (Divergence, error) {
	if local == remote {
		return UpToDate, nil
	}
	return f.Div, nil
}

func (f *FakeRepo) UniqueCommits(local, remote plumbing.Hash, limit int) ([]CommitSummary, []CommitSummary, error) {
	return f.LocalOnly, f.RemoteOnly, nil
}

func (f *FakeRepo) PushBranch(ctx context.Context, remote, branch string) error {
	f.PushBranchCalls = append(f.PushBranchCalls, PushBranchCall{Remote: remote, Branch: branch})
	if f.PushBranchErr != nil {
		return f.PushBranchErr
	}
	// A successful push advances the remote to the local head.
	if head, ok := f.Heads[branch]; ok {
		f.RemoteHeads[trackingKey(remote, branch)] = head
		f.TrackingHeads[trackingKey(remote, branch)] = head
	}
	return nil
}

func (f *FakeRepo) FilteredTree(commit plumbing.Hash, spec *filter.Spec) (plumbing.Hash, error) {
	f.FilterCalls = append(f.FilterCalls, FilterCall{Commit: commit, Spec: spec})
	if f.FilterErr != nil {
		return plumbing.ZeroHash, f.FilterErr
	}
	return f.FilteredHash, nil
}

func (f *FakeRepo) LsRemoteHead(ctx context.Context, remote, branch string) (plumbing.Hash, bool, error) {
	f.LsRemoteCalls = append(f.LsRemoteCalls, LsRemoteCall{Remote: remote, Branch: branch})
	if f.LsRemoteErr != nil {
		return plumbing.ZeroHash, false, f.LsRemoteErr
	}
	head, ok := f.RemoteHeads[trackingKey(remote, branch)]
	return head, ok, nil
}

func (f *FakeRepo) TreeOf(commit plumbing.Hash) (plumbing.Hash, error) {
	tree, ok := f.Trees[commit]
	if !ok {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrCommitNotLocal, commit)
	}
	return tree, nil
}

func (f *FakeRepo) CommitMessage(commit plumbing.Hash) (string, error) {
	msg, ok := f.Messages[commit]
	if !ok {
		return "", fmt.Errorf("no message for commit %s", commit)
	}
	return msg, nil
}

func (f *FakeRepo) SynthesizeCommit(tree, parent plumbing.Hash, message string) (plumbing.Hash, error) {
	f.SynthesizeCalls = append(f.SynthesizeCalls, SynthesizeCall{Tree: tree, Parent: parent, Message: message})
	synth := f.SynthesizedVal
	if synth.IsZero() {
		synth = plumbing.ComputeHash(plumbing.CommitObject, []byte(tree.String()+parent.String()+message))
	}
	f.Trees[synth] = tree
	f.Messages[synth] = message
	return synth, nil
}

func (f *FakeRepo) PushCommit(ctx context.Context, remote, branch string, commit, expectedOld plumbing.Hash) error {
	f.PushCommitCalls = append(f.PushCommitCalls, PushCommitCall{
		Remote:      remote,
		Branch:      branch,
		Commit:      commit,
		ExpectedOld: expectedOld,
	})
	if f.PushCommitErr != nil {
		return f.PushCommitErr
	}
	f.RemoteHeads[trackingKey(remote, branch)] = commit
	return nil
}

func (f *FakeRepo) SetRemoteTracking(remote, branch string, hash plumbing.Hash) error {
	f.SetTrackingCalls = append(f.SetTrackingCalls, SetTrackingCall{Remote: remote, Branch: branch, Hash: hash})
	if f.SetTrackingErr != nil {
		return f.SetTrackingErr
	}
	f.TrackingHeads[trackingKey(remote, branch)] = hash
	return nil
}
