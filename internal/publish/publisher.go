// Package publish implements the dual-remote publishing pipeline: the
// private remote receives the branch verbatim, the public remote receives
// synthesized commits wrapping a filtered tree. The public remote is never
// fetched from; its tip is only observed through a ref listing.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/danieljhkim/dotmirror/internal/config"
	"github.com/danieljhkim/dotmirror/internal/filter"
	"github.com/danieljhkim/dotmirror/internal/gitx"
)

// Publisher runs the publishing pipeline against one repository.
type Publisher struct {
	repo gitx.Repo
	cfg  *config.Config
}

func New(repo gitx.Repo, cfg *config.Config) *Publisher {
	return &Publisher{repo: repo, cfg: cfg}
}

func (p *Publisher) spec() *filter.Spec {
	return &filter.Spec{Literals: p.cfg.Excludes, Globs: p.cfg.ExcludeGlobs}
}

// Run executes one publish: verify preconditions, sync the private remote,
// filter the tree, and synthesize a commit onto the public remote. Nothing
// is pushed anywhere until every precondition has passed.
func (p *Publisher) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Branch: p.cfg.Branch, DryRun: req.DryRun}

	localHead, err := p.preflight()
	if err != nil {
		return nil, err
	}
	res.LocalHead = localHead.String()

	div, trackingHead, err := p.syncPrivate(ctx, localHead)
	if err != nil {
		return nil, err
	}
	res.Divergence = div

	switch div {
	case gitx.Behind:
		return nil, fmt.Errorf("%w: remote is at %s", ErrBehind, shortHash(trackingHead))
	case gitx.Diverged:
		localOnly, remoteOnly, err := p.repo.UniqueCommits(localHead, trackingHead, logLimit)
		if err != nil {
			return nil, err
		}
		return nil, &DivergedError{
			LocalHead:  localHead,
			RemoteHead: trackingHead,
			LocalOnly:  localOnly,
			RemoteOnly: remoteOnly,
		}
	case gitx.Ahead:
		res.PrivatePushed = true
		if !req.DryRun {
			if err := p.repo.PushBranch(ctx, p.cfg.PrivateRemote, p.cfg.Branch); err != nil {
				return nil, err
			}
		}
	}

	filtered, err := p.repo.FilteredTree(localHead, p.spec())
	if err != nil {
		return nil, err
	}
	res.FilteredTree = filtered.String()

	publicTip, tipFound, err := p.repo.LsRemoteHead(ctx, p.cfg.PublicRemote, p.cfg.Branch)
	if err != nil {
		return nil, err
	}
	if tipFound {
		res.PublicTip = publicTip.String()

		inSync, err := p.publicTreeMatches(publicTip, filtered)
		if err != nil {
			return nil, err
		}
		if inSync {
			res.NoOp = true
			return res, nil
		}
	}

	res.PublicPushed = true
	if req.DryRun {
		return res, nil
	}

	message, err := p.repo.CommitMessage(localHead)
	if err != nil {
		return nil, err
	}

	// The synthesized commit chains onto the observed public tip, whether or
	// not that commit's objects are present locally. The tip hash doubles as
	// the compare-and-swap guard on the push.
	parent := plumbing.ZeroHash
	if tipFound {
		parent = publicTip
	}

	synth, err := p.repo.SynthesizeCommit(filtered, parent, message)
	if err != nil {
		return nil, err
	}
	res.Synthesized = synth.String()

	if err := p.repo.PushCommit(ctx, p.cfg.PublicRemote, p.cfg.Branch, synth, parent); err != nil {
		return nil, err
	}
	if err := p.repo.SetRemoteTracking(p.cfg.PublicRemote, p.cfg.Branch, synth); err != nil {
		return nil, err
	}
	return res, nil
}

// Check reports the publishing state without pushing anything. The private
// remote is still fetched so the divergence reflects its current tip.
func (p *Publisher) Check(ctx context.Context) (*Status, error) {
	st := &Status{Branch: p.cfg.Branch}

	clean, err := p.repo.IsClean()
	if err != nil {
		return nil, err
	}
	st.Clean = clean

	if err := p.repo.HasRemote(p.cfg.PrivateRemote); err != nil {
		return nil, err
	}
	if err := p.repo.HasRemote(p.cfg.PublicRemote); err != nil {
		return nil, err
	}

	localHead, err := p.repo.BranchHead(p.cfg.Branch)
	if err != nil {
		return nil, err
	}
	st.LocalHead = localHead.String()

	div, trackingHead, err := p.syncPrivate(ctx, localHead)
	if err != nil {
		return nil, err
	}
	st.Divergence = div

	if div != gitx.UpToDate && div != gitx.DivergenceUnknown && trackingHead != plumbing.ZeroHash {
		st.LocalOnly, st.RemoteOnly, err = p.repo.UniqueCommits(localHead, trackingHead, logLimit)
		if err != nil {
			return nil, err
		}
	}

	filtered, err := p.repo.FilteredTree(localHead, p.spec())
	if err != nil {
		return nil, err
	}

	publicTip, tipFound, err := p.repo.LsRemoteHead(ctx, p.cfg.PublicRemote, p.cfg.Branch)
	if err != nil {
		return nil, err
	}
	if tipFound {
		st.PublicTip = publicTip.String()

		tipTree, err := p.repo.TreeOf(publicTip)
		switch {
		case err == nil:
			inSync := tipTree == filtered
			st.PublicInSync = &inSync
		case !errors.Is(err, gitx.ErrCommitNotLocal):
			return nil, err
		}
	} else {
		inSync := false
		st.PublicInSync = &inSync
	}

	return st, nil
}

// preflight verifies the worktree, branch and remotes, returning the local
// head to publish.
func (p *Publisher) preflight() (plumbing.Hash, error) {
	clean, err := p.repo.IsClean()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !clean {
		return plumbing.ZeroHash, ErrDirtyWorktree
	}

	branch, err := p.repo.CurrentBranch()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if branch != p.cfg.Branch {
		return plumbing.ZeroHash, fmt.Errorf("%w: on %q, configured branch is %q", ErrWrongBranch, branch, p.cfg.Branch)
	}

	if err := p.repo.HasRemote(p.cfg.PrivateRemote); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := p.repo.HasRemote(p.cfg.PublicRemote); err != nil {
		return plumbing.ZeroHash, err
	}

	return p.repo.BranchHead(p.cfg.Branch)
}

// syncPrivate fetches the private remote's branch and classifies the local
// head against it. A branch absent from the remote counts as ahead: the
// first publish creates it.
func (p *Publisher) syncPrivate(ctx context.Context, localHead plumbing.Hash) (gitx.Divergence, plumbing.Hash, error) {
	if err := p.repo.FetchBranch(ctx, p.cfg.PrivateRemote, p.cfg.Branch); err != nil {
		return gitx.DivergenceUnknown, plumbing.ZeroHash, err
	}

	trackingHead, found, err := p.repo.RemoteTrackingHead(p.cfg.PrivateRemote, p.cfg.Branch)
	if err != nil {
		return gitx.DivergenceUnknown, plumbing.ZeroHash, err
	}
	if !found {
		return gitx.Ahead, plumbing.ZeroHash, nil
	}

	div, err := p.repo.Classify(localHead, trackingHead)
	if err != nil {
		return gitx.DivergenceUnknown, plumbing.ZeroHash, err
	}
	return div, trackingHead, nil
}

// publicTreeMatches reports whether the public tip's tree equals the filtered
// tree. A tip whose objects are not present locally cannot be compared and
// counts as out of sync.
func (p *Publisher) publicTreeMatches(publicTip, filtered plumbing.Hash) (bool, error) {
	tipTree, err := p.repo.TreeOf(publicTip)
	if err != nil {
		if errors.Is(err, gitx.ErrCommitNotLocal) {
			return false, nil
		}
		return false, err
	}
	return tipTree == filtered, nil
}
