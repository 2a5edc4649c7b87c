package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/danieljhkim/dotmirror/internal/gitx"
)

var (
	// ErrDirtyWorktree means the working tree has uncommitted changes.
	ErrDirtyWorktree = errors.New("worktree has uncommitted changes")

	// ErrWrongBranch means HEAD is not on the configured branch.
	ErrWrongBranch = errors.New("not on the configured branch")

	// ErrBehind means the private remote has commits the local branch lacks.
	ErrBehind = errors.New("local branch is behind the private remote")
)

// logLimit caps how many commits per side a divergence report lists.
const logLimit = 10

// DivergedError reports that the local branch and the private remote have
// both moved since their common ancestor. It carries a capped log of each
// side's unique commits so the user can see what forked.
type DivergedError struct {
	LocalHead  plumbing.Hash
	RemoteHead plumbing.Hash
	LocalOnly  []gitx.CommitSummary
	RemoteOnly []gitx.CommitSummary
}

func (e *DivergedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "local branch and private remote have diverged (local %s, remote %s)",
		shortHash(e.LocalHead), shortHash(e.RemoteHead))
	if len(e.LocalOnly) > 0 {
		b.WriteString("\n  only local:")
		for _, c := range e.LocalOnly {
			b.WriteString("\n    " + c.String())
		}
	}
	if len(e.RemoteOnly) > 0 {
		b.WriteString("\n  only remote:")
		for _, c := range e.RemoteOnly {
			b.WriteString("\n    " + c.String())
		}
	}
	return b.String()
}

func shortHash(h plumbing.Hash) string {
	return h.String()[:7]
}

// Request carries the options for a publish run.
type Request struct {
	// DryRun reports what would happen without pushing anything.
	DryRun bool
}

// Result describes what a publish run did. In dry-run mode the pushed flags
// report what a real run would have done.
type Result struct {
	Branch     string          `json:"branch"`
	Divergence gitx.Divergence `json:"divergence"`

	LocalHead    string `json:"local_head"`
	FilteredTree string `json:"filtered_tree"`
	PublicTip    string `json:"public_tip,omitempty"`
	Synthesized  string `json:"synthesized,omitempty"`

	PrivatePushed bool `json:"private_pushed"`
	PublicPushed  bool `json:"public_pushed"`
	NoOp          bool `json:"no_op"`
	DryRun        bool `json:"dry_run"`
}

// Status describes the repository's publishing state without changing it.
type Status struct {
	Branch     string          `json:"branch"`
	Clean      bool            `json:"clean"`
	Divergence gitx.Divergence `json:"divergence"`

	LocalHead string `json:"local_head"`
	PublicTip string `json:"public_tip,omitempty"`

	// PublicInSync is nil when the public tip's tree cannot be inspected
	// locally, true when it matches the filtered local tree.
	PublicInSync *bool `json:"public_in_sync,omitempty"`

	LocalOnly  []gitx.CommitSummary `json:"local_only,omitempty"`
	RemoteOnly []gitx.CommitSummary `json:"remote_only,omitempty"`
}
