// Package deploy places configuration files from the repository into the
// home directory and collects drifted copies back. Link mappings become
// symlinks into the repository; copy mappings are materialized files kept in
// sync by content hash.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/dotmirror/internal/config"
	"github.com/danieljhkim/dotmirror/internal/fsops"
	"github.com/danieljhkim/dotmirror/internal/hash"
)

var (
	// ErrConflict means a deploy target exists and is not what dotmirror
	// would have put there. Force replaces it.
	ErrConflict = errors.New("deploy target conflicts with existing file")

	// ErrSourceMissing means a mapping's source is absent from the
	// repository.
	ErrSourceMissing = errors.New("mapping source missing from repository")
)

// Op is the kind of work an Action describes.
type Op string

const (
	OpLink    Op = "link"
	OpCopy    Op = "copy"
	OpCollect Op = "collect"
)

// State is the outcome of an Action.
type State string

const (
	StateCreated   State = "created"
	StateUpdated   State = "updated"
	StateReplaced  State = "replaced"
	StateUnchanged State = "unchanged"
	StateSkipped   State = "skipped"
)

// Action records one mapping's outcome.
type Action struct {
	Op     Op     `json:"op"`
	Source string `json:"source"`
	Target string `json:"target"`
	State  State  `json:"state"`
}

// Request carries the options for a deploy or collect run.
type Request struct {
	// DryRun reports what would happen without touching the filesystem.
	DryRun bool

	// Force replaces conflicting deploy targets instead of failing.
	Force bool
}

// Result lists what a run did, in mapping order.
type Result struct {
	Actions []Action `json:"actions"`
	DryRun  bool     `json:"dry_run"`
}

// Deployer applies a configuration's mappings against the filesystem.
type Deployer struct {
	fs       fsops.FS
	hasher   hash.Hasher
	repoRoot string
	cfg      *config.Config
}

func New(fs fsops.FS, hasher hash.Hasher, repoRoot string, cfg *config.Config) *Deployer {
	return &Deployer{fs: fs, hasher: hasher, repoRoot: repoRoot, cfg: cfg}
}

// Deploy materializes every link and copy mapping.
func (d *Deployer) Deploy(req Request) (*Result, error) {
	res := &Result{DryRun: req.DryRun}

	for _, m := range d.cfg.Links {
		action, err := d.deployLink(m, req)
		if err != nil {
			return nil, err
		}
		res.Actions = append(res.Actions, action)
	}
	for _, m := range d.cfg.Copies {
		action, err := d.deployCopy(m, req)
		if err != nil {
			return nil, err
		}
		res.Actions = append(res.Actions, action)
	}
	return res, nil
}

// Collect copies drifted deploy targets back into the repository. Only copy
// mappings participate; edits behind a symlink already land in the
// repository.
func (d *Deployer) Collect(req Request) (*Result, error) {
	res := &Result{DryRun: req.DryRun}

	for _, m := range d.cfg.Copies {
		action, err := d.collectCopy(m, req)
		if err != nil {
			return nil, err
		}
		res.Actions = append(res.Actions, action)
	}
	return res, nil
}

func (d *Deployer) sourcePath(m config.Mapping) (string, error) {
	if err := d.fs.ValidateRelPath(m.Source); err != nil {
		return "", err
	}
	src := filepath.Join(d.repoRoot, m.Source)
	exists, err := d.fs.Exists(src)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, m.Source)
	}
	return src, nil
}

func (d *Deployer) deployLink(m config.Mapping, req Request) (Action, error) {
	action := Action{Op: OpLink, Source: m.Source, Target: m.Target}

	src, err := d.sourcePath(m)
	if err != nil {
		return action, err
	}

	info, err := d.fs.Lstat(m.Target)
	switch {
	case err != nil && os.IsNotExist(err):
		action.State = StateCreated
	case err != nil:
		return action, fmt.Errorf("failed to inspect %s: %w", m.Target, err)
	case info.Mode()&os.ModeSymlink != 0:
		dest, err := d.fs.Readlink(m.Target)
		if err != nil {
			return action, fmt.Errorf("failed to read link %s: %w", m.Target, err)
		}
		if dest == src {
			action.State = StateUnchanged
			return action, nil
		}
		if !req.Force {
			return action, fmt.Errorf("%w: %s is a link to %s", ErrConflict, m.Target, dest)
		}
		action.State = StateReplaced
	default:
		if !req.Force {
			return action, fmt.Errorf("%w: %s", ErrConflict, m.Target)
		}
		action.State = StateReplaced
	}

	if req.DryRun {
		return action, nil
	}

	if action.State == StateReplaced {
		// A stale symlink comes off with a plain remove; anything else at
		// the target may be a directory.
		remove := d.fs.RemoveAll
		if info.Mode()&os.ModeSymlink != 0 {
			remove = d.fs.Remove
		}
		if err := remove(m.Target); err != nil {
			return action, fmt.Errorf("failed to remove %s: %w", m.Target, err)
		}
	}
	if err := d.fs.MkdirAll(filepath.Dir(m.Target), 0755); err != nil {
		return action, fmt.Errorf("failed to create parent of %s: %w", m.Target, err)
	}
	if err := d.fs.Symlink(src, m.Target); err != nil {
		return action, fmt.Errorf("failed to link %s: %w", m.Target, err)
	}
	return action, nil
}

func (d *Deployer) deployCopy(m config.Mapping, req Request) (Action, error) {
	action := Action{Op: OpCopy, Source: m.Source, Target: m.Target}

	src, err := d.sourcePath(m)
	if err != nil {
		return action, err
	}

	exists, err := d.fs.Exists(m.Target)
	if err != nil {
		return action, err
	}
	if exists {
		same, err := d.sameContent(src, m.Target)
		if err != nil {
			return action, err
		}
		if same {
			action.State = StateUnchanged
			return action, nil
		}
		action.State = StateUpdated
	} else {
		action.State = StateCreated
	}

	if req.DryRun {
		return action, nil
	}

	data, err := d.fs.ReadFile(src)
	if err != nil {
		return action, fmt.Errorf("failed to read %s: %w", m.Source, err)
	}
	info, err := d.fs.Lstat(src)
	if err != nil {
		return action, fmt.Errorf("failed to inspect %s: %w", m.Source, err)
	}
	if err := d.fs.AtomicWrite(m.Target, data, info.Mode().Perm()); err != nil {
		return action, fmt.Errorf("failed to copy %s to %s: %w", m.Source, m.Target, err)
	}
	return action, nil
}

func (d *Deployer) collectCopy(m config.Mapping, req Request) (Action, error) {
	action := Action{Op: OpCollect, Source: m.Source, Target: m.Target}

	if err := d.fs.ValidateRelPath(m.Source); err != nil {
		return action, err
	}

	exists, err := d.fs.Exists(m.Target)
	if err != nil {
		return action, err
	}
	if !exists {
		action.State = StateSkipped
		return action, nil
	}

	src := filepath.Join(d.repoRoot, m.Source)
	srcExists, err := d.fs.Exists(src)
	if err != nil {
		return action, err
	}
	if srcExists {
		same, err := d.sameContent(src, m.Target)
		if err != nil {
			return action, err
		}
		if same {
			action.State = StateUnchanged
			return action, nil
		}
		action.State = StateUpdated
	} else {
		action.State = StateCreated
	}

	if req.DryRun {
		return action, nil
	}

	if err := d.fs.Copy(m.Target, src); err != nil {
		return action, fmt.Errorf("failed to collect %s into %s: %w", m.Target, m.Source, err)
	}
	return action, nil
}

func (d *Deployer) sameContent(a, b string) (bool, error) {
	ha, err := d.hasher.HashFile(a)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", a, err)
	}
	hb, err := d.hasher.HashFile(b)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", b, err)
	}
	return ha == hb, nil
}
