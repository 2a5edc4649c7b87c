// Package config loads the per-repository dotmirror configuration.
//
// The configuration lives at .dotmirror/config inside the repository and is a
// plain key=value file. Keys may repeat where noted; comments (#) and blank
// lines are ignored. The format is fixed, so parsing is done by hand rather
// than through a general-purpose configuration library.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Dir is the repository-relative directory holding dotmirror state.
	Dir = ".dotmirror"

	// FileName is the name of the config file inside Dir.
	FileName = "config"
)

var (
	// ErrNotConfigured indicates no config file exists for the repository.
	ErrNotConfigured = errors.New("dotmirror not configured")

	// ErrInvalidConfig indicates the config file is malformed or incomplete.
	ErrInvalidConfig = errors.New("invalid config")
)

// Mapping pairs a repository-relative source path with a deploy target path.
type Mapping struct {
	// Source is the path inside the repository.
	Source string

	// Target is the filesystem path the source is deployed to.
	// A leading ~/ is expanded to the user's home directory at load time.
	Target string
}

// Config is the per-repository dotmirror configuration.
type Config struct {
	// PrivateRemote is the remote that receives full, unfiltered pushes.
	PrivateRemote string

	// PublicRemote is the remote that receives synthesized filtered commits.
	// It is never fetched from.
	PublicRemote string

	// Branch is the branch being published.
	Branch string

	// Excludes lists literal repository paths removed from the public tree,
	// in file order.
	Excludes []string

	// ExcludeGlobs lists glob patterns removed from the public tree,
	// in file order.
	ExcludeGlobs []string

	// Links lists symlink deploy mappings (repo path -> target).
	Links []Mapping

	// Copies lists copy deploy mappings (repo path -> target).
	Copies []Mapping
}

// Path returns the config file path for a repository root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, FileName)
}

// Load reads and parses the config for the given repository root.
func Load(repoRoot string) (*Config, error) {
	f, err := os.Open(Path(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cfg, err := Parse(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses config content from a reader. It does not validate that
// required keys are present; use Validate for that.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %d: expected key=value, got %q", ErrInvalidConfig, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("%w: line %d: empty value for key %q", ErrInvalidConfig, lineNo, key)
		}

		switch key {
		case "private_remote":
			cfg.PrivateRemote = value
		case "public_remote":
			cfg.PublicRemote = value
		case "branch":
			cfg.Branch = value
		case "exclude":
			cfg.Excludes = append(cfg.Excludes, value)
		case "exclude_glob":
			cfg.ExcludeGlobs = append(cfg.ExcludeGlobs, value)
		case "link":
			m, err := parseMapping(value)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidConfig, lineNo, err)
			}
			cfg.Links = append(cfg.Links, m)
		case "copy":
			m, err := parseMapping(value)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidConfig, lineNo, err)
			}
			cfg.Copies = append(cfg.Copies, m)
		default:
			return nil, fmt.Errorf("%w: line %d: unknown key %q", ErrInvalidConfig, lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return cfg, nil
}

// parseMapping parses "<source> <target>" deploy mapping values.
func parseMapping(value string) (Mapping, error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return Mapping{}, fmt.Errorf("expected %q, got %q", "<source> <target>", value)
	}

	target := fields[1]
	if target == "~" || strings.HasPrefix(target, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Mapping{}, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		target = filepath.Join(home, strings.TrimPrefix(target, "~"))
	}

	return Mapping{Source: fields[0], Target: target}, nil
}

// Validate checks that all required keys are present.
func (c *Config) Validate() error {
	var missing []string
	if c.PrivateRemote == "" {
		missing = append(missing, "private_remote")
	}
	if c.PublicRemote == "" {
		missing = append(missing, "public_remote")
	}
	if c.Branch == "" {
		missing = append(missing, "branch")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if c.PrivateRemote == c.PublicRemote {
		return fmt.Errorf("%w: private_remote and public_remote must differ", ErrInvalidConfig)
	}
	return nil
}

// Save writes the config to the repository's .dotmirror/config file.
func (c *Config) Save(repoRoot string) error {
	if err := os.MkdirAll(filepath.Join(repoRoot, Dir), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "private_remote=%s\n", c.PrivateRemote)
	fmt.Fprintf(&b, "public_remote=%s\n", c.PublicRemote)
	fmt.Fprintf(&b, "branch=%s\n", c.Branch)
	for _, e := range c.Excludes {
		fmt.Fprintf(&b, "exclude=%s\n", e)
	}
	for _, g := range c.ExcludeGlobs {
		fmt.Fprintf(&b, "exclude_glob=%s\n", g)
	}
	for _, m := range c.Links {
		fmt.Fprintf(&b, "link=%s %s\n", m.Source, m.Target)
	}
	for _, m := range c.Copies {
		fmt.Fprintf(&b, "copy=%s %s\n", m.Source, m.Target)
	}

	if err := os.WriteFile(Path(repoRoot), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
