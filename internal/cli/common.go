package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danieljhkim/dotmirror/internal/clock"
	"github.com/danieljhkim/dotmirror/internal/config"
	"github.com/danieljhkim/dotmirror/internal/deploy"
	"github.com/danieljhkim/dotmirror/internal/fsops"
	"github.com/danieljhkim/dotmirror/internal/gitx"
	"github.com/danieljhkim/dotmirror/internal/hash"
	"github.com/danieljhkim/dotmirror/internal/publish"
)

// openRepo opens the git repository containing the working directory.
func openRepo() (*gitx.RealRepo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	repo, err := gitx.Open(cwd, &clock.RealClock{})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// newPublisher builds a Publisher for the repository containing the working
// directory, returning the repository root alongside it.
func newPublisher() (*publish.Publisher, string, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(repo.Root())
	if err != nil {
		return nil, "", err
	}
	return publish.New(repo, cfg), repo.Root(), nil
}

// newDeployer builds a Deployer with real filesystem implementations.
func newDeployer() (*deploy.Deployer, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(repo.Root())
	if err != nil {
		return nil, err
	}
	return deploy.New(fsops.NewRealFS(), hash.NewSHA256Hasher(), repo.Root(), cfg), nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
