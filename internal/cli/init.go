package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/dotmirror/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .dotmirror/config in the repository",
	Long: `Initialize dotmirror for the current repository.

This writes .dotmirror/config at the repository root with the chosen
remotes and branch. Edit the file afterwards to add exclusions and
link/copy mappings. The config file is part of the repository and is
itself published.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initPrivate string
	initPublic  string
	initBranch  string
	initForce   bool
)

func init() {
	initCmd.Flags().StringVar(&initPrivate, "private", "origin", "Name of the private remote")
	initCmd.Flags().StringVar(&initPublic, "public", "mirror", "Name of the public remote")
	initCmd.Flags().StringVar(&initBranch, "branch", "main", "Branch to publish")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config")
}

func runInit(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	path := config.Path(repo.Root())
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config already exists at %s\nUse --force to overwrite", path)
	}

	cfg := &config.Config{
		PrivateRemote: initPrivate,
		PublicRemote:  initPublic,
		Branch:        initBranch,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(repo.Root()); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Wrote %s", path))
	fmt.Println()
	PrintInfo("Next steps:")
	fmt.Println("  1. Add exclusions:    echo 'exclude=secrets' >> " + path)
	fmt.Println("  2. Commit the config: git add " + config.Dir + " && git commit")
	fmt.Println("  3. Publish:           dotmirror publish")

	return nil
}
