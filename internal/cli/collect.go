package cli

import (
	"github.com/spf13/cobra"

	"github.com/danieljhkim/dotmirror/internal/deploy"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Copy drifted files from the home directory back into the repository",
	Long: `Collect edits made to deployed copies back into the repository.

Only copy mappings participate: a target whose content differs from its
repository source is copied back. Symlinked files need no collection since
edits through the link already land in the repository.

Examples:
  # Collect drifted copies
  dotmirror collect

  # See what would flow back
  dotmirror collect --dry-run`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

var collectDryRun bool

func init() {
	collectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "Show what would flow back without copying")
}

func runCollect(cmd *cobra.Command, args []string) error {
	deployer, err := newDeployer()
	if err != nil {
		return err
	}

	result, err := deployer.Collect(deploy.Request{DryRun: collectDryRun})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	printActions(result)
	return nil
}
