package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/dotmirror/internal/deploy"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Place configured links and copies into the home directory",
	Long: `Deploy the repository's configuration files to their targets.

Link mappings become symlinks pointing into the repository; copy mappings
are copied out and kept in sync by content hash. An existing file at a link
target is a conflict and aborts the run unless --force is given.

Examples:
  # Deploy everything
  dotmirror deploy

  # See what would change
  dotmirror deploy --dry-run

  # Replace conflicting files
  dotmirror deploy --force`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

var (
	deployDryRun bool
	deployForce  bool
)

func init() {
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Show what would change without touching the filesystem")
	deployCmd.Flags().BoolVarP(&deployForce, "force", "f", false, "Replace conflicting files at link targets")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	deployer, err := newDeployer()
	if err != nil {
		return err
	}

	result, err := deployer.Deploy(deploy.Request{DryRun: deployDryRun, Force: deployForce})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	printActions(result)
	return nil
}

// printActions renders a deploy or collect result for humans.
func printActions(result *deploy.Result) {
	if result.DryRun {
		PrintInfo("Dry run - no changes made")
		PrintInfo("")
	}

	if len(result.Actions) == 0 {
		PrintDim("nothing to do")
		return
	}

	changed, skipped := 0, 0
	for _, a := range result.Actions {
		line := fmt.Sprintf("%-7s %s -> %s (%s)", a.Op, a.Source, a.Target, a.State)
		switch a.State {
		case deploy.StateSkipped:
			PrintDim(line)
			skipped++
		case deploy.StateUnchanged:
			PrintDim(line)
		default:
			PrintBullet(line)
			changed++
		}
	}

	if changed == 0 {
		PrintInfo("Everything already in place")
	} else if !result.DryRun {
		PrintSuccess(fmt.Sprintf("Applied %d change(s)", changed))
	}
	if skipped > 0 {
		PrintWarning(fmt.Sprintf("Skipped %d mapping(s) with missing targets", skipped))
	}
}
