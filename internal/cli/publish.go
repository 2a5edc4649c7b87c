package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/dotmirror/internal/gitx"
	"github.com/danieljhkim/dotmirror/internal/lock"
	"github.com/danieljhkim/dotmirror/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push to the private remote and refresh the public mirror",
	Long: `Publish the configured branch to both remotes.

The private remote receives the branch exactly as it is. The public remote
receives a single synthesized commit wrapping the filtered tree, with the
excluded files stripped out. If the public tree already matches, nothing is
pushed there.

Publishing refuses to run when the worktree is dirty, when HEAD is not on
the configured branch, or when the private remote has commits the local
branch lacks.

Examples:
  # Publish to both remotes
  dotmirror publish

  # See what would happen without pushing
  dotmirror publish --dry-run`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

var publishDryRun bool

func init() {
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "Show what would be pushed without actually pushing")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	publisher, repoRoot, err := newPublisher()
	if err != nil {
		return err
	}

	l, err := lock.Acquire(repoRoot)
	if err != nil {
		return err
	}
	defer l.Release()

	result, err := publisher.Run(ctx, publish.Request{DryRun: publishDryRun})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	if result.DryRun {
		PrintInfo("Dry run - no changes made")
		PrintInfo("")
	}

	PrintLabelValue("Branch", result.Branch)
	PrintLabelValue("Local head", result.LocalHead)

	switch {
	case result.Divergence == gitx.UpToDate:
		PrintInfo("  Private remote already up to date")
	case result.DryRun:
		PrintInfo("  Would push branch to private remote")
	case result.PrivatePushed:
		PrintSuccess("Pushed branch to private remote")
	}

	switch {
	case result.NoOp:
		PrintInfo("  Public mirror already matches the filtered tree")
	case result.DryRun:
		PrintInfo(fmt.Sprintf("  Would publish filtered tree %s", result.FilteredTree))
	default:
		PrintSuccess(fmt.Sprintf("Published %s to public mirror", result.Synthesized))
	}

	return nil
}
