package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/dotmirror/internal/gitx"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show divergence against both remotes",
	Long: `Show the publishing state of the configured branch.

Fetches the private remote, classifies the local branch against it, and
checks whether the public mirror's tip still matches the filtered tree.
Nothing is pushed.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	publisher, _, err := newPublisher()
	if err != nil {
		return err
	}

	st, err := publisher.Check(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(st)
	}

	PrintLabelValue("Branch", st.Branch)
	PrintLabelValue("Local head", st.LocalHead)

	if st.Clean {
		PrintLabelValue("Worktree", "clean")
	} else {
		PrintLabelValueWithColor("Worktree", "dirty", warningColor)
	}

	switch st.Divergence {
	case gitx.UpToDate:
		PrintLabelValue("Private remote", "up to date")
	case gitx.Ahead:
		PrintLabelValueWithColor("Private remote", fmt.Sprintf("ahead by %d commit(s)", len(st.LocalOnly)), infoColor)
	case gitx.Behind:
		PrintLabelValueWithColor("Private remote", fmt.Sprintf("behind by %d commit(s)", len(st.RemoteOnly)), warningColor)
	case gitx.Diverged:
		PrintLabelValueWithColor("Private remote", "diverged", errorColor)
	}

	for _, c := range st.LocalOnly {
		PrintBullet("local: " + c.String())
	}
	for _, c := range st.RemoteOnly {
		PrintBullet("remote: " + c.String())
	}

	switch {
	case st.PublicInSync == nil:
		PrintDim("Public mirror: tip " + st.PublicTip + " (cannot inspect locally)")
	case *st.PublicInSync:
		PrintLabelValue("Public mirror", "in sync")
	case st.PublicTip == "":
		PrintLabelValueWithColor("Public mirror", "not yet published", warningColor)
	default:
		PrintLabelValueWithColor("Public mirror", "stale", warningColor)
	}

	return nil
}
