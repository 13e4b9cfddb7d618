package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/shellfw/internal/shell"
	"github.com/zjrosen/shellfw/internal/toolbox"
)

var whichCmd = &cobra.Command{
	Use:   "which <name>...",
	Short: "Locate binaries through the shell and its toolboxes",
	Long: `Resolve each name to an executable path, trying the plain shell first
and then each known toolbox wrapper (busybox, toolbox).

Example:
  shellfw which ip grep mount`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runWhich,
}

func init() {
	rootCmd.AddCommand(whichCmd)
}

func runWhich(cmd *cobra.Command, args []string) error {
	sess, err := shell.NewSession(elevate, sessionOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	locator := toolbox.NewLocator(sess, cfg.LocatorTTL)

	missing := 0
	for _, name := range args {
		path, err := locator.Find(cmd.Context(), name)
		if err != nil {
			missing++
			fmt.Fprintln(os.Stderr, failStyle.Render(fmt.Sprintf("%s: not found", name)))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}

	if missing > 0 {
		return fmt.Errorf("%d name(s) could not be resolved", missing)
	}
	return nil
}
