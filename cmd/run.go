package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zjrosen/shellfw/internal/log"
	"github.com/zjrosen/shellfw/internal/shell"
)

var (
	runVariants []string

	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var runCmd = &cobra.Command{
	Use:   "run [command]",
	Short: "Run a command with variant fallback",
	Long: `Run a command against a persistent shell. Alternative spellings can be
supplied with repeated -c flags; they are tried in order and the first
one exiting zero wins.

Example:
  shellfw run "ip link"
  shellfw run -c "ip link" -c "busybox ip link" -c "toolbox ip link"`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runVariants, "command", "c", nil,
		"command variant to try, in order (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	variants := runVariants
	if len(variants) == 0 {
		if len(args) == 0 {
			return fmt.Errorf("no command given; pass one as an argument or with -c")
		}
		variants = []string{strings.Join(args, " ")}
	}

	sess, err := shell.NewSession(elevate, sessionOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	log.Debug(log.CatCLI, "running command", "variants", strings.Join(variants, " | "))

	res, err := sess.Execute(variants)
	if err != nil {
		return err
	}

	for _, line := range res.Output.Strings() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	for _, line := range res.Stderr {
		fmt.Fprintln(os.Stderr, dimStyle.Render(line))
	}

	if !res.Ok() {
		fmt.Fprintln(os.Stderr, failStyle.Render(
			fmt.Sprintf("all %d variant(s) failed, last exit code %d", len(variants), res.ExitCode)))
		return fmt.Errorf("command failed with exit code %d", res.ExitCode)
	}
	return nil
}
