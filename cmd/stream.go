package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/shellfw/internal/log"
	"github.com/zjrosen/shellfw/internal/shell"
)

var streamCmd = &cobra.Command{
	Use:   "stream <command>",
	Short: "Stream a long-running command's output",
	Long: `Run one long-running command and print its output as it arrives.
Ctrl-C stops the command and its shell.

Example:
  shellfw stream "tail -f /var/log/syslog"`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

// printObserver writes stream output straight to the command's stdout.
type printObserver struct {
	cmd  *cobra.Command
	code int
	died bool
}

func (o *printObserver) OnStart()      {}
func (o *printObserver) OnLine(l string) { fmt.Fprintln(o.cmd.OutOrStdout(), l) }
func (o *printObserver) OnStop(code int) { o.code = code }
func (o *printObserver) OnDied()         { o.died = true }

func runStream(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")

	obs := &printObserver{cmd: cmd}
	stream, err := shell.NewStream(elevate, obs, sessionOptions()...)
	if err != nil {
		return err
	}

	if err := stream.Execute(command); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info(log.CatCLI, "interrupt received, stopping stream", "pid", stream.PID())
		stream.Stop()
		<-stream.Done()
	case <-stream.Done():
	}

	// The observer is only touched from the read goroutine, and Done()
	// orders its writes before these reads.
	if obs.died {
		return fmt.Errorf("command was terminated before reporting an exit code")
	}
	if obs.code != 0 {
		return fmt.Errorf("command exited with code %d", obs.code)
	}
	return nil
}
