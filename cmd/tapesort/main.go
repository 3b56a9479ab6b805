// Tapesort sorts files of newline-separated 32-bit integers that do not fit
// in memory, using a handful of temporary tape files.
//
// Usage:
//
//	tapesort sort [--strategy polyphase] [--tapes 3] [--chunk 1048576] FILE
//	tapesort gen --count 1000000 --seed 7 FILE
//	tapesort verify FILE
//	tapesort schedule --runs 100 --tapes 4
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds state shared by the subcommands of one invocation.
type app struct {
	out     io.Writer
	verbose bool
	logger  *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tapesort",
		Short:         "External sort of integer files over temporary tapes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			a.logger = logger
			return nil
		},
	}
	root.SetOut(a.out)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log per-pass progress")

	root.AddCommand(
		newSortCmd(a),
		newGenCmd(a),
		newVerifyCmd(a),
		newScheduleCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{out: os.Stdout}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tapesort:", err)
		os.Exit(1)
	}
}
