package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmexec/internal/logging"
	"github.com/jbweber/vmexec/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags
var (
	logFormat    string
	verbose      bool
	outputFormat string
	noHeaders    bool
)

// logger is configured from the global flags before any command runs.
var logger = slog.Default()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmexec",
	Short: "vmexec - ephemeral QEMU/KVM instance launcher",
	Long: `vmexec launches short-lived virtual machines with QEMU and KVM.

Each launch creates a copy-on-write boot image from a read-only base image
and starts the hypervisor for the requested guest architecture. Nothing is
registered or persisted: the instance lives as long as its process.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := logging.ParseFormat(logFormat)
		if err != nil {
			return err
		}
		logger = logging.New(cmd.ErrOrStderr(), logging.Options{
			Format:    format,
			Verbose:   verbose,
			Subsystem: subsystem(cmd),
		})
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(archCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(imageCmd)
}

// subsystem names cmd by its path below the root, e.g. "image fetch".
func subsystem(cmd *cobra.Command) string {
	return strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")
}

// addOutputFlags registers -o and --no-headers on cmd.
func addOutputFlags(cmd *cobra.Command, def string) {
	cmd.Flags().StringVarP(&outputFormat, "output", "o", def, "Output format (table, yaml, json)")
	cmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
}

// newFormatter validates the output flags and returns the formatter.
func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}
