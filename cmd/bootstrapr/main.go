package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// UpFlags holds flags for the up command
type UpFlags struct {
	ConfigPath string
	LockPath   string
	LogLevel   string
	NoColor    bool
}

// ValidateFlags holds flags for the validate command
type ValidateFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	upFlags := &UpFlags{}
	validateFlags := &ValidateFlags{}

	root := &cobra.Command{
		Use:   "bootstrapr",
		Short: "Container bootstrap and supervision tool",
		Long: `Bootstrapr brings up a container's interdependent local services in
order: each stateful dependency is started in bootstrap mode, polled until
ready, provisioned idempotently, and stopped. Control then passes to an
embedded supervisor that keeps the full process table running until the
container is asked to shut down.

Examples:
  bootstrapr up --config=/etc/bootstrapr/bootstrapr.toml
  bootstrapr validate --config=./bootstrapr.toml`,
	}

	root.AddCommand(
		createUpCommand(upFlags),
		createValidateCommand(validateFlags),
		createVersionCommand(),
	)
	return root
}

func createUpCommand(flags *UpFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bootstrap all dependencies and supervise the process table",
		Long: `Up runs the whole sequence as the container's main process: dependency
bootstrap, application initialization, then supervision. It blocks until
SIGINT or SIGTERM and exits non-zero when the bootstrap fails.

Examples:
  bootstrapr up --config=/etc/bootstrapr/bootstrapr.toml
  bootstrapr up --config=./bootstrapr.toml --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(flags)
		},
	}

	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (required)")
	cmd.Flags().StringVar(&flags.LockPath, "lock", "", "lock file path (default <state_dir>/bootstrap.lock)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "disable colored log output")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

func createValidateCommand(flags *ValidateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file without starting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (required)")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bootstrapr version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("bootstrapr %s\n", version)
		},
	}
}
