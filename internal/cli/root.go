// Package cli provides the command-line interface for tinyimage.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/version"
)

var (
	// Global flags
	cfgFile string
	apiKey  string
	debug   bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Commands lists the subcommand names, so main can tell a CLI invocation
// from a GUI launch with file arguments.
var Commands = []string{"compress", "config", "context-menu", "version", "completion", "help"}

// NewRootCmd creates the root command for CLI mode.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tinyimage",
		Short: "TinyImage - compress PNG, JPEG and WebP images with TinyPNG",
		Long: `TinyImage ` + version.Version + ` - Built: ` + version.BuildTime + `
Compress images through the TinyPNG API from the command line.

Run without a subcommand to open the desktop app. Files passed to the
desktop app with --compress are compressed in the background without
showing a window.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			logging.ConfigureLevel(debug)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Settings file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "TinyPNG API key (overrides settings)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI with args (argv without the program path).
func Execute(args []string) error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C does not kill the process mid-write
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCompressCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newContextMenuCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// settingsPath returns --config or the per-user default.
func settingsPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultSettingsPath()
}

// loadSettings loads settings and applies --api-key.
func loadSettings() (*config.Settings, string, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, "", err
	}
	s, err := config.Load(path)
	if err != nil {
		GetLogger().Warn().Err(err).Str("path", path).Msg("Failed to load settings, using defaults")
	}
	if apiKey != "" {
		s.APIKey = apiKey
	}
	return s, path, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TinyImage %s (built %s)\n", version.Version, version.BuildTime)
		},
	}
}
