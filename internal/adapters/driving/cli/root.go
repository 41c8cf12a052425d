// Package cli provides the ragchat command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// annotationStandalone marks commands that run without application services.
const annotationStandalone = "standalone"

// Services is what the commands need from the application.
type Services interface {
	shell.Services
	Settings() *domain.Settings
	ConfigPath() string
	Close() error
}

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	Verbose    bool
	ConfigDir  string
	Store      string
	Collection string
	Provider   string
}

// BootstrapFunc builds the application services from the global flags.
type BootstrapFunc func(flags GlobalFlags) (Services, error)

var (
	globalFlags GlobalFlags
	bootstrap   BootstrapFunc

	// services is built on first use by a command, or injected by tests.
	services     Services
	ownsServices bool
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Ask questions about your PDF documents",
	Long: `ragchat indexes PDF documents into a vector store and answers questions
using only their content, citing the file and page of every source.

Ingest documents with 'ragchat ingest', then ask with 'ragchat ask' or start
an interactive session with 'ragchat chat'.

Configuration is read from flags, the environment (and a .env file),
~/.ragchat/config.toml and built-in defaults, in that order.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "show debug logs and timings")
	pf.StringVar(&globalFlags.ConfigDir, "config-dir", "", "configuration directory (default ~/.ragchat)")
	pf.StringVar(&globalFlags.Store, "store", "", "vector store backend: sqlite, postgres or memory")
	pf.StringVar(&globalFlags.Collection, "collection", "", "collection name")
	pf.StringVar(&globalFlags.Provider, "provider", "", "AI provider: google or openai")
}

// SetBootstrap sets the function that builds the application services.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(globalFlags.Verbose)

	if cmd.Annotations[annotationStandalone] != "" || services != nil {
		return nil
	}
	if bootstrap == nil {
		return errors.New("application is not configured")
	}

	svc, err := bootstrap(globalFlags)
	if err != nil {
		return err
	}
	services, ownsServices = svc, true
	return nil
}

func closeServices() {
	if services == nil || !ownsServices {
		return
	}
	if err := services.Close(); err != nil {
		logger.Warn("Closing: %v", err)
	}
	services, ownsServices = nil, false
}

// commandContext returns the command context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// describedError prints as a one-line message and unwraps to the cause.
type describedError struct {
	err error
}

func (e describedError) Error() string { return shell.Describe(e.err) }

func (e describedError) Unwrap() error { return e.err }

func describe(err error) error {
	if err == nil {
		return nil
	}
	return describedError{err: err}
}
