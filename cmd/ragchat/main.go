// Command ragchat answers questions about PDF documents from a vector store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragchat/internal/app"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(func(flags cli.GlobalFlags) (cli.Services, error) {
		return app.New(app.Options{
			ConfigDir: flags.ConfigDir,
			Overrides: file.Overrides{
				Store:      flags.Store,
				Collection: flags.Collection,
				Provider:   flags.Provider,
			},
		})
	})

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
