// Package main is the entry point of revisionctl, the diagnostics CLI for the
// autosave revision store.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogotex/gogotex/backend/autosave/internal/bootstrap"
	"github.com/gogotex/gogotex/backend/autosave/internal/config"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/service"
	"github.com/gogotex/gogotex/backend/autosave/pkg/logger"
)

// opener returns the revision service commands operate on and a function
// releasing it.
type opener func(ctx context.Context) (*service.Service, func(), error)

// openConfigured opens the backend selected by the environment, the same way
// the server does.
func openConfigured(ctx context.Context) (*service.Service, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	client := bootstrap.NewRedisClient(ctx, cfg)
	backend, closeBackend, err := bootstrap.OpenBackend(cfg, client)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}
	svc, err := bootstrap.NewRevisionService(cfg, backend, nil)
	if err != nil {
		closeBackend()
		return nil, nil, err
	}
	return svc, func() {
		svc.Stop()
		closeBackend()
		if client != nil {
			_ = client.Close()
		}
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	var output string
	root := &cobra.Command{
		Use:          "revisionctl",
		Short:        "Inspect and repair the autosave revision store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format: json or yaml (default table)")

	outputFormat := func() string { return output }
	root.AddCommand(
		newListCommand(open, outputFormat),
		newSummariesCommand(open, outputFormat),
		newShowCommand(open, outputFormat),
		newRemoveCommand(open),
		newClearCommand(open),
		newReconcileCommand(open, outputFormat),
	)
	return root
}

// withService opens the store for the duration of fn.
func withService(cmd *cobra.Command, open opener, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := newRootCmd(openConfigured).Execute(); err != nil {
		os.Exit(1)
	}
}
