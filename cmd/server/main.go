package main

import (
	"fmt"
	"os"

	"github.com/Abraxas-365/multistore/pkg/config"
	"github.com/Abraxas-365/multistore/pkg/logx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "multistore"

// app carries what every command needs after PersistentPreRunE
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Multi-store e-commerce server with per-tenant data isolation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logx.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newTenantsCmd(a))
	return root
}

// container builds the dependency container for a command
func (a *app) container() (*Container, error) {
	return NewContainer(a.cfg, a.logger)
}
