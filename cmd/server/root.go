package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/commission"
	"github.com/simmonsmd7/inkflow-sub000/config"
	"github.com/simmonsmd7/inkflow-sub000/logging"
	"github.com/simmonsmd7/inkflow-sub000/store/sqlite"
)

// app carries what every command needs once configuration is loaded.
type app struct {
	configFile string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "inkflow-ledger",
		Short:         "Studio commission ledger and pay period settlement",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newSettleCommand(a))
	rootCmd.AddCommand(newExportCommand(a))
	rootCmd.AddCommand(newSeedCommand(a))

	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load(".", a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func (a *app) openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.Database.Path, err)
	}
	return store, nil
}

// studioDefaults turns the settlement section into engine defaults.
// Config.Validate already rejected bad values.
func (a *app) studioDefaults() commission.SettingsDefaults {
	return func(studioID commission.StudioID) commission.StudioSettings {
		s, err := a.cfg.Settlement.StudioDefaults(studioID)
		if err != nil {
			return commission.DefaultStudioSettings(studioID)
		}
		return s
	}
}
