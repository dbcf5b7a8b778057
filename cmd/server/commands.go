package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/api"
	"github.com/simmonsmd7/inkflow-sub000/commission"
	"github.com/simmonsmd7/inkflow-sub000/report"
)

// =============================================================================
// SERVE
// =============================================================================

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(store, a.logger, a.studioDefaults())

	scheduler := api.NewSettlementScheduler(store, handler.Periods, a.cfg.Settlement.Interval, a.logger)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      api.NewRouter(handler, a.cfg.Server.CORSOrigins),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", server.Addr), zap.String("database", a.cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// =============================================================================
// SETTLE
// =============================================================================

func newSettleCommand(a *app) *cobra.Command {
	var studio, asOf string

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Assign unassigned commissions to pay periods by schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now()
			if asOf != "" {
				d, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
				date = d
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			periods := commission.NewPeriodManager(store, a.logger)
			periods.Defaults = a.studioDefaults()
			result, err := periods.Settle(cmd.Context(), commission.StudioID(studio), date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settled %s as of %s: %d commissions assigned to %d periods (%d created)\n",
				result.StudioID, result.AsOf.Format(time.DateOnly), result.Assigned, len(result.Periods), len(result.Created))
			for _, id := range result.Skipped {
				fmt.Fprintf(out, "  skipped %s: covering period is not open\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&studio, "studio", "", "Studio ID")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Settle rows completed on or before this date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("studio")
	return cmd
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(a *app) *cobra.Command {
	var period string
	var csv bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a pay period's ledger rows and per-artist totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			periods := commission.NewPeriodManager(store, a.logger)
			p, err := periods.Get(ctx, commission.PeriodID(period))
			if err != nil {
				return err
			}
			rows, err := store.CommissionsForPeriod(ctx, p.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if csv {
				return report.Commissions(out, rows, report.CSV)
			}
			if err := report.Periods(out, []commission.PayPeriod{p}, report.Table); err != nil {
				return err
			}
			if err := report.Commissions(out, rows, report.Table); err != nil {
				return err
			}
			return report.Breakdown(out, commission.BreakdownByArtist(rows), report.Table)
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Pay period ID")
	cmd.Flags().BoolVar(&csv, "csv", false, "Write CSV instead of tables")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

// =============================================================================
// SEED
// =============================================================================

func newSeedCommand(a *app) *cobra.Command {
	var scenario, studio string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo scenario into a studio",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			handler := api.NewHandler(store, a.logger, a.studioDefaults())
			result, err := handler.Seed(cmd.Context(), scenario, commission.StudioID(studio))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s into %s: %d rules, %d commissions, %d periods\n",
				result.ScenarioID, result.StudioID, len(result.Rules), result.Commissions, len(result.Periods))
			return nil
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "house-split", "Scenario ID (house-split, volume-tiers, walk-in-flat)")
	cmd.Flags().StringVar(&studio, "studio", "", "Studio ID (default demo-<scenario>)")
	return cmd
}
