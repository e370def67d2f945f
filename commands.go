package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"apartment-scraper/metrics"
	"apartment-scraper/models"
	"apartment-scraper/services"
	"apartment-scraper/storage"
)

func runLoop(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	printBanner(a)

	if err := a.store.Migrate(ctx); err != nil {
		a.logger.Error("[main] Schema setup failed: %v", err)
		return err
	}

	orchestrator, n := a.pipeline()

	if a.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, a.cfg.MetricsAddr, prometheus.DefaultGatherer, a.logger); err != nil {
				a.logger.Error("[main] Metrics server stopped: %v", err)
			}
		}()
	}

	if responder := n.Responder(a.cfg.PredefinedText); responder != nil {
		go responder.Run(ctx)
	}

	runner := services.NewRunner(orchestrator, a.cfg.CheckInterval, a.metrics, a.logger)
	runner.Run(ctx)

	a.logger.Info("[main] Shutdown complete")
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	printBanner(a)

	if err := a.store.Migrate(ctx); err != nil {
		return err
	}

	orchestrator, _ := a.pipeline()
	_, cycleErr := orchestrator.RunCycle(ctx)

	if report := orchestrator.LastReport(); report != nil {
		report.Write(os.Stdout)
	}
	return cycleErr
}

func migrate(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Migrate(cmd.Context()); err != nil {
		a.logger.Error("[main] Migration failed: %v", err)
		return err
	}
	a.logger.Info("[main] Table listings is ready")
	return nil
}

func listListings(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	csvPath, _ := cmd.Flags().GetString("csv")

	switch models.Status(status) {
	case "", models.StatusNew, models.StatusSuitable, models.StatusError:
	default:
		return usageError("unknown status %q", status)
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	listings, err := a.store.List(cmd.Context(), models.Status(status), limit)
	if err != nil {
		return err
	}

	if csvPath != "-" {
		renderListings(listings)
	}

	if csvPath != "" {
		if err := exportListings(csvPath, listings); err != nil {
			return err
		}
		if csvPath != "-" {
			a.logger.Info("[main] Exported %d listings to %s", len(listings), csvPath)
		}
	}
	return nil
}

func exportListings(path string, listings []models.PersistedListing) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteListings(listings); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func renderListings(listings []models.PersistedListing) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Status", "Price", "Size", "Rooms", "Location", "Created", "URL"})

	for _, l := range listings {
		t.AppendRow(table.Row{
			l.ListingID,
			l.Status,
			optional(l.Price, "%.0f €"),
			optional(l.Size, "%.1f m²"),
			optional(l.Rooms, "%.1f"),
			l.Location,
			l.CreatedAt.Format("2006-01-02 15:04"),
			l.URL,
		})
	}
	t.AppendFooter(table.Row{"Total", len(listings)})
	t.Render()
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
