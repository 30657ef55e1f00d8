package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/app"
	"github.com/k9trials/ringsync/internal/store"
)

// GSheetExporter publishes a show's final placements to the club's
// spreadsheet on a cron schedule.
type GSheetExporter struct {
	store         store.TrialStore
	sheetsService *sheets.Service
	cfg           app.SheetConfig
}

// StartExporters schedules one exporter per configured sheet and starts
// the scheduler asynchronously.
func StartExporters(config *app.Config, trialStore store.TrialStore) (*gocron.Scheduler, error) {
	ctx := context.Background()
	scheduler := gocron.NewScheduler(time.UTC)

	for _, cfg := range config.Export.Sheets {
		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets service: %w", err)
		}

		exporter := &GSheetExporter{
			store:         trialStore,
			sheetsService: svc,
			cfg:           cfg,
		}

		if _, err := scheduler.Cron(cfg.Schedule).Do(func() {
			if err := exporter.Export(); err != nil {
				logger.Error.Printf("Export for %s failed: %v", exporter.cfg.LicenseKey, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule export: %w", err)
		}
	}

	scheduler.StartAsync()
	return scheduler, nil
}

// Export writes one row per placed entry, grouped by trial and class.
func (e *GSheetExporter) Export() error {
	show, err := e.store.GetShowByLicense(e.cfg.LicenseKey)
	if err != nil {
		return err
	}
	if show == nil {
		return fmt.Errorf("no local show for license %s", e.cfg.LicenseKey)
	}

	rows := [][]interface{}{
		{"Trial", "Class", "Judge", "Armband", "Call Name", "Handler", "Result", "Placement"},
	}

	trials, err := e.store.ListTrials(show.ID)
	if err != nil {
		return err
	}
	for _, trial := range trials {
		trialLabel := fmt.Sprintf("%s #%d", trial.TrialDate, trial.TrialNumber)

		classes, err := e.store.ListClasses(trial.ID)
		if err != nil {
			return err
		}
		for _, class := range classes {
			classLabel := fmt.Sprintf("%s %s %s", class.Element, class.Level, class.Section)

			entries, err := e.store.ListEntries(class.ID)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.Placement == 0 {
					continue
				}
				rows = append(rows, []interface{}{
					trialLabel,
					classLabel,
					class.JudgeName,
					entry.Armband,
					entry.CallName,
					entry.HandlerName,
					entry.ResultStatus,
					entry.Placement,
				})
			}
		}
	}

	rows = append(rows, []interface{}{
		fmt.Sprintf("UPD: %s", time.Now().Format("2 January 15:04")),
	})

	writeRange := fmt.Sprintf("%s!A1", e.cfg.SheetName)
	_, err = e.sheetsService.Spreadsheets.Values.Update(e.cfg.SheetID, writeRange,
		&sheets.ValueRange{Values: rows}).ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("failed to update sheet: %w", err)
	}

	logger.Info.Printf("Exported %d placement rows for %s", len(rows)-2, e.cfg.LicenseKey)
	return nil
}
