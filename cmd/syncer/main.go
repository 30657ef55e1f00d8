package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/app"
	"github.com/k9trials/ringsync/internal/notify"
	"github.com/k9trials/ringsync/internal/syncer"
)

func main() {
	var (
		configPath     = flag.String("config", "config.toml", "Path to config file")
		op             = flag.String("op", "", "Operation: upload-class, upload-trial, download-class, delete-class, delete-trial, delete-show")
		id             = flag.Int64("id", 0, "Local id of the class/trial/show the operation targets")
		onScored       = flag.String("on-scored", "ask", "What to do when scored remote entries exist: ask, abort, skip, overwrite")
		overwriteLocal = flag.Bool("overwrite-local", false, "Let downloads replace locally scored results")
	)
	flag.Parse()

	// Secrets can live in a .env next to the binary; real env wins.
	_ = godotenv.Load()

	if *op == "" || *id == 0 {
		flag.Usage()
		os.Exit(2)
	}

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	if err := service.Store.ApplyMigrations(service.Config.Database.MigrationsDir); err != nil {
		logger.Error.Fatalf("Failed to apply migrations: %v", err)
	}

	notifier, err := notify.New(service.Config.Notify.BotToken, notifyChats(service))
	if err != nil {
		logger.Error.Fatalf("Failed to init notifier: %v", err)
	}

	orch := syncer.New(
		service.Store,
		service.Remote,
		service.Profile,
		chooser(*onScored),
		syncer.WithProgress(func(stage string, done, total int) {
			logger.Info.Printf("  %s: %d/%d", stage, done, total)
		}),
	)

	ctx := context.Background()

	license, err := licenseForOp(service, *op, *id)
	if err != nil {
		logger.Error.Fatalf("%v", err)
	}
	if err := service.Lock.Acquire(ctx, license); err != nil {
		logger.Error.Fatalf("Cannot start sync: %v", err)
	}
	defer service.Lock.Release(ctx, license)

	label := fmt.Sprintf("%s %d", *op, *id)
	logger.Info.Printf("Starting %s", label)

	err = run(ctx, orch, *op, *id, *overwriteLocal)
	notifier.SyncOutcome(label, err)

	switch {
	case errors.Is(err, syncer.ErrAborted):
		logger.Info.Println("Aborted, nothing was changed")
		os.Exit(1)
	case err != nil:
		logger.Error.Fatalf("%s failed: %v", label, err)
	default:
		logger.Info.Printf("%s done", label)
	}
}

func run(ctx context.Context, orch *syncer.Orchestrator, op string, id int64, overwriteLocal bool) error {
	switch op {
	case "upload-class":
		return orch.UploadClass(ctx, id)
	case "upload-trial":
		return orch.UploadTrial(ctx, id)
	case "download-class":
		return orch.DownloadClass(ctx, id, overwriteLocal)
	case "delete-class":
		return orch.DeleteClass(ctx, id)
	case "delete-trial":
		return orch.DeleteTrial(ctx, id)
	case "delete-show":
		return orch.DeleteShow(ctx, id)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// chooser maps the -on-scored flag to the guard's decision callback.
// "ask" puts the three-way choice to the operator interactively.
func chooser(onScored string) syncer.ChooseFunc {
	switch onScored {
	case "abort":
		return func(string) (syncer.Choice, error) { return syncer.ChoiceAbort, nil }
	case "skip":
		return func(string) (syncer.Choice, error) { return syncer.ChoiceSkipProtected, nil }
	case "overwrite":
		return func(string) (syncer.Choice, error) { return syncer.ChoiceForceOverwrite, nil }
	default:
		return askOperator
	}
}

func askOperator(prompt string) (syncer.Choice, error) {
	choice := syncer.ChoiceAbort
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[syncer.Choice]().
			Title(prompt).
			Options(
				huh.NewOption("Abort the sync", syncer.ChoiceAbort),
				huh.NewOption("Keep scored entries, upload the rest", syncer.ChoiceSkipProtected),
				huh.NewOption("Overwrite scored entries", syncer.ChoiceForceOverwrite),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return syncer.ChoiceAbort, err
	}
	return choice, nil
}

// licenseForOp walks the local hierarchy up to the show so the session
// lock is always taken per license key.
func licenseForOp(service *app.Service, op string, id int64) (string, error) {
	classID, trialID, showID := int64(0), int64(0), int64(0)
	switch op {
	case "upload-class", "download-class", "delete-class":
		classID = id
	case "upload-trial", "delete-trial":
		trialID = id
	case "delete-show":
		showID = id
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}

	if classID != 0 {
		class, err := service.Store.GetClass(classID)
		if err != nil {
			return "", err
		}
		if class == nil {
			return "", fmt.Errorf("class %d not found", classID)
		}
		trialID = class.TrialID
	}
	if trialID != 0 {
		trial, err := service.Store.GetTrial(trialID)
		if err != nil {
			return "", err
		}
		if trial == nil {
			return "", fmt.Errorf("trial %d not found", trialID)
		}
		showID = trial.ShowID
	}

	show, err := service.Store.GetShow(showID)
	if err != nil {
		return "", err
	}
	if show == nil {
		return "", fmt.Errorf("show %d not found", showID)
	}
	return show.LicenseKey, nil
}

func notifyChats(service *app.Service) []int64 {
	if !service.Config.Notify.Enabled {
		return nil
	}
	return service.Config.Notify.ChatIDs
}
