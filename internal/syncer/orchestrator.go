// Package syncer sequences show → trial → class → entry synchronization
// between the ring-side store and the hosted backend. It is deliberately
// single-threaded and blocking: one operator drives one sync at a time,
// any step failure aborts the remaining steps of that call, and committed
// steps stand. Idempotent upserts make re-running the recovery path.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/metrics"
	"github.com/k9trials/ringsync/internal/models"
	"github.com/k9trials/ringsync/internal/orgs"
	"github.com/k9trials/ringsync/internal/remote"
	"github.com/k9trials/ringsync/internal/scoring"
	"github.com/k9trials/ringsync/internal/store"
)

// licenseStatusActive is the subscription status uploads require.
const licenseStatusActive = "Active and Valid"

// ErrLicense blocks a sync before any data write happens.
var ErrLicense = errors.New("show license is not active")

// ProgressFunc reports step completion to whatever surface the caller
// drives (CLI prints, a progress bar, nothing).
type ProgressFunc func(stage string, done, total int)

type Orchestrator struct {
	store    store.TrialStore
	remote   *remote.Client
	guard    *Guard
	profile  orgs.Profile
	progress ProgressFunc
}

type Option func(*Orchestrator)

func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

func New(ts store.TrialStore, client *remote.Client, profile orgs.Profile, choose ChooseFunc, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   ts,
		remote:  client,
		guard:   NewGuard(client, choose),
		profile: profile,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) report(stage string, done, total int) {
	if o.progress != nil {
		o.progress(stage, done, total)
	}
}

// UploadClass pushes one class and its entries, cascading the show and
// trial rows it hangs off first.
func (o *Orchestrator) UploadClass(ctx context.Context, classID int64) error {
	class, trial, show, err := o.loadClassScope(classID)
	if err != nil {
		return err
	}

	if err := o.verifyLicense(ctx, show.LicenseKey); err != nil {
		metrics.SyncErrors.WithLabelValues("upload_class").Inc()
		return err
	}

	ids := NewIDMap(o.remote, show.LicenseKey)

	remoteClassID, err := ids.Class(ctx, class.ID)
	if err != nil {
		return err
	}
	overwrite, err := o.guard.check(ctx, show.LicenseKey, scopeClass, remoteClassID)
	if err != nil {
		return err
	}

	if err := o.uploadShow(ctx, ids, show); err != nil {
		return err
	}
	o.report("show", 1, 1)
	if err := o.uploadTrial(ctx, ids, show, trial); err != nil {
		return err
	}
	o.report("trial", 1, 1)
	if err := o.uploadClassRow(ctx, ids, show, trial, class); err != nil {
		return err
	}
	o.report("class", 1, 1)

	return o.uploadEntries(ctx, ids, show, class, overwrite)
}

// UploadTrial pushes a whole trial: every class and every entry. The
// scored-entry guard runs once, scoped to the trial.
func (o *Orchestrator) UploadTrial(ctx context.Context, trialID int64) error {
	trial, err := o.store.GetTrial(trialID)
	if err != nil {
		return err
	}
	if trial == nil {
		return fmt.Errorf("trial %d not found", trialID)
	}
	show, err := o.store.GetShow(trial.ShowID)
	if err != nil {
		return err
	}
	if show == nil {
		return fmt.Errorf("show %d not found", trial.ShowID)
	}

	if err := o.verifyLicense(ctx, show.LicenseKey); err != nil {
		metrics.SyncErrors.WithLabelValues("upload_trial").Inc()
		return err
	}

	ids := NewIDMap(o.remote, show.LicenseKey)

	remoteTrialID, err := ids.Trial(ctx, trial.ID)
	if err != nil {
		return err
	}
	overwrite, err := o.guard.check(ctx, show.LicenseKey, scopeTrial, remoteTrialID)
	if err != nil {
		return err
	}

	if err := o.uploadShow(ctx, ids, show); err != nil {
		return err
	}
	o.report("show", 1, 1)
	if err := o.uploadTrial(ctx, ids, show, trial); err != nil {
		return err
	}
	o.report("trial", 1, 1)

	classes, err := o.store.ListClasses(trial.ID)
	if err != nil {
		return err
	}
	for i, class := range classes {
		if err := o.uploadClassRow(ctx, ids, show, trial, &class); err != nil {
			return err
		}
		o.report("class", i+1, len(classes))
	}
	for _, class := range classes {
		if err := o.uploadEntries(ctx, ids, show, &class, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) loadClassScope(classID int64) (*models.Class, *models.Trial, *models.Show, error) {
	class, err := o.store.GetClass(classID)
	if err != nil {
		return nil, nil, nil, err
	}
	if class == nil {
		return nil, nil, nil, fmt.Errorf("class %d not found", classID)
	}
	trial, err := o.store.GetTrial(class.TrialID)
	if err != nil {
		return nil, nil, nil, err
	}
	if trial == nil {
		return nil, nil, nil, fmt.Errorf("trial %d not found", class.TrialID)
	}
	show, err := o.store.GetShow(trial.ShowID)
	if err != nil {
		return nil, nil, nil, err
	}
	if show == nil {
		return nil, nil, nil, fmt.Errorf("show %d not found", trial.ShowID)
	}
	return class, trial, show, nil
}

func (o *Orchestrator) verifyLicense(ctx context.Context, licenseKey string) error {
	var rows []licenseRow
	filters := remote.Filters{
		"license_key": remote.Eq(licenseKey),
		"select":      "status",
	}
	if err := o.remote.Select(ctx, tableLicenses, filters, &rows); err != nil {
		return fmt.Errorf("failed to verify license: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: license %q unknown", ErrLicense, licenseKey)
	}
	if rows[0].Status != licenseStatusActive {
		return fmt.Errorf("%w: status %q", ErrLicense, rows[0].Status)
	}
	return nil
}

func (o *Orchestrator) uploadShow(ctx context.Context, ids *IDMap, show *models.Show) error {
	if err := show.Validate(); err != nil {
		return fmt.Errorf("show %d failed validation: %w", show.ID, err)
	}

	remoteShowID, err := ids.Show(ctx, show.ID)
	if err != nil {
		return err
	}
	if remoteShowID != 0 {
		// Already uploaded: only the mutable details are re-sent.
		patch := showPatch{
			ShowType:     show.ShowType,
			StartDate:    show.StartDate,
			EndDate:      show.EndDate,
			SiteName:     show.SiteName,
			ContactEmail: show.ContactEmail,
			Status:       show.Status,
		}
		filters := remote.Filters{
			"license_key": remote.Eq(show.LicenseKey),
			"id":          remote.Eq(remoteShowID),
		}
		if err := o.remote.Patch(ctx, tableShows, filters, patch); err != nil {
			return fmt.Errorf("failed to update show: %w", err)
		}
		metrics.RecordsUploaded.WithLabelValues("show").Inc()
		return nil
	}

	record := showRecord{
		LicenseKey:   show.LicenseKey,
		AccessShowID: show.ID,
		ClubName:     show.ClubName,
		ShowType:     show.ShowType,
		StartDate:    show.StartDate,
		EndDate:      show.EndDate,
		SiteName:     show.SiteName,
		ContactEmail: show.ContactEmail,
		Status:       show.Status,
	}
	if err := o.remote.Upsert(ctx, tableShows, []showRecord{record}, showConflictKeys); err != nil {
		return fmt.Errorf("failed to upload show: %w", err)
	}
	metrics.RecordsUploaded.WithLabelValues("show").Inc()
	return nil
}

func (o *Orchestrator) uploadTrial(ctx context.Context, ids *IDMap, show *models.Show, trial *models.Trial) error {
	remoteShowID, err := ids.Show(ctx, show.ID)
	if err != nil {
		return err
	}
	if remoteShowID == 0 {
		// Parent-first invariant: no remote show, trial stays local.
		logger.Debug.Printf("Show %d unresolved remotely, skipping trial %d upload", show.ID, trial.ID)
		return nil
	}

	record := trialRecord{
		LicenseKey:    show.LicenseKey,
		AccessTrialID: trial.ID,
		ShowID:        remoteShowID,
		TrialDate:     trial.TrialDate,
		TrialNumber:   trial.TrialNumber,
		TrialType:     trial.TrialType,
	}
	if err := o.remote.Upsert(ctx, tableTrials, []trialRecord{record}, trialConflictKeys); err != nil {
		return fmt.Errorf("failed to upload trial %d: %w", trial.ID, err)
	}
	metrics.RecordsUploaded.WithLabelValues("trial").Inc()
	return nil
}

func (o *Orchestrator) uploadClassRow(ctx context.Context, ids *IDMap, show *models.Show, trial *models.Trial, class *models.Class) error {
	remoteTrialID, err := ids.Trial(ctx, trial.ID)
	if err != nil {
		return err
	}
	if remoteTrialID == 0 {
		logger.Debug.Printf("Trial %d unresolved remotely, skipping class %d upload", trial.ID, class.ID)
		return nil
	}

	if err := o.profile.CheckClass(class.Element, class.Level, class.Section); err != nil {
		logger.Error.Printf("Class %d does not match the %s profile: %v", class.ID, o.profile.Name, err)
	}

	limit, err := models.ParseTimeLimit(class.TimeLimit)
	if err != nil {
		return fmt.Errorf("class %d: %w", class.ID, err)
	}
	limit2, err := models.ParseTimeLimit(class.TimeLimit2)
	if err != nil {
		return fmt.Errorf("class %d: %w", class.ID, err)
	}
	limit3, err := models.ParseTimeLimit(class.TimeLimit3)
	if err != nil {
		return fmt.Errorf("class %d: %w", class.ID, err)
	}

	record := classRecord{
		LicenseKey:        show.LicenseKey,
		AccessClassID:     class.ID,
		TrialID:           remoteTrialID,
		Element:           class.Element,
		Level:             class.Level,
		Section:           class.Section,
		JudgeName:         class.JudgeName,
		ClassOrder:        class.ClassOrder,
		TimeLimitSeconds:  limit,
		TimeLimit2Seconds: limit2,
		TimeLimit3Seconds: limit3,
	}
	if err := o.remote.Upsert(ctx, tableClasses, []classRecord{record}, classConflictKeys); err != nil {
		return fmt.Errorf("failed to upload class %d: %w", class.ID, err)
	}
	metrics.RecordsUploaded.WithLabelValues("class").Inc()
	return nil
}

func (o *Orchestrator) uploadEntries(ctx context.Context, ids *IDMap, show *models.Show, class *models.Class, overwrite bool) error {
	remoteClassID, err := ids.Class(ctx, class.ID)
	if err != nil {
		return err
	}
	if remoteClassID == 0 {
		logger.Debug.Printf("Class %d unresolved remotely, skipping entry upload", class.ID)
		return nil
	}

	entries, err := o.store.ListEntries(class.ID)
	if err != nil {
		return err
	}

	if len(entries) > 0 {
		if err := o.upsertEntries(ctx, show, remoteClassID, entries, overwrite); err != nil {
			return err
		}
	}
	o.report("entries", len(entries), len(entries))

	return o.reconcileDeletedEntries(ctx, show, remoteClassID, entries)
}

func (o *Orchestrator) upsertEntries(ctx context.Context, show *models.Show, remoteClassID int64, entries []models.Entry, overwrite bool) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return fmt.Errorf("entry %d failed validation: %w", entries[i].ID, err)
		}
	}

	base := func(e *models.Entry) entryRecord {
		return entryRecord{
			LicenseKey:    show.LicenseKey,
			AccessEntryID: e.ID,
			ClassID:       remoteClassID,
			Armband:       e.Armband,
			CallName:      e.CallName,
			Breed:         e.Breed,
			HandlerName:   e.HandlerName,
			RunningOrder:  e.RunningOrder,
		}
	}

	var err error
	if overwrite {
		records := make([]scoredEntryRecord, 0, len(entries))
		for i := range entries {
			e := &entries[i]
			records = append(records, scoredEntryRecord{
				entryRecord:       base(e),
				IsScored:          e.IsScored,
				ResultStatus:      e.ResultStatus,
				SearchTimeSeconds: e.SearchTimeSeconds,
				Area1TimeSeconds:  e.Area1TimeSeconds,
				Area2TimeSeconds:  e.Area2TimeSeconds,
				Area3TimeSeconds:  e.Area3TimeSeconds,
				FaultCount:        e.FaultCount,
				Placement:         e.Placement,
			})
		}
		err = o.remote.Upsert(ctx, tableEntries, records, entryConflictKeys)
	} else {
		records := make([]entryRecord, 0, len(entries))
		for i := range entries {
			records = append(records, base(&entries[i]))
		}
		err = o.remote.Upsert(ctx, tableEntries, records, entryConflictKeys)
	}
	if err != nil {
		return fmt.Errorf("failed to upload entries: %w", err)
	}

	metrics.RecordsUploaded.WithLabelValues("entry").Add(float64(len(entries)))
	return nil
}

// reconcileDeletedEntries removes remote entries whose local origin is
// gone, the usual cause being a move-up to another class.
func (o *Orchestrator) reconcileDeletedEntries(ctx context.Context, show *models.Show, remoteClassID int64, local []models.Entry) error {
	var rows []remoteEntryRow
	filters := remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"class_id":    remote.Eq(remoteClassID),
		"select":      "id,access_entry_id",
	}
	if err := o.remote.Select(ctx, tableEntries, filters, &rows); err != nil {
		return fmt.Errorf("failed to list remote entries: %w", err)
	}

	localIDs := make(map[int64]bool, len(local))
	for _, e := range local {
		localIDs[e.ID] = true
	}

	var stale []int64
	for _, row := range rows {
		if !localIDs[row.AccessEntryID] {
			stale = append(stale, row.AccessEntryID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	logger.Info.Printf("Removing %d remote %s with no local counterpart", len(stale), plural(len(stale), "entry", "entries"))
	deleteFilters := remote.Filters{
		"license_key":     remote.Eq(show.LicenseKey),
		"access_entry_id": remote.In(stale),
	}
	if err := o.remote.Delete(ctx, tableEntries, deleteFilters); err != nil {
		return fmt.Errorf("failed to delete stale remote entries: %w", err)
	}
	return nil
}

// DownloadClass pulls the class time limit and finalized scores back into
// the local store, then recomputes placements. Locally scored entries are
// kept unless the operator authorized a local overwrite.
func (o *Orchestrator) DownloadClass(ctx context.Context, classID int64, overwriteLocal bool) error {
	class, _, show, err := o.loadClassScope(classID)
	if err != nil {
		return err
	}

	ids := NewIDMap(o.remote, show.LicenseKey)
	remoteClassID, err := ids.Class(ctx, class.ID)
	if err != nil {
		return err
	}
	if remoteClassID == 0 {
		logger.Debug.Printf("Class %d was never uploaded, nothing to download", class.ID)
		return nil
	}

	if err := o.downloadTimeLimits(ctx, show, class, remoteClassID); err != nil {
		return err
	}
	if err := o.downloadScores(ctx, show, class, remoteClassID, overwriteLocal); err != nil {
		return err
	}
	return o.recomputePlacements(class)
}

func (o *Orchestrator) downloadTimeLimits(ctx context.Context, show *models.Show, class *models.Class, remoteClassID int64) error {
	var rows []remoteClassRow
	filters := remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"id":          remote.Eq(remoteClassID),
		"select":      "id,time_limit_seconds,time_limit2_seconds,time_limit3_seconds",
	}
	if err := o.remote.Select(ctx, tableClasses, filters, &rows); err != nil {
		return fmt.Errorf("failed to fetch remote class: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	row := rows[0]
	err := o.store.UpdateClassTimeLimits(
		class.ID,
		models.FormatTimeLimit(row.TimeLimitSeconds),
		models.FormatTimeLimit(row.TimeLimit2Seconds),
		models.FormatTimeLimit(row.TimeLimit3Seconds),
	)
	if err != nil {
		return err
	}
	metrics.RecordsDownloaded.WithLabelValues("class").Inc()
	return nil
}

func (o *Orchestrator) downloadScores(ctx context.Context, show *models.Show, class *models.Class, remoteClassID int64, overwriteLocal bool) error {
	var rows []remoteEntryRow
	filters := remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"class_id":    remote.Eq(remoteClassID),
	}
	if err := o.remote.Select(ctx, tableEntries, filters, &rows); err != nil {
		return fmt.Errorf("failed to fetch remote entries: %w", err)
	}

	local, err := o.store.ListEntries(class.ID)
	if err != nil {
		return err
	}
	byID := make(map[int64]*models.Entry, len(local))
	for i := range local {
		byID[local[i].ID] = &local[i]
	}

	downloaded := 0
	for _, row := range rows {
		if !row.IsScored {
			continue
		}
		entry, ok := byID[row.AccessEntryID]
		if !ok {
			continue
		}
		if entry.IsScored && !overwriteLocal {
			logger.Debug.Printf("Entry %d already scored locally, keeping local result", entry.ID)
			continue
		}

		entry.IsScored = true
		entry.ResultStatus = row.ResultStatus
		entry.SearchTimeSeconds = row.SearchTimeSeconds
		entry.Area1TimeSeconds = row.Area1TimeSeconds
		entry.Area2TimeSeconds = row.Area2TimeSeconds
		entry.Area3TimeSeconds = row.Area3TimeSeconds
		entry.FaultCount = row.FaultCount
		entry.Placement = row.Placement
		if err := o.store.UpdateEntryResult(entry); err != nil {
			return err
		}
		downloaded++
	}

	if downloaded > 0 {
		metrics.RecordsDownloaded.WithLabelValues("entry").Add(float64(downloaded))
	}
	o.report("download", downloaded, len(rows))
	return nil
}

func (o *Orchestrator) recomputePlacements(class *models.Class) error {
	entries, err := o.store.ListEntries(class.ID)
	if err != nil {
		return err
	}

	areas := o.profile.Areas(class.Element)
	placements := scoring.ComputePlacements(entries, areas)
	for _, e := range entries {
		if want := placements[e.ID]; want != e.Placement {
			if err := o.store.UpdateEntryPlacement(e.ID, want); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteClass removes the class and its entries from the remote store.
// Deletes are explicit operator requests only, never automatic.
func (o *Orchestrator) DeleteClass(ctx context.Context, classID int64) error {
	class, _, show, err := o.loadClassScope(classID)
	if err != nil {
		return err
	}

	ids := NewIDMap(o.remote, show.LicenseKey)
	remoteClassID, err := ids.Class(ctx, class.ID)
	if err != nil {
		return err
	}
	if remoteClassID == 0 {
		return nil
	}

	if err := o.remote.Delete(ctx, tableEntries, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"class_id":    remote.Eq(remoteClassID),
	}); err != nil {
		return fmt.Errorf("failed to delete remote entries: %w", err)
	}
	if err := o.remote.Delete(ctx, tableClasses, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"id":          remote.Eq(remoteClassID),
	}); err != nil {
		return fmt.Errorf("failed to delete remote class: %w", err)
	}
	return nil
}

// DeleteTrial removes the trial, its classes and their entries remotely,
// deepest first.
func (o *Orchestrator) DeleteTrial(ctx context.Context, trialID int64) error {
	trial, err := o.store.GetTrial(trialID)
	if err != nil {
		return err
	}
	if trial == nil {
		return fmt.Errorf("trial %d not found", trialID)
	}
	show, err := o.store.GetShow(trial.ShowID)
	if err != nil {
		return err
	}
	if show == nil {
		return fmt.Errorf("show %d not found", trial.ShowID)
	}

	ids := NewIDMap(o.remote, show.LicenseKey)
	remoteTrialID, err := ids.Trial(ctx, trial.ID)
	if err != nil {
		return err
	}
	if remoteTrialID == 0 {
		return nil
	}

	if err := o.deleteTrialTree(ctx, show, remoteTrialID); err != nil {
		return err
	}
	return o.remote.Delete(ctx, tableTrials, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"id":          remote.Eq(remoteTrialID),
	})
}

// DeleteShow removes everything the show owns remotely: entries, classes,
// trials, then the show row itself.
func (o *Orchestrator) DeleteShow(ctx context.Context, showID int64) error {
	show, err := o.store.GetShow(showID)
	if err != nil {
		return err
	}
	if show == nil {
		return fmt.Errorf("show %d not found", showID)
	}

	ids := NewIDMap(o.remote, show.LicenseKey)
	remoteShowID, err := ids.Show(ctx, show.ID)
	if err != nil {
		return err
	}
	if remoteShowID == 0 {
		return nil
	}

	var trials []idRow
	if err := o.remote.Select(ctx, tableTrials, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"show_id":     remote.Eq(remoteShowID),
		"select":      "id",
	}, &trials); err != nil {
		return fmt.Errorf("failed to list remote trials: %w", err)
	}

	for _, trial := range trials {
		if err := o.deleteTrialTree(ctx, show, trial.ID); err != nil {
			return err
		}
	}
	if len(trials) > 0 {
		if err := o.remote.Delete(ctx, tableTrials, remote.Filters{
			"license_key": remote.Eq(show.LicenseKey),
			"show_id":     remote.Eq(remoteShowID),
		}); err != nil {
			return fmt.Errorf("failed to delete remote trials: %w", err)
		}
	}
	return o.remote.Delete(ctx, tableShows, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"id":          remote.Eq(remoteShowID),
	})
}

func (o *Orchestrator) deleteTrialTree(ctx context.Context, show *models.Show, remoteTrialID int64) error {
	var classes []idRow
	if err := o.remote.Select(ctx, tableClasses, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"trial_id":    remote.Eq(remoteTrialID),
		"select":      "id",
	}, &classes); err != nil {
		return fmt.Errorf("failed to list remote classes: %w", err)
	}
	if len(classes) == 0 {
		return nil
	}

	classIDs := make([]int64, len(classes))
	for i, c := range classes {
		classIDs[i] = c.ID
	}

	if err := o.remote.Delete(ctx, tableEntries, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"class_id":    remote.In(classIDs),
	}); err != nil {
		return fmt.Errorf("failed to delete remote entries: %w", err)
	}
	if err := o.remote.Delete(ctx, tableClasses, remote.Filters{
		"license_key": remote.Eq(show.LicenseKey),
		"trial_id":    remote.Eq(remoteTrialID),
	}); err != nil {
		return fmt.Errorf("failed to delete remote classes: %w", err)
	}
	return nil
}
