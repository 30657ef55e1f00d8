package syncer

import (
	"context"
	"fmt"

	"github.com/k9trials/ringsync/internal/remote"
)

// IDMap resolves local auto-increment ids to remote-assigned primary keys.
// The remote store mints its own ids on first insert, so the mapping is
// rebuilt lazily every sync session by querying on the access_*_id columns
// the remote rows carry. Zero means "not uploaded yet"; nothing here is
// ever persisted.
type IDMap struct {
	remote     *remote.Client
	licenseKey string

	shows   map[int64]int64
	trials  map[int64]int64
	classes map[int64]int64
}

func NewIDMap(client *remote.Client, licenseKey string) *IDMap {
	return &IDMap{
		remote:     client,
		licenseKey: licenseKey,
		shows:      make(map[int64]int64),
		trials:     make(map[int64]int64),
		classes:    make(map[int64]int64),
	}
}

func (m *IDMap) Show(ctx context.Context, localID int64) (int64, error) {
	return m.resolve(ctx, m.shows, tableShows, "access_show_id", localID)
}

func (m *IDMap) Trial(ctx context.Context, localID int64) (int64, error) {
	return m.resolve(ctx, m.trials, tableTrials, "access_trial_id", localID)
}

func (m *IDMap) Class(ctx context.Context, localID int64) (int64, error) {
	return m.resolve(ctx, m.classes, tableClasses, "access_class_id", localID)
}

func (m *IDMap) resolve(ctx context.Context, cache map[int64]int64, table, accessColumn string, localID int64) (int64, error) {
	if remoteID, ok := cache[localID]; ok {
		return remoteID, nil
	}

	var rows []idRow
	filters := remote.Filters{
		"license_key": remote.Eq(m.licenseKey),
		accessColumn:  remote.Eq(localID),
		"select":      "id",
	}
	if err := m.remote.Select(ctx, table, filters, &rows); err != nil {
		return 0, fmt.Errorf("failed to resolve %s id %d: %w", table, localID, err)
	}
	if len(rows) == 0 {
		// Not uploaded yet. Deliberately uncached so a later resolve
		// after the parent upsert sees the fresh row.
		return 0, nil
	}

	cache[localID] = rows[0].ID
	return rows[0].ID, nil
}
