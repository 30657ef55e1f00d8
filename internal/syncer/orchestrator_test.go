package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k9trials/ringsync/internal/models"
	"github.com/k9trials/ringsync/internal/orgs"
	"github.com/k9trials/ringsync/internal/remote"
	"github.com/k9trials/ringsync/internal/store/sqlite"
)

const (
	testLicense  = "lic-1"
	testShowID   = int64(1)
	testTrialID  = int64(10)
	testClassID  = int64(100)
	testClass2ID = int64(101)
)

type syncHarness struct {
	t       *testing.T
	fake    *fakeRemote
	store   *sqlite.SQLiteStore
	orch    *Orchestrator
	choice  Choice
	prompts []string
}

func newSyncHarness(t *testing.T) *syncHarness {
	h := &syncHarness{t: t, fake: newFakeRemote(t), choice: ChoiceAbort}

	ts := h.fake.server()
	t.Cleanup(ts.Close)

	st, err := sqlite.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.ApplyMigrations("../../migrations"))
	h.store = st

	client := remote.NewClient(remote.Config{
		BaseURL:     ts.URL,
		APIKey:      "anon-key",
		BearerToken: "service-token",
	})
	profile, ok := orgs.Builtin("ukc-nosework")
	require.True(t, ok)

	h.orch = New(st, client, profile, func(prompt string) (Choice, error) {
		h.prompts = append(h.prompts, prompt)
		return h.choice, nil
	})
	return h
}

func mustExec(t *testing.T, db *sqlx.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

// seedClassFixture loads one show with one trial, one Container class and
// three unscored entries into the local store.
func (h *syncHarness) seedClassFixture() {
	mustExec(h.t, h.store.DB, `
		INSERT INTO shows (id, license_key, club_name, show_type, start_date, end_date, site_name, contact_email, status)
		VALUES (?, ?, 'Cascade K9 Club', 'Nosework', '2026-06-12', '2026-06-13', 'County Fairgrounds', 'secretary@cascadek9.org', 'Open')
	`, testShowID, testLicense)
	mustExec(h.t, h.store.DB, `
		INSERT INTO trials (id, show_id, trial_date, trial_number, trial_type)
		VALUES (?, ?, '2026-06-12', 1, 'Regular')
	`, testTrialID, testShowID)
	mustExec(h.t, h.store.DB, `
		INSERT INTO classes (id, trial_id, element, level, section, judge_name, class_order, time_limit)
		VALUES (?, ?, 'Container', 'Novice', 'A', 'Pat Reyes', 1, '03:00')
	`, testClassID, testTrialID)
	h.seedEntry(1001, testClassID, 101, "Biscuit", "Sam Ortiz", 1)
	h.seedEntry(1002, testClassID, 102, "Juno", "Lee Chan", 2)
	h.seedEntry(1003, testClassID, 103, "Moose", "Dana Reed", 3)
}

func (h *syncHarness) seedSecondClass() {
	mustExec(h.t, h.store.DB, `
		INSERT INTO classes (id, trial_id, element, level, section, judge_name, class_order, time_limit)
		VALUES (?, ?, 'Interior', 'Novice', 'A', 'Pat Reyes', 2, '02:30')
	`, testClass2ID, testTrialID)
	h.seedEntry(1004, testClass2ID, 104, "Pepper", "Ira Walsh", 1)
}

func (h *syncHarness) seedEntry(id, classID int64, armband int, callName, handler string, order int) {
	mustExec(h.t, h.store.DB, `
		INSERT INTO entries (id, class_id, armband, call_name, breed, handler_name, running_order)
		VALUES (?, ?, ?, ?, 'Mixed', ?, ?)
	`, id, classID, armband, callName, handler, order)
}

func (h *syncHarness) seedActiveLicense() {
	h.fake.seed("licenses", map[string]any{"license_key": testLicense, "status": "Active and Valid"})
}

func (h *syncHarness) remoteEntry(accessID int64) map[string]any {
	for _, row := range h.fake.rows("entries") {
		if toString(row["access_entry_id"]) == fmt.Sprint(accessID) {
			return row
		}
	}
	return nil
}

func decodeRecords(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var records []map[string]any
	require.NoError(t, json.Unmarshal(body, &records))
	return records
}

func TestUploadClassCreatesFullHierarchy(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()

	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	assert.Len(t, h.fake.rows("shows"), 1)
	assert.Len(t, h.fake.rows("trials"), 1)
	assert.Len(t, h.fake.rows("classes"), 1)
	require.Len(t, h.fake.rows("entries"), 3)
	assert.Empty(t, h.prompts, "nothing scored remotely, operator must not be asked")

	remoteClass := h.fake.rows("classes")[0]
	assert.Equal(t, "100", toString(remoteClass["access_class_id"]))
	assert.Equal(t, "180", toString(remoteClass["time_limit_seconds"]))
	assert.Equal(t, toString(h.fake.rows("trials")[0]["id"]), toString(remoteClass["trial_id"]))

	for _, accessID := range []int64{1001, 1002, 1003} {
		row := h.remoteEntry(accessID)
		require.NotNil(t, row, "entry %d missing remotely", accessID)
		assert.Equal(t, toString(remoteClass["id"]), toString(row["class_id"]))
		assert.Equal(t, false, row["is_scored"])
	}

	posts := h.fake.capturedFor("POST", "entries")
	require.Len(t, posts, 1)
	for _, record := range decodeRecords(t, posts[0].Body) {
		assert.NotContains(t, record, "result_status")
		assert.NotContains(t, record, "is_scored")
		assert.NotContains(t, record, "placement")
	}
}

func TestUploadClassIsIdempotent(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()

	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	assert.Len(t, h.fake.rows("shows"), 1)
	assert.Len(t, h.fake.rows("trials"), 1)
	assert.Len(t, h.fake.rows("classes"), 1)
	assert.Len(t, h.fake.rows("entries"), 3)
}

func TestReuploadPatchesMutableShowFields(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	// The venue moved; the identity fields stay as they were.
	mustExec(t, h.store.DB, `
		UPDATE shows SET site_name = 'New Exhibit Hall', contact_email = 'chair@cascadek9.org'
		WHERE id = ?
	`, testShowID)

	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	assert.Len(t, h.fake.capturedFor("POST", "shows"), 1, "existing show must be patched, not re-inserted")
	patches := h.fake.capturedFor("PATCH", "shows")
	require.Len(t, patches, 1)
	assert.Equal(t, "eq."+testLicense, patches[0].Query["license_key"])
	for _, key := range []string{"license_key", "access_show_id", "club_name"} {
		assert.NotContains(t, string(patches[0].Body), key)
	}

	remoteShow := h.fake.rows("shows")[0]
	assert.Equal(t, "New Exhibit Hall", remoteShow["site_name"])
	assert.Equal(t, "chair@cascadek9.org", remoteShow["contact_email"])
	assert.Equal(t, "Cascade K9 Club", remoteShow["club_name"])
}

func TestUploadRejectsInvalidLocalRows(t *testing.T) {
	t.Run("bad show contact", func(t *testing.T) {
		h := newSyncHarness(t)
		h.seedClassFixture()
		h.seedActiveLicense()
		mustExec(t, h.store.DB, `UPDATE shows SET contact_email = 'not-an-email' WHERE id = ?`, testShowID)

		err := h.orch.UploadClass(context.Background(), testClassID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
		assert.Empty(t, h.fake.capturedFor("POST", "shows"))
	})

	t.Run("bad entry", func(t *testing.T) {
		h := newSyncHarness(t)
		h.seedClassFixture()
		h.seedActiveLicense()
		mustExec(t, h.store.DB, `UPDATE entries SET call_name = '' WHERE id = ?`, int64(1001))

		err := h.orch.UploadClass(context.Background(), testClassID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
		assert.Empty(t, h.fake.capturedFor("POST", "entries"))
	})
}

func TestEntriesSkippedWhenClassUnresolved(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()

	show, err := h.store.GetShow(testShowID)
	require.NoError(t, err)
	class, err := h.store.GetClass(testClassID)
	require.NoError(t, err)

	ids := NewIDMap(h.orch.remote, show.LicenseKey)
	require.NoError(t, h.orch.uploadEntries(context.Background(), ids, show, class, false))

	assert.Empty(t, h.fake.capturedFor("POST", "entries"))
	assert.Empty(t, h.fake.rows("entries"))
}

func TestLicenseGateBlocksUpload(t *testing.T) {
	t.Run("expired license", func(t *testing.T) {
		h := newSyncHarness(t)
		h.seedClassFixture()
		h.fake.seed("licenses", map[string]any{"license_key": testLicense, "status": "Expired"})

		err := h.orch.UploadClass(context.Background(), testClassID)
		require.ErrorIs(t, err, ErrLicense)
		assert.Empty(t, h.fake.capturedFor("POST", "shows"))
	})

	t.Run("unknown license", func(t *testing.T) {
		h := newSyncHarness(t)
		h.seedClassFixture()

		err := h.orch.UploadClass(context.Background(), testClassID)
		require.ErrorIs(t, err, ErrLicense)
		assert.Empty(t, h.fake.capturedFor("POST", "shows"))
	})
}

func TestScoredRemoteEntriesAbort(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	h.remoteEntry(1001)["is_scored"] = true
	h.choice = ChoiceAbort
	postsBefore := len(h.fake.capturedFor("POST", "entries"))

	err := h.orch.UploadClass(context.Background(), testClassID)
	require.ErrorIs(t, err, ErrAborted)

	require.Len(t, h.prompts, 1)
	assert.Contains(t, h.prompts[0], "1 scored entry")
	assert.Len(t, h.fake.capturedFor("POST", "entries"), postsBefore, "abort must happen before any write")
	assert.Empty(t, h.fake.unlockCalls)
}

func TestScoredRemoteEntriesSkipProtected(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	h.remoteEntry(1001)["is_scored"] = true
	h.remoteEntry(1001)["result_status"] = models.ResultQualified
	h.choice = ChoiceSkipProtected

	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	require.Len(t, h.prompts, 1)
	assert.Empty(t, h.fake.unlockCalls)

	posts := h.fake.capturedFor("POST", "entries")
	require.Len(t, posts, 2)
	for _, record := range decodeRecords(t, posts[1].Body) {
		assert.NotContains(t, record, "is_scored")
		assert.NotContains(t, record, "result_status")
	}

	// Merge-duplicates leaves the columns the payload omits alone.
	assert.Equal(t, true, h.remoteEntry(1001)["is_scored"])
	assert.Equal(t, models.ResultQualified, h.remoteEntry(1001)["result_status"])
}

func TestScoredRemoteEntriesForceOverwrite(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	h.remoteEntry(1001)["is_scored"] = true
	h.remoteEntry(1001)["result_status"] = models.ResultNQ

	require.NoError(t, h.store.UpdateEntryResult(&models.Entry{
		ID:                1001,
		IsScored:          true,
		ResultStatus:      models.ResultQualified,
		SearchTimeSeconds: 45.2,
	}))

	h.choice = ChoiceForceOverwrite
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	require.Len(t, h.fake.unlockCalls, 1)
	assert.Contains(t, h.fake.unlockCalls[0], "unlock_class_for_reupload")
	assert.Contains(t, h.fake.unlockCalls[0], "p_class_id")

	posts := h.fake.capturedFor("POST", "entries")
	require.Len(t, posts, 2)
	records := decodeRecords(t, posts[1].Body)
	require.Len(t, records, 3)
	for _, record := range records {
		assert.Contains(t, record, "is_scored")
		assert.Contains(t, record, "result_status")
	}

	overwritten := h.remoteEntry(1001)
	assert.Equal(t, models.ResultQualified, overwritten["result_status"])
	assert.Equal(t, true, overwritten["is_scored"])
	assert.Equal(t, "45.2", toString(overwritten["search_time_seconds"]))
}

func TestMoveUpRemovesStaleRemoteEntry(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))
	require.Len(t, h.fake.rows("entries"), 3)

	// Dog 103 moved up to another class; its old entry row goes away.
	mustExec(t, h.store.DB, `DELETE FROM entries WHERE id = ?`, int64(1003))

	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	assert.Len(t, h.fake.rows("entries"), 2)
	assert.Nil(t, h.remoteEntry(1003))

	deletes := h.fake.capturedFor("DELETE", "entries")
	require.Len(t, deletes, 1)
	assert.Equal(t, "in.(1003)", deletes[0].Query["access_entry_id"])
	assert.Equal(t, "eq."+testLicense, deletes[0].Query["license_key"])
}

func TestDownloadClassPullsLimitsAndScores(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	// The judge adjusted the limit and scored the class on the remote side.
	h.fake.rows("classes")[0]["time_limit_seconds"] = float64(240)
	score := func(accessID int64, status string, seconds float64, faults int) {
		row := h.remoteEntry(accessID)
		require.NotNil(t, row)
		row["is_scored"] = true
		row["result_status"] = status
		row["search_time_seconds"] = seconds
		row["fault_count"] = float64(faults)
	}
	score(1001, models.ResultQualified, 45.2, 0)
	score(1002, models.ResultQualified, 31.7, 0)
	score(1003, models.ResultNQ, 12.0, 0)

	require.NoError(t, h.orch.DownloadClass(context.Background(), testClassID, false))

	class, err := h.store.GetClass(testClassID)
	require.NoError(t, err)
	assert.Equal(t, "04:00", class.TimeLimit)

	entries, err := h.store.ListEntries(testClassID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byID := map[int64]models.Entry{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	assert.Equal(t, models.ResultQualified, byID[1001].ResultStatus)
	assert.Equal(t, 45.2, byID[1001].SearchTimeSeconds)
	assert.Equal(t, 2, byID[1001].Placement)
	assert.Equal(t, 1, byID[1002].Placement)
	assert.Equal(t, models.ResultNQ, byID[1003].ResultStatus)
	assert.Equal(t, 0, byID[1003].Placement)
}

func TestDownloadKeepsLocalScoresUnlessOverwriting(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	row := h.remoteEntry(1001)
	row["is_scored"] = true
	row["result_status"] = models.ResultQualified
	row["search_time_seconds"] = 50.0

	require.NoError(t, h.store.UpdateEntryResult(&models.Entry{
		ID:                1001,
		IsScored:          true,
		ResultStatus:      models.ResultExcused,
		SearchTimeSeconds: 20.0,
	}))

	require.NoError(t, h.orch.DownloadClass(context.Background(), testClassID, false))
	entries, err := h.store.ListEntries(testClassID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultExcused, entries[0].ResultStatus)

	require.NoError(t, h.orch.DownloadClass(context.Background(), testClassID, true))
	entries, err = h.store.ListEntries(testClassID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultQualified, entries[0].ResultStatus)
	assert.Equal(t, 50.0, entries[0].SearchTimeSeconds)
}

func TestDownloadClassNeverUploadedIsNoop(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()

	require.NoError(t, h.orch.DownloadClass(context.Background(), testClassID, false))
	assert.Empty(t, h.fake.capturedFor("GET", "entries"))
}

func TestUploadTrialCoversEveryClass(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedSecondClass()
	h.seedActiveLicense()

	require.NoError(t, h.orch.UploadTrial(context.Background(), testTrialID))

	assert.Len(t, h.fake.rows("classes"), 2)
	assert.Len(t, h.fake.rows("entries"), 4)
	assert.NotNil(t, h.remoteEntry(1004))
}

func TestUploadTrialForceOverwriteUnlocksTrialScope(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedSecondClass()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadTrial(context.Background(), testTrialID))

	h.remoteEntry(1001)["is_scored"] = true
	h.remoteEntry(1004)["is_scored"] = true
	h.choice = ChoiceForceOverwrite

	require.NoError(t, h.orch.UploadTrial(context.Background(), testTrialID))

	require.Len(t, h.prompts, 1)
	assert.Contains(t, h.prompts[0], "2 scored entries")
	assert.Contains(t, h.prompts[0], "trial")
	require.Len(t, h.fake.unlockCalls, 1)
	assert.Contains(t, h.fake.unlockCalls[0], "unlock_trial_for_reupload")
	assert.Contains(t, h.fake.unlockCalls[0], "p_trial_id")
}

func TestDeleteClassRemovesEntriesFirst(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadClass(context.Background(), testClassID))

	require.NoError(t, h.orch.DeleteClass(context.Background(), testClassID))

	assert.Empty(t, h.fake.rows("entries"))
	assert.Empty(t, h.fake.rows("classes"))
	assert.Len(t, h.fake.rows("trials"), 1, "trial stays, only the class scope is removed")
}

func TestDeleteShowCascades(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()
	h.seedSecondClass()
	h.seedActiveLicense()
	require.NoError(t, h.orch.UploadTrial(context.Background(), testTrialID))

	require.NoError(t, h.orch.DeleteShow(context.Background(), testShowID))

	assert.Empty(t, h.fake.rows("entries"))
	assert.Empty(t, h.fake.rows("classes"))
	assert.Empty(t, h.fake.rows("trials"))
	assert.Empty(t, h.fake.rows("shows"))
}

func TestDeleteNeverUploadedIsNoop(t *testing.T) {
	h := newSyncHarness(t)
	h.seedClassFixture()

	require.NoError(t, h.orch.DeleteClass(context.Background(), testClassID))
	require.NoError(t, h.orch.DeleteShow(context.Background(), testShowID))
	assert.Empty(t, h.fake.capturedFor("DELETE", "entries"))
	assert.Empty(t, h.fake.capturedFor("DELETE", "shows"))
}
