package syncer

// Remote table names and the upsert conflict keys their unique
// constraints are declared on.
const (
	tableShows    = "shows"
	tableTrials   = "trials"
	tableClasses  = "classes"
	tableEntries  = "entries"
	tableLicenses = "licenses"
)

var (
	showConflictKeys  = []string{"license_key"}
	trialConflictKeys = []string{"show_id", "trial_number", "trial_date"}
	classConflictKeys = []string{"trial_id", "element", "level", "section"}
	entryConflictKeys = []string{"class_id", "armband"}
)

// Every remote row carries the show license key plus an access_<entity>_id
// pointing back at its local origin; that column is what id reconciliation
// and move-up deletes key on.

type showRecord struct {
	LicenseKey   string `json:"license_key"`
	AccessShowID int64  `json:"access_show_id"`
	ClubName     string `json:"club_name"`
	ShowType     string `json:"show_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	SiteName     string `json:"site_name"`
	ContactEmail string `json:"contact_email"`
	Status       string `json:"status"`
}

// showPatch carries the fields an already-uploaded show may change
// between syncs. Identity stays fixed: license_key, access_show_id and
// the club name are never re-sent.
type showPatch struct {
	ShowType     string `json:"show_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	SiteName     string `json:"site_name"`
	ContactEmail string `json:"contact_email"`
	Status       string `json:"status"`
}

type trialRecord struct {
	LicenseKey    string `json:"license_key"`
	AccessTrialID int64  `json:"access_trial_id"`
	ShowID        int64  `json:"show_id"`
	TrialDate     string `json:"trial_date"`
	TrialNumber   int    `json:"trial_number"`
	TrialType     string `json:"trial_type"`
}

type classRecord struct {
	LicenseKey        string `json:"license_key"`
	AccessClassID     int64  `json:"access_class_id"`
	TrialID           int64  `json:"trial_id"`
	Element           string `json:"element"`
	Level             string `json:"level"`
	Section           string `json:"section"`
	JudgeName         string `json:"judge_name"`
	ClassOrder        int    `json:"class_order"`
	TimeLimitSeconds  int    `json:"time_limit_seconds"`
	TimeLimit2Seconds int    `json:"time_limit2_seconds"`
	TimeLimit3Seconds int    `json:"time_limit3_seconds"`
}

// entryRecord is the routine upload payload. Scoring fields stay out of
// it so the remote trigger's scored-row protection never has anything to
// reject; fresh inserts get is_scored=false from the column default.
type entryRecord struct {
	LicenseKey    string `json:"license_key"`
	AccessEntryID int64  `json:"access_entry_id"`
	ClassID       int64  `json:"class_id"`
	Armband       int    `json:"armband"`
	CallName      string `json:"call_name"`
	Breed         string `json:"breed"`
	HandlerName   string `json:"handler_name"`
	RunningOrder  int    `json:"running_order"`
}

// scoredEntryRecord is the payload used after the operator authorized a
// force-overwrite: the full scoring state replaces whatever is remote.
type scoredEntryRecord struct {
	entryRecord
	IsScored          bool    `json:"is_scored"`
	ResultStatus      string  `json:"result_status"`
	SearchTimeSeconds float64 `json:"search_time_seconds"`
	Area1TimeSeconds  float64 `json:"area1_time_seconds"`
	Area2TimeSeconds  float64 `json:"area2_time_seconds"`
	Area3TimeSeconds  float64 `json:"area3_time_seconds"`
	FaultCount        int     `json:"fault_count"`
	Placement         int     `json:"placement"`
}

// Row shapes decoded from remote selects.

type idRow struct {
	ID int64 `json:"id"`
}

type licenseRow struct {
	Status string `json:"status"`
}

type remoteClassRow struct {
	ID                int64 `json:"id"`
	TimeLimitSeconds  int   `json:"time_limit_seconds"`
	TimeLimit2Seconds int   `json:"time_limit2_seconds"`
	TimeLimit3Seconds int   `json:"time_limit3_seconds"`
}

type remoteEntryRow struct {
	ID                int64   `json:"id"`
	AccessEntryID     int64   `json:"access_entry_id"`
	Armband           int     `json:"armband"`
	IsScored          bool    `json:"is_scored"`
	ResultStatus      string  `json:"result_status"`
	SearchTimeSeconds float64 `json:"search_time_seconds"`
	Area1TimeSeconds  float64 `json:"area1_time_seconds"`
	Area2TimeSeconds  float64 `json:"area2_time_seconds"`
	Area3TimeSeconds  float64 `json:"area3_time_seconds"`
	FaultCount        int     `json:"fault_count"`
	Placement         int     `json:"placement"`
}
