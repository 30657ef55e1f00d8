package store

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type ClassSummary struct {
	TrialDate   string `db:"trial_date" json:"trial_date"`
	TrialNumber int    `db:"trial_number" json:"trial_number"`
	Element     string `db:"element" json:"element"`
	Level       string `db:"level" json:"level"`
	Section     string `db:"section" json:"section"`
	JudgeName   string `db:"judge_name" json:"judge_name"`
	EntryCount  int64  `db:"entry_count" json:"entry_count"`
	ScoredCount int64  `db:"scored_count" json:"scored_count"`
}
