package models

// Trial is one competition day/run within a Show. Remote uniqueness is
// (show, trial_number, trial_date).
type Trial struct {
	ID          int64  `db:"id" json:"id"`
	ShowID      int64  `db:"show_id" json:"show_id"`
	TrialDate   string `db:"trial_date" json:"trial_date" validate:"required,datetime=2006-01-02"`
	TrialNumber int    `db:"trial_number" json:"trial_number" validate:"required,min=1"`
	TrialType   string `db:"trial_type" json:"trial_type"`
}
