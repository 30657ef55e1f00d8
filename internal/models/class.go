package models

// Class is a judged division within a Trial. Remote uniqueness is
// (trial, element, level, section). Time limits are operator-facing
// "MM:SS" strings; the remote side stores plain seconds.
type Class struct {
	ID         int64  `db:"id" json:"id"`
	TrialID    int64  `db:"trial_id" json:"trial_id"`
	Element    string `db:"element" json:"element" validate:"required"`
	Level      string `db:"level" json:"level" validate:"required"`
	Section    string `db:"section" json:"section"`
	JudgeName  string `db:"judge_name" json:"judge_name"`
	ClassOrder int    `db:"class_order" json:"class_order"`
	TimeLimit  string `db:"time_limit" json:"time_limit"`
	TimeLimit2 string `db:"time_limit2" json:"time_limit2"`
	TimeLimit3 string `db:"time_limit3" json:"time_limit3"`
}
