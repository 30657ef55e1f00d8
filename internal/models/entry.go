package models

import (
	"github.com/go-playground/validator/v10"
)

// Result statuses an entry can carry once judged.
const (
	ResultNone         = ""
	ResultQualified    = "Qualified"
	ResultNQ           = "NQ"
	ResultExcused      = "Excused"
	ResultAbsent       = "Absent"
	ResultDisqualified = "Disqualified"
)

// Entry is a competitor's registration and scoring record within a Class.
// Remote uniqueness is (class, armband). Once IsScored is set remotely the
// row is protected from casual overwrite.
type Entry struct {
	ID           int64  `db:"id" json:"id"`
	ClassID      int64  `db:"class_id" json:"class_id"`
	Armband      int    `db:"armband" json:"armband" validate:"required,min=1"`
	CallName     string `db:"call_name" json:"call_name" validate:"required"`
	Breed        string `db:"breed" json:"breed"`
	HandlerName  string `db:"handler_name" json:"handler_name" validate:"required"`
	RunningOrder int    `db:"running_order" json:"running_order"`

	IsScored          bool    `db:"is_scored" json:"is_scored"`
	ResultStatus      string  `db:"result_status" json:"result_status"`
	SearchTimeSeconds float64 `db:"search_time_seconds" json:"search_time_seconds"`
	Area1TimeSeconds  float64 `db:"area1_time_seconds" json:"area1_time_seconds"`
	Area2TimeSeconds  float64 `db:"area2_time_seconds" json:"area2_time_seconds"`
	Area3TimeSeconds  float64 `db:"area3_time_seconds" json:"area3_time_seconds"`
	FaultCount        int     `db:"fault_count" json:"fault_count"`
	Placement         int     `db:"placement" json:"placement"`
}

func (e *Entry) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}

// Qualified reports whether the entry's finalized result counts toward
// placements.
func (e *Entry) Qualified() bool {
	return e.IsScored && e.ResultStatus == ResultQualified
}
