package models

import (
	"github.com/go-playground/validator/v10"
)

// Show is the top of the event hierarchy. The license key is the sync
// correlation key: every remote row belonging to this show carries it.
type Show struct {
	ID           int64  `db:"id" json:"id"`
	LicenseKey   string `db:"license_key" json:"license_key" validate:"required"`
	ClubName     string `db:"club_name" json:"club_name" validate:"required"`
	ShowType     string `db:"show_type" json:"show_type"`
	StartDate    string `db:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `db:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	SiteName     string `db:"site_name" json:"site_name"`
	ContactEmail string `db:"contact_email" json:"contact_email" validate:"omitempty,email"`
	Status       string `db:"status" json:"status"`
}

func (s *Show) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}
