package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/k9trials/ringsync/internal/models"
)

// TrialStore is the local relational adapter: reads supply the upload
// paths, targeted updates write remote-confirmed results back in on the
// download paths. Missing scopes return empty results, never errors.
type TrialStore interface {
	Close() error
	ApplyMigrations(dir string) error

	GetShow(id int64) (*models.Show, error)
	GetShowByLicense(licenseKey string) (*models.Show, error)
	GetTrial(id int64) (*models.Trial, error)
	GetClass(id int64) (*models.Class, error)
	ListTrials(showID int64) ([]models.Trial, error)
	ListClasses(trialID int64) ([]models.Class, error)
	ListEntries(classID int64) ([]models.Entry, error)

	UpdateClassTimeLimits(classID int64, limit, limit2, limit3 string) error
	UpdateEntryResult(entry *models.Entry) error
	UpdateEntryPlacement(entryID int64, placement int) error

	GetShowSummary(licenseKey string) ([]ClassSummary, error)
}

// BaseStore provides the portable SQL shared by the dialect stores.
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) GetShow(id int64) (*models.Show, error) {
	var show models.Show
	query := s.Converter(`
		SELECT id, license_key, club_name, show_type, start_date, end_date,
		       site_name, contact_email, status
		FROM shows
		WHERE id = ?
	`)

	err := s.DB.Get(&show, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get show: %w", err)
	}
	return &show, nil
}

func (s *BaseStore) GetShowByLicense(licenseKey string) (*models.Show, error) {
	var show models.Show
	query := s.Converter(`
		SELECT id, license_key, club_name, show_type, start_date, end_date,
		       site_name, contact_email, status
		FROM shows
		WHERE license_key = ?
	`)

	err := s.DB.Get(&show, query, licenseKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get show by license: %w", err)
	}
	return &show, nil
}

func (s *BaseStore) GetTrial(id int64) (*models.Trial, error) {
	var trial models.Trial
	query := s.Converter(`
		SELECT id, show_id, trial_date, trial_number, trial_type
		FROM trials
		WHERE id = ?
	`)

	err := s.DB.Get(&trial, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}
	return &trial, nil
}

func (s *BaseStore) GetClass(id int64) (*models.Class, error) {
	var class models.Class
	query := s.Converter(`
		SELECT id, trial_id, element, level, section, judge_name, class_order,
		       time_limit, time_limit2, time_limit3
		FROM classes
		WHERE id = ?
	`)

	err := s.DB.Get(&class, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return &class, nil
}

func (s *BaseStore) ListTrials(showID int64) ([]models.Trial, error) {
	var trials []models.Trial
	query := s.Converter(`
		SELECT id, show_id, trial_date, trial_number, trial_type
		FROM trials
		WHERE show_id = ?
		ORDER BY trial_date, trial_number
	`)

	err := s.DB.Select(&trials, query, showID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}
	return trials, nil
}

func (s *BaseStore) ListClasses(trialID int64) ([]models.Class, error) {
	var classes []models.Class
	query := s.Converter(`
		SELECT id, trial_id, element, level, section, judge_name, class_order,
		       time_limit, time_limit2, time_limit3
		FROM classes
		WHERE trial_id = ?
		ORDER BY class_order, id
	`)

	err := s.DB.Select(&classes, query, trialID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return classes, nil
}

func (s *BaseStore) ListEntries(classID int64) ([]models.Entry, error) {
	var entries []models.Entry
	query := s.Converter(`
		SELECT id, class_id, armband, call_name, breed, handler_name, running_order,
		       is_scored, result_status, search_time_seconds,
		       area1_time_seconds, area2_time_seconds, area3_time_seconds,
		       fault_count, placement
		FROM entries
		WHERE class_id = ?
		ORDER BY running_order, armband
	`)

	err := s.DB.Select(&entries, query, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

func (s *BaseStore) UpdateClassTimeLimits(classID int64, limit, limit2, limit3 string) error {
	query := s.Converter(`
		UPDATE classes
		SET time_limit = ?, time_limit2 = ?, time_limit3 = ?
		WHERE id = ?
	`)

	if _, err := s.DB.Exec(query, limit, limit2, limit3, classID); err != nil {
		return fmt.Errorf("failed to update class time limits: %w", err)
	}
	return nil
}

func (s *BaseStore) UpdateEntryResult(entry *models.Entry) error {
	_, err := s.DB.NamedExec(`
		UPDATE entries
		SET is_scored = :is_scored,
		    result_status = :result_status,
		    search_time_seconds = :search_time_seconds,
		    area1_time_seconds = :area1_time_seconds,
		    area2_time_seconds = :area2_time_seconds,
		    area3_time_seconds = :area3_time_seconds,
		    fault_count = :fault_count,
		    placement = :placement
		WHERE id = :id
	`, entry)
	if err != nil {
		return fmt.Errorf("failed to update entry result: %w", err)
	}
	return nil
}

func (s *BaseStore) UpdateEntryPlacement(entryID int64, placement int) error {
	query := s.Converter(`
		UPDATE entries
		SET placement = ?
		WHERE id = ?
	`)

	if _, err := s.DB.Exec(query, placement, entryID); err != nil {
		return fmt.Errorf("failed to update entry placement: %w", err)
	}
	return nil
}

// GetShowSummary returns per-class entry and scored counts for a show,
// joined with the trial and judge context a secretary reads them with.
func (s *BaseStore) GetShowSummary(licenseKey string) ([]ClassSummary, error) {
	var rows []ClassSummary
	query := s.Converter(`
		SELECT
			t.trial_date,
			t.trial_number,
			c.element,
			c.level,
			c.section,
			c.judge_name,
			COUNT(e.id) AS entry_count,
			COALESCE(SUM(CASE WHEN e.is_scored THEN 1 ELSE 0 END), 0) AS scored_count
		FROM shows sh
		JOIN trials t ON t.show_id = sh.id
		JOIN classes c ON c.trial_id = t.id
		LEFT JOIN entries e ON e.class_id = c.id
		WHERE sh.license_key = ?
		GROUP BY t.id, t.trial_date, t.trial_number, c.id, c.element, c.level, c.section, c.judge_name, c.class_order
		ORDER BY t.trial_date, t.trial_number, c.class_order
	`)

	err := s.DB.Select(&rows, query, licenseKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch show summary: %w", err)
	}
	return rows, nil
}
