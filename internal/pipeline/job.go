// Package pipeline orchestrates scrape runs: it walks staff directories,
// scrapes profile pages, resolves publication records, classifies what it
// finds and persists one document per lecturer.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
)

// Mode selects which pipeline stages a job executes.
type Mode string

// Job modes. Full is the default.
const (
	// ModeDirectory walks staff indexes and profile pages only.
	ModeDirectory Mode = "directory"
	// ModeScholar runs the publication pass only, reusing stored profiles.
	ModeScholar Mode = "scholar"
	// ModeFull runs both passes.
	ModeFull Mode = "full"
)

// ParseMode validates a mode string from config, CLI or API input. An empty
// string means ModeFull.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeDirectory:
		return ModeDirectory, nil
	case ModeScholar:
		return ModeScholar, nil
	case ModeFull, Mode(""):
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want directory, scholar or full)", raw)
	}
}

// Directory reports whether the mode scrapes staff profiles.
func (m Mode) Directory() bool { return m == ModeDirectory || m == ModeFull }

// Scholar reports whether the mode runs the publication pass.
func (m Mode) Scholar() bool { return m == ModeScholar || m == ModeFull }

// Status represents the lifecycle state of a scrape job.
type Status string

// Job status values held in the job registry.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Job represents the metadata held for each submitted scrape request.
type Job struct {
	ID        uuid.UUID          `json:"id"`
	Schools   []directory.School `json:"schools"`
	Mode      Mode               `json:"mode"`
	Force     bool               `json:"force"`
	Status    Status             `json:"status"`
	Submitted time.Time          `json:"submitted_at"`
	Started   *time.Time         `json:"started_at,omitempty"`
	Finished  *time.Time         `json:"finished_at,omitempty"`
	ErrorText string             `json:"error_text,omitempty"`
	Summary   Summary            `json:"summary"`
}

// Summary aggregates what a run achieved.
type Summary struct {
	SchoolsProcessed int    `json:"schools_processed"`
	StaffFound       int    `json:"staff_found"`
	ProfilesScraped  int    `json:"profiles_scraped"`
	ScholarMatches   int    `json:"scholar_matches"`
	LecturersUpdated int    `json:"lecturers_updated"`
	AILecturers      int    `json:"ai_lecturers"`
	Skipped          int    `json:"skipped"`
	Errors           int    `json:"errors"`
	ReportPath       string `json:"report_path,omitempty"`
}
