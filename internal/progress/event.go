package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart      Stage = "JOB_START"
	StageJobHB         Stage = "JOB_HEARTBEAT"
	StageJobDone       Stage = "JOB_DONE"
	StageJobError      Stage = "JOB_ERROR"
	StageStaffFound    Stage = "STAFF_FOUND"
	StageProfileDone   Stage = "PROFILE_DONE"
	StageScholarMatch  Stage = "SCHOLAR_MATCHED"
	StageLecturerDone  Stage = "LECTURER_DONE"
	StageLecturerSkip  Stage = "LECTURER_SKIPPED"
	StageLecturerError Stage = "LECTURER_ERROR"
)

// SchoolScoped reports whether the stage aggregates per school.
func (s Stage) SchoolScoped() bool {
	switch s {
	case StageStaffFound, StageProfileDone, StageScholarMatch,
		StageLecturerDone, StageLecturerSkip, StageLecturerError:
		return true
	default:
		return false
	}
}

// Event captures a single component of scrape progress.
type Event struct {
	// JobID uniquely identifies a scrape run using the 16-byte UUID form.
	JobID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or lecturer milestone occurred.
	Stage Stage
	// School scopes lecturer milestones to the school being scraped.
	School string
	// Lecturer optionally carries the display name the event concerns.
	Lecturer string
	// URL is the optional profile or listing URL behind the milestone.
	URL string
	// Count is the delta applied to the stage's counter. Zero means 1;
	// STAFF_FOUND events covering a whole index page set it explicitly.
	Count int64
	// AI marks LECTURER_DONE events whose record holds confirmed AI skills.
	AI bool
	// Dur captures execution latency for lecturer and job completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == [16]byte{} {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch {
	case e.Stage.SchoolScoped():
		if e.School == "" {
			return fmt.Errorf("%s requires school", e.Stage)
		}
		if e.Count < 0 {
			return fmt.Errorf("%s requires a non-negative count", e.Stage)
		}
	case e.Stage == StageJobStart, e.Stage == StageJobHB, e.Stage == StageJobDone, e.Stage == StageJobError:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Delta returns the counter contribution of the event, defaulting to 1 so
// emitters only set Count for page-sized batches.
func (e Event) Delta() int64 {
	if e.Count > 0 {
		return e.Count
	}
	return 1
}

// JobUUID converts the binary job ID to uuid.UUID for repositories.
func (e Event) JobUUID() uuid.UUID {
	return uuid.UUID(e.JobID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
