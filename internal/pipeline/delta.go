package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/keyphrase"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// Delta captures what one scrape added for one lecturer compared to the
// record stored before the run.
type Delta struct {
	School           string
	Lecturer         string
	ProfileURL       string
	NewSkills        []string
	NewExpertise     []string
	NewInterests     []string
	NewTitles        []string
	NewCollaborators []string
}

// Empty reports whether the scrape added nothing new.
func (d Delta) Empty() bool {
	return len(d.NewSkills) == 0 &&
		len(d.NewExpertise) == 0 &&
		len(d.NewInterests) == 0 &&
		len(d.NewTitles) == 0 &&
		len(d.NewCollaborators) == 0
}

// ComputeDelta diffs the persisted record against its pre-run state. A nil
// before means the lecturer is new, so every stored value counts as added.
func ComputeDelta(before, after *lecturer.Record) Delta {
	d := Delta{
		School:     after.School,
		Lecturer:   after.Name,
		ProfileURL: after.ID,
	}
	var (
		prevSkills    []string
		prevExpertise []string
		prevInterests []string
		prevPubs      []lecturer.Publication
		prevCollabs   []lecturer.Collaborator
	)
	if before != nil {
		prevSkills = before.AISkills
		prevExpertise = before.SkillsExpertise
		prevInterests = before.ScholarInterests
		prevPubs = before.Publications
		prevCollabs = before.Collaborators
	}
	d.NewSkills = newPhrases(prevSkills, after.AISkills)
	d.NewExpertise = newPhrases(prevExpertise, after.SkillsExpertise)
	d.NewInterests = newPhrases(prevInterests, after.ScholarInterests)
	d.NewTitles = newTitles(prevPubs, after.Publications)
	d.NewCollaborators = newCollaborators(prevCollabs, after.Collaborators)
	return d
}

func newPhrases(old, current []string) []string {
	if len(current) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(old))
	for _, phrase := range old {
		known[keyphrase.Canonical(phrase)] = struct{}{}
	}
	var added []string
	for _, phrase := range current {
		if _, ok := known[keyphrase.Canonical(phrase)]; !ok {
			added = append(added, phrase)
		}
	}
	return added
}

func newTitles(old, current []lecturer.Publication) []string {
	if len(current) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(old))
	for _, pub := range old {
		known[pub.Key()] = struct{}{}
	}
	var added []string
	for _, pub := range current {
		if _, ok := known[pub.Key()]; !ok {
			added = append(added, pub.Title)
		}
	}
	return added
}

func newCollaborators(old, current []lecturer.Collaborator) []string {
	if len(current) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(old))
	for _, collab := range old {
		known[collab.ProfileURL] = struct{}{}
	}
	var added []string
	for _, collab := range current {
		if _, ok := known[collab.ProfileURL]; !ok {
			added = append(added, collab.Name)
		}
	}
	return added
}

// reportHeader is the column layout of a run's delta report.
var reportHeader = []string{
	"school", "lecturer", "profile_url",
	"new_skills", "new_expertise", "new_interests",
	"new_publications", "new_collaborators",
}

// Report appends per-lecturer deltas to one CSV file for the run. A nil
// *Report is a no-op so callers need not branch on whether reporting is
// enabled.
type Report struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	path string
	rows int
}

// OpenReport creates the run's delta report under dir. An empty dir disables
// reporting and returns (nil, nil).
func OpenReport(dir string, jobID uuid.UUID, now time.Time) (*Report, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	name := fmt.Sprintf("scrape-%s-%s.csv", now.UTC().Format("20060102-150405"), shortJobID(jobID))
	path := filepath.Join(dir, name)
	file, err := os.Create(path) // #nosec G304 -- path is assembled from config and a UUID.
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(reportHeader); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return &Report{file: file, w: w, path: path}, nil
}

// Append writes one delta row. Empty deltas are dropped silently.
func (r *Report) Append(d Delta) error {
	if r == nil || d.Empty() {
		return nil
	}
	row := []string{
		d.School,
		d.Lecturer,
		d.ProfileURL,
		joinList(d.NewSkills),
		joinList(d.NewExpertise),
		joinList(d.NewInterests),
		joinList(d.NewTitles),
		joinList(d.NewCollaborators),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	r.rows++
	return nil
}

// Close flushes and closes the report file.
func (r *Report) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	flushErr := r.w.Error()
	closeErr := r.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush report: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close report: %w", closeErr)
	}
	return nil
}

// Path returns the report location, empty when reporting is disabled.
func (r *Report) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Rows returns how many delta rows were written.
func (r *Report) Rows() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

func joinList(values []string) string {
	return strings.Join(values, "; ")
}

func shortJobID(jobID uuid.UUID) string {
	s := jobID.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
