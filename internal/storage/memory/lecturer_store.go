package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// LecturerStore provides an in-memory implementation for development/testing.
type LecturerStore struct {
	mu      sync.RWMutex
	records map[string]*lecturer.Record
}

// NewLecturerStore constructs an empty LecturerStore.
func NewLecturerStore() *LecturerStore {
	return &LecturerStore{records: make(map[string]*lecturer.Record)}
}

// Put inserts or replaces the record keyed by rec.ID.
func (s *LecturerStore) Put(_ context.Context, rec *lecturer.Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Get fetches a record by normalized profile URL.
func (s *LecturerStore) Get(_ context.Context, profileURL string) (*lecturer.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[profileURL]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns copies of the records matching q, ordered by name.
func (s *LecturerStore) List(_ context.Context, q store.Query) ([]*lecturer.Record, error) {
	match, err := newRecordMatcher(q)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*lecturer.Record
	for _, rec := range s.records {
		if match.matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Names maps the name key of every stored record to its identity.
func (s *LecturerStore) Names(_ context.Context) (map[string]store.NameRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]store.NameRef, len(s.records))
	for _, rec := range s.records {
		key := lecturer.NameKey(rec.Name)
		if key == "" {
			continue
		}
		out[key] = store.NameRef{ProfileURL: rec.ID, Name: rec.Name}
	}
	return out, nil
}

// Count reports the number of stored records.
func (s *LecturerStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close is a no-op for the in-memory store.
func (s *LecturerStore) Close() {}

// recordMatcher evaluates a store.Query against records in memory. Skill
// patterns are compiled once per List call.
type recordMatcher struct {
	q      store.Query
	skills []*regexp.Regexp
}

func newRecordMatcher(q store.Query) (*recordMatcher, error) {
	m := &recordMatcher{q: q}
	for _, core := range q.SkillPatterns() {
		re, err := regexp.Compile(`(?i)\b(?:` + core + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compile skill pattern: %w", err)
		}
		m.skills = append(m.skills, re)
	}
	return m, nil
}

func (m *recordMatcher) matches(rec *lecturer.Record) bool {
	if m.q.School != "" && !strings.EqualFold(m.q.School, rec.School) {
		return false
	}
	if m.q.Name != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(m.q.Name)) {
		return false
	}
	if m.q.AIOnly && !rec.IsAILecturer {
		return false
	}
	if len(m.skills) == 0 {
		return true
	}
	for _, re := range m.skills {
		hit := matchesSkill(rec, re)
		if hit && !m.q.MatchAll {
			return true
		}
		if !hit && m.q.MatchAll {
			return false
		}
	}
	return m.q.MatchAll
}

func matchesSkill(rec *lecturer.Record, re *regexp.Regexp) bool {
	for _, skill := range rec.AISkills {
		if re.MatchString(skill) {
			return true
		}
	}
	for _, pub := range rec.Publications {
		if re.MatchString(pub.Title) {
			return true
		}
	}
	for _, item := range rec.SkillsExpertise {
		if re.MatchString(item) {
			return true
		}
	}
	return false
}
