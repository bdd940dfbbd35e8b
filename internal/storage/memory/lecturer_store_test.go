package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

func seedLecturers(t *testing.T, s *LecturerStore) {
	t.Helper()
	ctx := context.Background()
	records := []*lecturer.Record{
		{
			ID:       "https://example.ac.uk/staff/ada",
			Name:     "Ada Lovelace",
			School:   "School of Computing",
			AISkills: []string{"machine learning", "neural networks"},
			Publications: []lecturer.Publication{
				{Title: "Machine learning for compiler engineers", Year: 2022},
			},
			IsAILecturer: true,
		},
		{
			ID:              "https://example.ac.uk/staff/grace",
			Name:            "Grace Hopper",
			School:          "School of Computing",
			AISkills:        []string{"computer vision"},
			SkillsExpertise: []string{"Compilers"},
			IsAILecturer:    true,
		},
		{
			ID:              "https://example.ac.uk/staff/herodotus",
			Name:            "Herodotus of Halicarnassus",
			School:          "School of History",
			SkillsExpertise: []string{"Ancient Greece"},
		},
	}
	for _, rec := range records {
		if err := s.Put(ctx, rec); err != nil {
			t.Fatalf("Put(%s) error = %v", rec.ID, err)
		}
	}
}

func TestLecturerStorePutGet(t *testing.T) {
	t.Parallel()

	s := NewLecturerStore()
	ctx := context.Background()

	if err := s.Put(ctx, &lecturer.Record{}); err == nil {
		t.Fatal("expected error for record without id")
	}
	if _, err := s.Get(ctx, "https://example.ac.uk/staff/ada"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	rec := &lecturer.Record{
		ID:       "https://example.ac.uk/staff/ada",
		Name:     "Ada Lovelace",
		AISkills: []string{"machine learning"},
	}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec.AISkills[0] = "mutated after put"

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AISkills[0] != "machine learning" {
		t.Fatalf("expected Put to store a copy, got skills %v", got.AISkills)
	}
	got.Name = "modified"
	if s.records[rec.ID].Name != "Ada Lovelace" {
		t.Fatal("expected Get to return a copy")
	}

	update := &lecturer.Record{ID: rec.ID, Name: "Ada Lovelace", Position: "Professor"}
	if err := s.Put(ctx, update); err != nil {
		t.Fatalf("Put() update error = %v", err)
	}
	got, err = s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() after update error = %v", err)
	}
	if got.Position != "Professor" || len(got.AISkills) != 0 {
		t.Fatalf("expected update to replace record, got %+v", got)
	}
}

func TestLecturerStoreList(t *testing.T) {
	t.Parallel()

	s := NewLecturerStore()
	seedLecturers(t, s)
	ctx := context.Background()

	cases := []struct {
		name  string
		query store.Query
		want  []string
	}{
		{
			name:  "all ordered by name",
			query: store.Query{},
			want:  []string{"Ada Lovelace", "Grace Hopper", "Herodotus of Halicarnassus"},
		},
		{
			name:  "ai only",
			query: store.Query{AIOnly: true},
			want:  []string{"Ada Lovelace", "Grace Hopper"},
		},
		{
			name:  "school is case-insensitive",
			query: store.Query{School: "school of computing"},
			want:  []string{"Ada Lovelace", "Grace Hopper"},
		},
		{
			name:  "name substring",
			query: store.Query{Name: "hero"},
			want:  []string{"Herodotus of Halicarnassus"},
		},
		{
			name:  "skill against ai skills",
			query: store.Query{Skills: []string{"machine-learning"}},
			want:  []string{"Ada Lovelace"},
		},
		{
			name:  "skill against declared expertise",
			query: store.Query{Skills: []string{"compilers"}},
			want:  []string{"Ada Lovelace", "Grace Hopper"},
		},
		{
			name:  "any skill",
			query: store.Query{Skills: []string{"neural networks", "ancient greece"}},
			want:  []string{"Ada Lovelace", "Herodotus of Halicarnassus"},
		},
		{
			name:  "all skills",
			query: store.Query{Skills: []string{"machine learning", "compilers"}, MatchAll: true},
			want:  []string{"Ada Lovelace"},
		},
		{
			name:  "no match",
			query: store.Query{Skills: []string{"quantum knitting"}},
			want:  nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.List(ctx, tc.query)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("List() returned %d records, want %d", len(got), len(tc.want))
			}
			for i, rec := range got {
				if rec.Name != tc.want[i] {
					t.Fatalf("List()[%d] = %s, want %s", i, rec.Name, tc.want[i])
				}
			}
		})
	}
}

func TestLecturerStoreListReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewLecturerStore()
	seedLecturers(t, s)
	ctx := context.Background()

	got, err := s.List(ctx, store.Query{Name: "ada"})
	if err != nil || len(got) != 1 {
		t.Fatalf("List() unexpected result: records=%v err=%v", got, err)
	}
	got[0].AISkills[0] = "mutated"
	if s.records[got[0].ID].AISkills[0] != "machine learning" {
		t.Fatal("expected List to return copies")
	}
}

func TestLecturerStoreNames(t *testing.T) {
	t.Parallel()

	s := NewLecturerStore()
	seedLecturers(t, s)
	ctx := context.Background()

	if err := s.Put(ctx, &lecturer.Record{ID: "https://example.ac.uk/staff/anon"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	names, err := s.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("Names() returned %d entries, want 3", len(names))
	}
	ref, ok := names["lovelace|a"]
	if !ok {
		t.Fatalf("missing key lovelace|a in %v", names)
	}
	if ref.ProfileURL != "https://example.ac.uk/staff/ada" || ref.Name != "Ada Lovelace" {
		t.Fatalf("unexpected ref %+v", ref)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 4 {
		t.Fatalf("Count() = %d, want 4", count)
	}
}
