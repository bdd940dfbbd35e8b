package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

func TestComputeDeltaNewRecord(t *testing.T) {
	t.Parallel()

	after := &lecturer.Record{
		ID:               "https://eps.leeds.ac.uk/computing/staff/1",
		Name:             "Ada Lovelace",
		School:           "School of Computer Science",
		AISkills:         []string{"machine learning"},
		SkillsExpertise:  []string{"program verification"},
		ScholarInterests: []string{"analytical engines"},
		Publications:     []lecturer.Publication{{Title: "Notes on the Engine", Year: 1843}},
		Collaborators: []lecturer.Collaborator{
			{Name: "Charles Babbage", ProfileURL: "https://eps.leeds.ac.uk/computing/staff/2"},
		},
	}

	d := ComputeDelta(nil, after)
	assert.False(t, d.Empty())
	assert.Equal(t, "School of Computer Science", d.School)
	assert.Equal(t, "Ada Lovelace", d.Lecturer)
	assert.Equal(t, after.ID, d.ProfileURL)
	assert.Equal(t, []string{"machine learning"}, d.NewSkills)
	assert.Equal(t, []string{"program verification"}, d.NewExpertise)
	assert.Equal(t, []string{"analytical engines"}, d.NewInterests)
	assert.Equal(t, []string{"Notes on the Engine"}, d.NewTitles)
	assert.Equal(t, []string{"Charles Babbage"}, d.NewCollaborators)
}

func TestComputeDeltaIgnoresKnownValues(t *testing.T) {
	t.Parallel()

	before := &lecturer.Record{
		AISkills:     []string{"Machine Learning"},
		Publications: []lecturer.Publication{{Title: "Deep Learning Advances", Year: 2020}},
		Collaborators: []lecturer.Collaborator{
			{Name: "Grace Hopper", ProfileURL: "https://eps.leeds.ac.uk/computing/staff/3"},
		},
	}
	after := &lecturer.Record{
		ID:       "https://eps.leeds.ac.uk/computing/staff/1",
		AISkills: []string{"machine learning", "neural networks"},
		Publications: []lecturer.Publication{
			{Title: "deep learning advances", Year: 2020},
			{Title: "Transformers in Practice", Year: 2024},
		},
		Collaborators: []lecturer.Collaborator{
			{Name: "Grace Hopper", ProfileURL: "https://eps.leeds.ac.uk/computing/staff/3"},
			{Name: "Alan Turing", ProfileURL: "https://eps.leeds.ac.uk/computing/staff/4"},
		},
	}

	d := ComputeDelta(before, after)
	assert.Equal(t, []string{"neural networks"}, d.NewSkills)
	assert.Equal(t, []string{"Transformers in Practice"}, d.NewTitles)
	assert.Equal(t, []string{"Alan Turing"}, d.NewCollaborators)
}

func TestComputeDeltaUnchangedRecordIsEmpty(t *testing.T) {
	t.Parallel()

	rec := &lecturer.Record{
		ID:           "https://eps.leeds.ac.uk/computing/staff/1",
		AISkills:     []string{"machine learning"},
		Publications: []lecturer.Publication{{Title: "Notes", Year: 1843}},
	}
	assert.True(t, ComputeDelta(rec, rec).Empty())
}

func TestReportWritesDeltaRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jobID := uuid.New()
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	report, err := OpenReport(dir, jobID, now)
	require.NoError(t, err)
	require.NotNil(t, report)

	wantName := fmt.Sprintf("scrape-20251103-090000-%s.csv", jobID.String()[:8])
	assert.Equal(t, filepath.Join(dir, wantName), report.Path())

	require.NoError(t, report.Append(Delta{
		School:     "School of Computer Science",
		Lecturer:   "Ada Lovelace",
		ProfileURL: "https://eps.leeds.ac.uk/computing/staff/1",
		NewSkills:  []string{"machine learning", "neural networks"},
		NewTitles:  []string{"Notes on the Engine"},
	}))
	// Empty deltas never reach the file.
	require.NoError(t, report.Append(Delta{School: "School of Law", Lecturer: "Quiet Scholar"}))
	assert.Equal(t, 1, report.Rows())
	require.NoError(t, report.Close())

	file, err := os.Open(report.Path())
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, reportHeader, rows[0])
	assert.Equal(t, []string{
		"School of Computer Science",
		"Ada Lovelace",
		"https://eps.leeds.ac.uk/computing/staff/1",
		"machine learning; neural networks",
		"", "",
		"Notes on the Engine",
		"",
	}, rows[1])
}

func TestReportDisabled(t *testing.T) {
	t.Parallel()

	report, err := OpenReport("", uuid.New(), time.Now())
	require.NoError(t, err)
	require.Nil(t, report)

	// The nil report swallows every call.
	assert.NoError(t, report.Append(Delta{NewSkills: []string{"x"}}))
	assert.NoError(t, report.Close())
	assert.Empty(t, report.Path())
	assert.Zero(t, report.Rows())
}
