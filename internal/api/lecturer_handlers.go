package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// listLecturers handles GET /api/v1/lecturers?school=&name=&ai=&skills=&match=.
// skills accepts repeated parameters and comma-separated lists; match chooses
// whether any (default) or all terms must hit.
func (s *Server) listLecturers(w http.ResponseWriter, r *http.Request) {
	q, err := lecturerQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := s.lecturers.List(r.Context(), q)
	if err != nil {
		s.logger.Error("list lecturers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list lecturers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lecturers": recs,
		"count":     len(recs),
	})
}

// lecturerStats handles GET /api/v1/lecturers/stats with per-school totals.
func (s *Server) lecturerStats(w http.ResponseWriter, r *http.Request) {
	recs, err := s.lecturers.List(r.Context(), store.Query{})
	if err != nil {
		s.logger.Error("lecturer stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	grouped := make(map[string]*schoolTotalsDTO)
	aiTotal := 0
	for _, rec := range recs {
		school := rec.School
		if school == "" {
			school = "(unknown)"
		}
		totals, ok := grouped[school]
		if !ok {
			totals = &schoolTotalsDTO{School: school}
			grouped[school] = totals
		}
		totals.Lecturers++
		if rec.IsAILecturer {
			totals.AILecturers++
			aiTotal++
		}
	}
	out := make([]schoolTotalsDTO, 0, len(grouped))
	for _, totals := range grouped {
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].School < out[j].School })
	writeJSON(w, http.StatusOK, map[string]any{
		"schools":      out,
		"lecturers":    len(recs),
		"ai_lecturers": aiTotal,
	})
}

func lecturerQuery(r *http.Request) (store.Query, error) {
	params := r.URL.Query()
	q := store.Query{
		School: strings.TrimSpace(params.Get("school")),
		Name:   strings.TrimSpace(params.Get("name")),
	}
	if raw := params.Get("ai"); raw != "" {
		ai, err := strconv.ParseBool(raw)
		if err != nil {
			return store.Query{}, errors.New("invalid ai")
		}
		q.AIOnly = ai
	}
	for _, group := range params["skills"] {
		for _, term := range strings.Split(group, ",") {
			if term = strings.TrimSpace(term); term != "" {
				q.Skills = append(q.Skills, term)
			}
		}
	}
	switch strings.ToLower(strings.TrimSpace(params.Get("match"))) {
	case "", "any":
	case "all":
		q.MatchAll = true
	default:
		return store.Query{}, errors.New("invalid match (want any or all)")
	}
	return q, nil
}

type schoolTotalsDTO struct {
	School      string `json:"school"`
	Lecturers   int    `json:"lecturers"`
	AILecturers int    `json:"ai_lecturers"`
}
