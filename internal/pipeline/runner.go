package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/archive"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/classify"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/clock/system"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/keyphrase"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/progress"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// DefaultWorkers is the per-school lecturer pool size. Two is deliberately
// low: every worker hammers the same two hosts, and politeness beats speed.
const DefaultWorkers = 2

// Published event types.
const (
	EventLecturerUpdated = "lecturer-updated"
	EventJobFinished     = "job-finished"
)

// RunnerConfig controls Runner behavior.
type RunnerConfig struct {
	// Workers bounds the lecturer pool per school.
	Workers int
	// ContainmentRatio is the keyphrase dedup bound.
	ContainmentRatio float64
	// ReportsDir receives per-run delta reports; empty disables them.
	ReportsDir string
}

// Deps bundles the pipeline stages the runner drives. Index, Lecturers,
// Coordinator and Classifier are required; the rest degrade gracefully when
// absent (no archive, no events, no publication pass).
type Deps struct {
	Index       Discoverer
	Profiles    ProfileFetcher
	Resolver    AuthorResolver
	Scholar     PublicationSource
	Classifier  Classifier
	Extractor   *keyphrase.Extractor
	Lecturers   store.LecturerStore
	Coordinator *Coordinator
	Snapshots   *archive.Snapshotter
	Publisher   Publisher
	Progress    progress.Emitter
	Clock       Clock
}

// Runner executes one scrape job at a time: per school it discovers staff
// stubs, then processes lecturers on a bounded pool, each strictly
// sequential through profile, publications, classification and upsert.
type Runner struct {
	deps   Deps
	cfg    RunnerConfig
	logger *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(deps Deps, cfg RunnerConfig, logger *zap.Logger) (*Runner, error) {
	if deps.Index == nil {
		return nil, errors.New("pipeline: discoverer is required")
	}
	if deps.Lecturers == nil {
		return nil, errors.New("pipeline: lecturer store is required")
	}
	if deps.Coordinator == nil {
		return nil, errors.New("pipeline: coordinator is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if deps.Extractor == nil {
		deps.Extractor = keyphrase.NewExtractor(0, 0)
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run executes job and returns its summary. The error is non-nil when the
// run was canceled or produced nothing but failures; individual lecturer
// failures never abort the batch.
func (r *Runner) Run(ctx context.Context, job Job) (Summary, error) {
	started := r.deps.Clock.Now()
	log := r.logger.With(zap.String("job_id", job.ID.String()))
	log.Info("scrape started",
		zap.Int("schools", len(job.Schools)),
		zap.String("mode", string(job.Mode)),
		zap.Bool("force", job.Force))
	r.emit(job, progress.Event{Stage: progress.StageJobStart})

	if job.Mode.Scholar() && (r.deps.Resolver == nil || r.deps.Scholar == nil) {
		err := fmt.Errorf("mode %s needs a resolver and a publication source", job.Mode)
		r.emit(job, progress.Event{Stage: progress.StageJobError, Note: err.Error()})
		return Summary{}, err
	}
	if job.Mode.Directory() && r.deps.Profiles == nil {
		err := fmt.Errorf("mode %s needs a profile fetcher", job.Mode)
		r.emit(job, progress.Event{Stage: progress.StageJobError, Note: err.Error()})
		return Summary{}, err
	}

	report, err := OpenReport(r.cfg.ReportsDir, job.ID, started)
	if err != nil {
		log.Warn("delta report disabled", zap.Error(err))
	}

	tally := &tally{}
	for _, school := range job.Schools {
		if ctx.Err() != nil {
			break
		}
		r.runSchool(ctx, job, school, tally, report, log)
		processed := tally.schoolDone()
		r.emit(job, progress.Event{
			Stage: progress.StageJobHB,
			Count: int64(processed),
			Note:  school.Name,
		})
	}

	if err := report.Close(); err != nil {
		log.Warn("delta report close failed", zap.Error(err))
	}
	sum := tally.summary()
	if report.Rows() > 0 {
		sum.ReportPath = report.Path()
	}

	dur := r.deps.Clock.Now().Sub(started)
	switch {
	case ctx.Err() != nil:
		r.emit(job, progress.Event{Stage: progress.StageJobError, Dur: dur, Note: "canceled"})
		r.publishJobFinished(job, sum, string(StatusCanceled))
		log.Warn("scrape canceled", zap.Duration("duration", dur))
		return sum, fmt.Errorf("scrape canceled: %w", ctx.Err())
	case sum.StaffFound == 0 && sum.Errors > 0:
		note := "no staff discovered"
		r.emit(job, progress.Event{Stage: progress.StageJobError, Dur: dur, Note: note})
		r.publishJobFinished(job, sum, string(StatusFailed))
		log.Error("scrape failed", zap.Duration("duration", dur), zap.Int("errors", sum.Errors))
		return sum, errors.New(note)
	default:
		r.emit(job, progress.Event{Stage: progress.StageJobDone, Dur: dur})
		r.publishJobFinished(job, sum, string(StatusSucceeded))
		log.Info("scrape finished",
			zap.Duration("duration", dur),
			zap.Int("staff_found", sum.StaffFound),
			zap.Int("lecturers_updated", sum.LecturersUpdated),
			zap.Int("ai_lecturers", sum.AILecturers),
			zap.Int("skipped", sum.Skipped),
			zap.Int("errors", sum.Errors))
		return sum, nil
	}
}

func (r *Runner) runSchool(
	ctx context.Context,
	job Job,
	school directory.School,
	tally *tally,
	report *Report,
	log *zap.Logger,
) {
	log = log.With(zap.String("school", school.Name))

	stubs, err := r.deps.Index.Discover(ctx, school)
	if err != nil {
		tally.failed()
		r.emit(job, progress.Event{
			Stage:  progress.StageLecturerError,
			School: school.Name,
			URL:    school.StaffURL,
			Note:   "staff discovery: " + err.Error(),
		})
		log.Warn("staff discovery incomplete", zap.Int("stubs", len(stubs)), zap.Error(err))
	}
	if len(stubs) == 0 {
		return
	}
	tally.staff(len(stubs))
	r.emit(job, progress.Event{
		Stage:  progress.StageStaffFound,
		School: school.Name,
		URL:    school.StaffURL,
		Count:  int64(len(stubs)),
	})
	log.Info("staff discovered", zap.Int("count", len(stubs)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, stub := range stubs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.processLecturer(gctx, job, school, stub, tally, report, log)
			return nil
		})
	}
	_ = g.Wait()
}

// processLecturer runs one lecturer through every stage the job's mode asks
// for. Failures are absorbed here; the pool keeps going.
func (r *Runner) processLecturer(
	ctx context.Context,
	job Job,
	school directory.School,
	stub lecturer.Stub,
	tally *tally,
	report *Report,
	log *zap.Logger,
) {
	if ctx.Err() != nil {
		return
	}
	start := r.deps.Clock.Now()
	log = log.With(zap.String("lecturer", stub.Name))

	id, err := lecturer.NormalizeProfileURL(stub.ProfileURL)
	if err != nil {
		tally.failed()
		metrics.ObserveLecturer(school.Name, "error")
		r.emit(job, progress.Event{
			Stage:    progress.StageLecturerError,
			School:   school.Name,
			Lecturer: stub.Name,
			Note:     "profile link: " + err.Error(),
		})
		log.Warn("unusable profile link", zap.String("url", stub.ProfileURL), zap.Error(err))
		return
	}

	before, err := r.deps.Lecturers.Get(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		tally.failed()
		metrics.ObserveLecturer(school.Name, "error")
		r.emit(job, progress.Event{
			Stage:    progress.StageLecturerError,
			School:   school.Name,
			Lecturer: stub.Name,
			URL:      id,
			Note:     "store: " + err.Error(),
		})
		log.Error("lecturer lookup failed", zap.Error(err))
		return
	}
	if before != nil && before.ScholarProcessed && !job.Force {
		tally.skipped()
		metrics.ObserveLecturer(school.Name, "skipped")
		r.emit(job, progress.Event{
			Stage:    progress.StageLecturerSkip,
			School:   school.Name,
			Lecturer: stub.Name,
			URL:      id,
			Note:     "already processed",
		})
		log.Debug("lecturer skipped")
		return
	}

	rec := &lecturer.Record{
		ID:         id,
		Name:       stub.Name,
		School:     stub.School,
		Department: stub.Department,
		ScrapedAt:  start,
	}
	if rec.School == "" {
		rec.School = school.Name
	}

	var skills []string
	completed := true

	if job.Mode.Directory() {
		if !r.scrapeProfile(ctx, job, school, rec, &skills, tally, log) {
			return
		}
	}
	if rec.ScholarProfile == "" && before != nil {
		rec.ScholarProfile = before.ScholarProfile
	}
	if job.Mode.Scholar() {
		completed = r.scholarPass(ctx, job, school, rec, &skills, tally, log)
	}

	rec.AISkills = keyphrase.Dedupe(skills, r.cfg.ContainmentRatio)
	rec.RecomputeAIStatus()

	persisted, err := r.deps.Coordinator.Upsert(ctx, rec, job.Force)
	if err != nil {
		tally.failed()
		metrics.ObserveLecturer(school.Name, "error")
		r.emit(job, progress.Event{
			Stage:    progress.StageLecturerError,
			School:   school.Name,
			Lecturer: rec.Name,
			URL:      id,
			Note:     "store: " + err.Error(),
		})
		log.Error("lecturer upsert failed", zap.Error(err))
		return
	}
	tally.updated(persisted.IsAILecturer)

	if job.Mode.Scholar() && len(persisted.Publications) > 0 {
		r.fillCollaborators(ctx, persisted, log)
	}
	if err := report.Append(ComputeDelta(before, persisted)); err != nil {
		log.Warn("delta report append failed", zap.Error(err))
	}
	r.publishLecturer(ctx, job, persisted)

	if !completed {
		// The Scholar pass aborted partway; partial data is stored and the
		// record stays unprocessed, so the next run picks it up again.
		return
	}
	metrics.ObserveLecturer(school.Name, "processed")
	r.emit(job, progress.Event{
		Stage:    progress.StageLecturerDone,
		School:   school.Name,
		Lecturer: persisted.Name,
		URL:      persisted.ID,
		AI:       persisted.IsAILecturer,
		Dur:      r.deps.Clock.Now().Sub(start),
	})
	log.Info("lecturer processed",
		zap.Bool("ai", persisted.IsAILecturer),
		zap.Int("skills", len(persisted.AISkills)),
		zap.Int("publications", len(persisted.Publications)))
}

// scrapeProfile fills rec from the staff profile page and harvests skills
// from declared expertise and the bio. It returns false when nothing could
// be fetched, in which case the lecturer is dropped from this run.
func (r *Runner) scrapeProfile(
	ctx context.Context,
	job Job,
	school directory.School,
	rec *lecturer.Record,
	skills *[]string,
	tally *tally,
	log *zap.Logger,
) bool {
	page, err := r.deps.Profiles.Fetch(ctx, rec.ID, directory.ProfileSelector)
	if err != nil {
		tally.failed()
		metrics.ObserveLecturer(school.Name, "error")
		r.emit(job, progress.Event{
			Stage:    progress.StageLecturerError,
			School:   school.Name,
			Lecturer: rec.Name,
			URL:      rec.ID,
			Note:     "profile fetch: " + err.Error(),
		})
		log.Warn("profile fetch failed", zap.Error(err))
		return false
	}
	r.snapshot(ctx, job, page.FinalURL, page.Body, log)

	profile, err := directory.ParseProfile(page.Body, rec.ID)
	if err != nil {
		// The stub still names the lecturer; carry on without page fields.
		log.Warn("profile parse failed", zap.Error(err))
	} else {
		if profile.Name != "" {
			rec.Name = profile.Name
		}
		rec.Position = profile.Position
		rec.SkillsExpertise = profile.Expertise
		rec.Bio = profile.Bio
		if profile.ScholarURL != "" {
			rec.ScholarProfile = profile.ScholarURL
		}
		for _, item := range profile.Expertise {
			r.harvest(ctx, item, r.deps.Classifier.Classify, skills, log)
		}
		if profile.Bio != "" {
			r.harvest(ctx, profile.Bio, r.deps.Classifier.Classify, skills, log)
		}
	}

	tally.profileScraped()
	r.emit(job, progress.Event{
		Stage:    progress.StageProfileDone,
		School:   school.Name,
		Lecturer: rec.Name,
		URL:      rec.ID,
	})
	return true
}

// scholarPass resolves the lecturer's author profile and walks its
// publication listing. It returns false when the pass aborted early (block
// ceiling, network failure) so the caller can leave the record unprocessed.
func (r *Runner) scholarPass(
	ctx context.Context,
	job Job,
	school directory.School,
	rec *lecturer.Record,
	skills *[]string,
	tally *tally,
	log *zap.Logger,
) bool {
	if rec.ScholarProfile == "" {
		res, err := r.deps.Resolver.Resolve(ctx, rec.Name)
		if err != nil {
			tally.failed()
			metrics.ObserveLecturer(school.Name, "error")
			r.emit(job, progress.Event{
				Stage:    progress.StageLecturerError,
				School:   school.Name,
				Lecturer: rec.Name,
				URL:      rec.ID,
				Note:     "author search: " + err.Error(),
			})
			log.Warn("author search failed", zap.Error(err))
			return false
		}
		if !res.Found() {
			// No profile is a recorded outcome, not a failure. The record
			// counts as processed so the search is not repeated every run.
			rec.ScholarProcessed = true
			rec.ScholarScrapedAt = r.deps.Clock.Now()
			log.Debug("no author profile", zap.String("outcome", string(res.Outcome)))
			return true
		}
		rec.ScholarProfile = res.ProfileURL
		rec.ScholarInterests = res.Interests
		tally.scholarMatched()
		r.emit(job, progress.Event{
			Stage:    progress.StageScholarMatch,
			School:   school.Name,
			Lecturer: rec.Name,
			URL:      rec.ScholarProfile,
		})
	} else {
		// A staff-page or stored profile link skips search and affiliation
		// checks entirely.
		if len(rec.ScholarInterests) == 0 {
			interests, err := r.deps.Scholar.Interests(ctx, rec.ScholarProfile)
			if err != nil {
				log.Warn("profile header fetch failed", zap.Error(err))
			} else {
				rec.ScholarInterests = interests
			}
		}
		tally.scholarMatched()
		r.emit(job, progress.Event{
			Stage:    progress.StageScholarMatch,
			School:   school.Name,
			Lecturer: rec.Name,
			URL:      rec.ScholarProfile,
			Note:     "known profile link",
		})
	}

	pubs, err := r.deps.Scholar.Publications(ctx, rec.ScholarProfile)
	if len(pubs) > 0 {
		rec.Publications = pubs
	}
	if err != nil {
		tally.failed()
		metrics.ObserveLecturer(school.Name, "error")
		r.emit(job, progress.Event{
			Stage:    progress.StageLecturerError,
			School:   school.Name,
			Lecturer: rec.Name,
			URL:      rec.ScholarProfile,
			Note:     "publications: " + err.Error(),
		})
		log.Warn("publication listing incomplete",
			zap.Int("publications", len(pubs)),
			zap.Error(err))
		r.classifyScholar(ctx, rec, skills, log)
		return false
	}

	r.classifyScholar(ctx, rec, skills, log)
	rec.ScholarProcessed = true
	rec.ScholarScrapedAt = r.deps.Clock.Now()
	return true
}

func (r *Runner) classifyScholar(ctx context.Context, rec *lecturer.Record, skills *[]string, log *zap.Logger) {
	for _, interest := range rec.ScholarInterests {
		r.harvest(ctx, interest, r.deps.Classifier.ClassifyInterest, skills, log)
	}
	for _, pub := range rec.Publications {
		r.harvest(ctx, pub.Title, r.deps.Classifier.ClassifyTitle, skills, log)
	}
}

// harvest classifies one text unit and, when relevant, folds its keyphrases
// into the run's skill set. Scoring failures cost the unit, nothing more.
func (r *Runner) harvest(
	ctx context.Context,
	text string,
	score func(context.Context, string) (classify.Verdict, error),
	skills *[]string,
	log *zap.Logger,
) {
	verdict, err := score(ctx, text)
	if err != nil {
		log.Warn("classification failed", zap.Error(err))
		return
	}
	if !verdict.Relevant {
		return
	}
	*skills = append(*skills, r.deps.Extractor.Extract(text)...)
}

// fillCollaborators recomputes the record's collaborator list against the
// stored name directory and persists it when it changed.
func (r *Runner) fillCollaborators(ctx context.Context, rec *lecturer.Record, log *zap.Logger) {
	names, err := r.deps.Lecturers.Names(ctx)
	if err != nil {
		log.Warn("name directory unavailable", zap.Error(err))
		return
	}
	collabs := MatchCollaborators(rec, names)
	if collaboratorsEqual(rec.Collaborators, collabs) {
		return
	}
	rec.Collaborators = collabs
	if err := r.deps.Lecturers.Put(ctx, rec); err != nil {
		log.Warn("collaborator update failed", zap.Error(err))
	}
}

func (r *Runner) snapshot(ctx context.Context, job Job, pageURL string, body []byte, log *zap.Logger) {
	uri, err := r.deps.Snapshots.Snapshot(ctx, job.ID.String(), pageURL, body)
	if err != nil {
		log.Warn("page archive failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	if uri != "" {
		log.Debug("page archived", zap.String("blob_uri", uri))
	}
}

func (r *Runner) publishLecturer(ctx context.Context, job Job, rec *lecturer.Record) {
	if r.deps.Publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":         job.ID.String(),
		"profile_url":    rec.ID,
		"name":           rec.Name,
		"school":         rec.School,
		"is_ai_lecturer": rec.IsAILecturer,
		"ai_skills":      rec.AISkills,
		"timestamp":      r.deps.Clock.Now().Format(time.RFC3339),
	}
	if _, err := r.deps.Publisher.Publish(ctx, EventLecturerUpdated, payload); err != nil {
		r.logger.Warn("lecturer event publish failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
}

// publishJobFinished reports the run outcome. It runs on a detached context
// so a canceled job still gets its terminal event out.
func (r *Runner) publishJobFinished(job Job, sum Summary, status string) {
	if r.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload := map[string]any{
		"job_id":            job.ID.String(),
		"status":            status,
		"schools_processed": sum.SchoolsProcessed,
		"staff_found":       sum.StaffFound,
		"lecturers_updated": sum.LecturersUpdated,
		"ai_lecturers":      sum.AILecturers,
		"skipped":           sum.Skipped,
		"errors":            sum.Errors,
		"timestamp":         r.deps.Clock.Now().Format(time.RFC3339),
	}
	if _, err := r.deps.Publisher.Publish(ctx, EventJobFinished, payload); err != nil {
		r.logger.Warn("job event publish failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
}

func (r *Runner) emit(job Job, evt progress.Event) {
	if r.deps.Progress == nil {
		return
	}
	evt.JobID = progress.UUIDToBytes(job.ID)
	if evt.TS.IsZero() {
		evt.TS = r.deps.Clock.Now()
	}
	r.deps.Progress.Emit(evt)
}

// tally accumulates summary counters across the lecturer pool.
type tally struct {
	mu  sync.Mutex
	sum Summary
}

func (t *tally) staff(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.StaffFound += n
}

func (t *tally) profileScraped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.ProfilesScraped++
}

func (t *tally) scholarMatched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.ScholarMatches++
}

func (t *tally) updated(ai bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.LecturersUpdated++
	if ai {
		t.sum.AILecturers++
	}
}

func (t *tally) skipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.Skipped++
}

func (t *tally) failed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.Errors++
}

func (t *tally) schoolDone() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.SchoolsProcessed++
	return t.sum.SchoolsProcessed
}

func (t *tally) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sum
}
