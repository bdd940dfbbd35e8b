// Package app is the composition root: it builds every long-lived service
// from the loaded configuration and owns their shutdown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/api"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/archive"
	archivegcs "github.com/jsv832/UoL-AI-Expert-Finder/internal/archive/gcs"
	archivelocal "github.com/jsv832/UoL-AI-Expert-Finder/internal/archive/local"
	archivemem "github.com/jsv832/UoL-AI-Expert-Finder/internal/archive/memory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/classify"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/clock/system"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/config"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/dispatcher"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch/headless"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/id/uuid"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/identity"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/keyphrase"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/logging"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/pipeline"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/progress"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/progress/sinks"
	publishermem "github.com/jsv832/UoL-AI-Expert-Finder/internal/publisher/memory"
	publisherps "github.com/jsv832/UoL-AI-Expert-Finder/internal/publisher/pubsub"
	queuemem "github.com/jsv832/UoL-AI-Expert-Finder/internal/queue/memory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/scholar"
	storagemem "github.com/jsv832/UoL-AI-Expert-Finder/internal/storage/memory"
	storagepg "github.com/jsv832/UoL-AI-Expert-Finder/internal/storage/postgres"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// progressRegisterer receives the progress sink collectors. Tests swap in a
// scratch registry so repeated Builds do not collide on collector names.
var progressRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

// App holds the assembled services. Build wires them once at startup; the
// CLI and the serve loop only pull what they need through the accessors.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	lecturers    store.LecturerStore
	progressRepo store.ProgressRepository
	hub          *progress.Hub
	runner       *pipeline.Runner
	jobs         *pipeline.JobStore
	queue        *queuemem.Queue
	dispatcher   *dispatcher.Dispatcher
	server       *api.Server

	// closers run in reverse registration order on Close.
	closers []func(ctx context.Context)
}

// Build assembles the application from cfg. It fails fast: any service that
// cannot be constructed (bad DSN, unreachable bucket directory, missing
// chromedp) aborts startup rather than limping along.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}
	a.onClose(func(context.Context) {
		_ = logger.Sync()
	})

	if cfg.Directory.SchoolsFile != "" {
		if err := directory.LoadSchoolsFile(cfg.Directory.SchoolsFile); err != nil {
			return nil, err
		}
		logger.Info("school registry replaced",
			zap.String("file", cfg.Directory.SchoolsFile),
			zap.Int("schools", len(directory.Schools())))
	}

	if err := a.buildStores(ctx); err != nil {
		return nil, err
	}
	snapshots, err := a.buildArchive(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.buildProgress(); err != nil {
		return nil, err
	}
	client, err := a.buildFetchClient()
	if err != nil {
		return nil, err
	}

	classifier, err := a.buildClassifier()
	if err != nil {
		return nil, err
	}
	extractor := keyphrase.NewExtractor(cfg.Keyphrase.MaxPhrases, cfg.Keyphrase.MaxNgram)

	clk := system.New()
	coordinator := pipeline.NewCoordinator(
		a.lecturers,
		cfg.Keyphrase.ContainmentRatio,
		clk,
		logger.Named("coordinator"),
	)

	scholarBase := strings.TrimRight(cfg.Scholar.BaseURL, "/") + "/citations"
	resolver := scholar.NewResolver(client, scholar.ResolverConfig{
		BaseURL:          scholarBase,
		Institution:      cfg.Directory.Institution,
		AffiliationTerms: cfg.Directory.AffiliationTerms,
		MinMatchScore:    cfg.Scholar.MinMatchScore,
	}, logger.Named("scholar"))
	source := scholar.NewSource(client, cfg.Scholar.PageSize, cfg.Scholar.MaxPages, logger.Named("scholar"))
	index := directory.NewIndex(client, logger.Named("directory"), cfg.Directory.MaxIndexPages)

	runner, err := pipeline.NewRunner(pipeline.Deps{
		Index:       index,
		Profiles:    client,
		Resolver:    resolver,
		Scholar:     source,
		Classifier:  classifier,
		Extractor:   extractor,
		Lecturers:   a.lecturers,
		Coordinator: coordinator,
		Snapshots:   snapshots,
		Publisher:   publisher,
		Progress:    progressEmitter(a.hub),
		Clock:       clk,
	}, pipeline.RunnerConfig{
		Workers:          cfg.Pipeline.Workers,
		ContainmentRatio: cfg.Keyphrase.ContainmentRatio,
		ReportsDir:       cfg.Reports.Dir,
	}, logger.Named("pipeline"))
	if err != nil {
		return nil, err
	}
	a.runner = runner

	a.jobs = pipeline.NewJobStore(clk)
	a.queue = queuemem.NewQueue(cfg.Pipeline.QueueDepth)
	a.onClose(func(context.Context) { a.queue.Close() })
	a.dispatcher = dispatcher.New(a.queue, a.jobs, runner, 1, logger.Named("dispatcher"))
	a.server = api.NewServer(
		a.jobs,
		a.dispatcher,
		a.lecturers,
		a.progressRepo,
		uuid.New(),
		clk,
		cfg,
		logger.Named("api"),
	)

	logger.Info("application services initialized",
		zap.String("environment", cfg.Environment),
		zap.Bool("postgres", cfg.Database.DSN != ""),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.String("archive", cfg.Storage.Backend))
	return a, nil
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Runner returns the pipeline runner for synchronous CLI scrapes.
func (a *App) Runner() *pipeline.Runner { return a.runner }

// Lecturers returns the persisted record store.
func (a *App) Lecturers() store.LecturerStore { return a.lecturers }

// Serve runs the dispatcher and the HTTP API until ctx is canceled, then
// sheds load: the listener stops accepting, in-flight requests get a grace
// window, and the dispatcher drains.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.dispatcher.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	<-dispatchDone
	return nil
}

// Close releases every service in reverse construction order.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func (a *App) onClose(fn func(ctx context.Context)) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildStores(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("using in-memory stores; records are lost on exit")
		mem := storagemem.NewLecturerStore()
		a.lecturers = mem
		a.progressRepo = storagemem.NewProgressStore()
		a.onClose(func(context.Context) { mem.Close() })
		return nil
	}

	lecturers, err := storagepg.NewLecturerStore(ctx, storagepg.LecturerStoreConfig{
		DSN:      a.cfg.Database.DSN,
		Table:    a.cfg.Database.LecturerTable,
		MaxConns: int32(a.cfg.Database.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("build lecturer store: %w", err)
	}
	a.lecturers = lecturers
	a.onClose(func(context.Context) { lecturers.Close() })

	progressStore, err := storagepg.NewProgressStore(ctx, a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("build progress store: %w", err)
	}
	a.progressRepo = progressStore
	a.onClose(func(context.Context) { progressStore.Close() })
	return nil
}

func (a *App) buildArchive(ctx context.Context) (*archive.Snapshotter, error) {
	var blobs archive.BlobStore
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		a.onClose(func(context.Context) { _ = client.Close() })
		blobs, err = archivegcs.New(client, archivegcs.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("build gcs archive: %w", err)
		}
	case config.BackendLocal:
		var err error
		blobs, err = archivelocal.New(archivelocal.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("build local archive: %w", err)
		}
	default:
		blobs = archivemem.NewBlobStore()
	}
	return archive.NewSnapshotter(blobs, a.cfg.Storage.Prefix, a.logger.Named("archive")), nil
}

func (a *App) buildPublisher(ctx context.Context) (pipeline.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.Topic == "" {
		return publishermem.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	topic := client.Topic(a.cfg.PubSub.Topic)
	pub := publisherps.New(topic)
	a.onClose(func(context.Context) {
		pub.Stop()
		_ = client.Close()
	})
	a.logger.Info("pubsub publisher enabled",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic))
	return pub, nil
}

func (a *App) buildProgress() error {
	if !a.cfg.Progress.Enabled {
		return nil
	}
	var sinkList []progress.Sink
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("progress")))
	}
	promSink, err := sinks.NewPrometheusSink(progressRegisterer)
	if err != nil {
		return fmt.Errorf("build prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)
	sinkList = append(sinkList, sinks.NewStoreSink(a.progressRepo, a.logger.Named("progress")))

	a.hub = progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger.Named("progress"),
	}, sinkList...)
	a.onClose(func(ctx context.Context) {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close", zap.Error(err))
		}
	})
	return nil
}

func (a *App) buildFetchClient() (*fetch.Client, error) {
	pool, err := identity.NewPool(a.identities())
	if err != nil {
		return nil, fmt.Errorf("build identity pool: %w", err)
	}

	clientCfg := fetch.ClientConfig{
		Static:     fetch.NewCollyFetcher(a.cfg.FetchTimeout()),
		Identities: pool,
		Retry: fetch.NewExponentialRetryPolicy(
			a.cfg.Fetch.MaxRetries,
			time.Duration(a.cfg.Fetch.BackoffBaseMs)*time.Millisecond,
			time.Duration(a.cfg.Fetch.BackoffMaxMs)*time.Millisecond,
		),
		Detector: fetch.NewBlockDetector(),
		CoolDown: fetch.NewCoolDown(
			time.Duration(a.cfg.Fetch.CooldownBaseSeconds)*time.Second,
			0,
			a.cfg.Fetch.MaxEscalations,
		),
		Limiter: fetch.NewHostLimiter(a.cfg.Fetch.PerHostRPS, a.cfg.Fetch.PerHostBurst),
		Logger:  a.logger.Named("fetch"),
	}

	if a.cfg.Headless.Enabled {
		renderer, err := headless.NewChromedp(headless.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("build headless fetcher: %w", err)
		}
		a.onClose(func(context.Context) { renderer.Close() })
		clientCfg.Headless = renderer
		clientCfg.Heuristic = fetch.NewRenderHeuristic(a.cfg.Headless.MinHTMLBytes)
	}

	return fetch.NewClient(clientCfg)
}

// identities materializes the configured browser personas. Proxies, when
// present, are spread round-robin across the identity list.
func (a *App) identities() []identity.Identity {
	agents := a.cfg.Fetch.UserAgents
	if len(agents) == 0 {
		return identity.Default()
	}
	out := make([]identity.Identity, 0, len(agents))
	for i, ua := range agents {
		ident := identity.Identity{UserAgent: ua, AcceptLanguage: "en-GB,en;q=0.9"}
		if n := len(a.cfg.Fetch.Proxies); n > 0 {
			ident.Proxy = a.cfg.Fetch.Proxies[i%n]
		}
		out = append(out, ident)
	}
	return out
}

func (a *App) buildClassifier() (*classify.Classifier, error) {
	var scorer classify.Scorer
	if a.cfg.Classify.Endpoint != "" {
		zs, err := classify.NewZeroShot(classify.ZeroShotConfig{
			BaseURL: a.cfg.Classify.Endpoint,
			APIKey:  a.cfg.Classify.APIKey,
			Timeout: time.Duration(a.cfg.Classify.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		scorer = zs
		a.logger.Info("using hosted zero-shot scorer", zap.String("endpoint", a.cfg.Classify.Endpoint))
	} else {
		scorer = classify.NewLexiconScorer()
	}
	return classify.NewClassifier(scorer, classify.Config{
		RelatedThreshold:  a.cfg.Classify.Threshold,
		InterestThreshold: a.cfg.Classify.InterestThreshold,
		Override:          a.cfg.Classify.OverrideConfidence,
	}, a.logger.Named("classify"))
}

// progressEmitter avoids handing the runner a typed-nil interface when the
// hub is disabled.
func progressEmitter(hub *progress.Hub) progress.Emitter {
	if hub == nil {
		return nil
	}
	return hub
}
