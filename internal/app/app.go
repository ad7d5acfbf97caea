package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/nsqio/go-nsq"

	"prospectus/features/document"
	"prospectus/features/draft"
	"prospectus/features/job"
	"prospectus/features/mcp"
	"prospectus/features/stats"
	"prospectus/internal/config"
	"prospectus/internal/drafting"
	"prospectus/internal/index"
	"prospectus/internal/ingest"
	"prospectus/internal/middleware"
	"prospectus/internal/progress"
	"prospectus/internal/provider"
	"prospectus/internal/retrieval"
	"prospectus/internal/section"
	"prospectus/internal/worker"
)

type publisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	Provider       provider.Provider
	Index          *index.FileStore
	Ingest         *ingest.Service
	Documents      *document.Service
	Drafts         *draft.Service
	Jobs           *job.Service
	MCP            *mcp.Handler
	IngestConsumer *worker.IngestConsumer

	cfg     *config.Config
	closers []io.Closer
}

// New wires the pipeline against the given dependencies. A nil deps runs
// everything on the local file backends.
func New(cfg *config.Config, deps *Dependencies) (*App, error) {
	if deps == nil {
		deps = &Dependencies{}
	}
	a := &App{cfg: cfg}

	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	a.Provider = p
	if c, ok := p.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	catalog, err := section.LoadCatalog(cfg.SectionsFile)
	if err != nil {
		return nil, err
	}

	// Feature: Job
	var jobRepo job.Repository = job.NewMemoryRepo()
	if deps.DB != nil {
		jobRepo = job.NewPostgresRepo(deps.DB)
	}
	var pub publisher
	if deps.NSQProducer != nil {
		pub = deps.NSQProducer
	}
	a.Jobs = job.NewService(jobRepo, pub)
	jobHandler := job.NewHandler(a.Jobs)

	// Index & Ingest
	a.Index = index.NewFileStore(cfg.IndexDir)
	ingestOpts := []ingest.Option{
		ingest.WithManifest(a.Index),
		ingest.WithFailureRecorder(a.Jobs),
		ingest.WithSheetSummaries(p),
	}
	if deps.Weaviate != nil {
		ingestOpts = append(ingestOpts, ingest.WithMirror(deps.Weaviate))
	}
	a.Ingest = ingest.NewService(p, p.Name(), a.Index, ingest.Config{
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
		SummarizeSheets: cfg.SummarizeSheets,
	}, ingestOpts...)
	a.IngestConsumer = worker.NewIngestConsumer(a.Ingest, a.Jobs, cfg.IngestMaxAttempts)

	// Retrieval
	queryLogger, closer, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	} else {
		a.closers = append(a.closers, closer)
	}
	retriever := retrieval.NewService(p, a.Index, queryLogger)
	if deps.Weaviate != nil {
		retriever = retriever.WithSearcher(deps.Weaviate)
	}

	// Feature: Document
	a.Documents = document.NewService(a.Ingest, a.Index, retriever, pub, cfg.UploadDir, cfg.QATopK)
	documentHandler := document.NewHandler(a.Documents, cfg.MaxUploadSizeMB)

	// Feature: Draft
	drafter := drafting.New(p, p.Name(),
		drafting.WithRawLog(drafting.NewRawLog(cfg.RawLogDir)),
		drafting.WithMaxContextChars(cfg.MaxContextChars),
		drafting.WithTemperature(cfg.DraftTemperature),
	)
	tracker := progress.NewTracker(progress.NewFileSink(cfg.ProgressFile))
	output := drafting.NewOutputWriter(cfg.OutputDir)
	runner := drafting.NewRunner(retriever, drafter, tracker, output, a.Jobs, drafting.RunnerConfig{
		TopK:        cfg.DraftTopK,
		StopOnError: cfg.StopOnError,
	})
	a.Drafts = draft.NewService(runner, retriever, drafter, catalog, tracker, output, cfg.DraftTopK)
	draftHandler := draft.NewHandler(a.Drafts)

	// Feature: Stats
	statsHandler := stats.NewHandler(a.Index, jobRepo, tracker)
	if deps.Weaviate != nil {
		statsHandler = statsHandler.WithVectorCounter(deps.Weaviate)
	}

	// Feature: MCP
	a.MCP = mcp.NewHandler(a.Documents, a.Drafts, a.Drafts)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents/upload", middleware.CorrelationID(middleware.CORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(middleware.CORS(documentHandler.List)))
	mux.Handle("POST /ingest", middleware.CorrelationID(middleware.CORS(documentHandler.Ingest)))
	mux.Handle("GET /search", middleware.CorrelationID(middleware.CORS(documentHandler.Search)))

	mux.Handle("POST /drafts", middleware.CorrelationID(middleware.CORS(draftHandler.Start)))
	mux.Handle("GET /drafts/progress", middleware.CorrelationID(middleware.CORS(draftHandler.Progress)))
	mux.Handle("GET /drafts/output", middleware.CorrelationID(middleware.CORS(draftHandler.Output)))
	mux.Handle("POST /draft_section", middleware.CorrelationID(middleware.CORS(draftHandler.DraftSection)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(middleware.CORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(middleware.CORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(middleware.CORS(statsHandler.GetStats)))

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		mux.Handle(method+" /mcp", middleware.CorrelationID(a.MCP))
	}

	// Method patterns never match a preflight, so answer them here.
	mux.Handle("OPTIONS /", middleware.CORS(func(http.ResponseWriter, *http.Request) {}))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","provider":"` + p.Name() + `"}`))
	})

	a.Handler = mux
	return a, nil
}

// StartIngestWorker subscribes the ingest consumer to the document topic.
func (a *App) StartIngestWorker() (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = a.cfg.IngestMaxAttempts
	consumer, err := nsq.NewConsumer(config.TopicIngestDocument, config.ChannelIngestWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(a.IngestConsumer)
	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("connect to nsqlookupd: %w", err)
	}
	slog.Info("ingest worker connected", "topic", config.TopicIngestDocument, "channel", config.ChannelIngestWorker)
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.cfg.EnableIngestWorker {
		consumer, err := a.StartIngestWorker()
		if err != nil {
			return err
		}
		defer consumer.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort, "provider", a.Provider.Name())
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	a.Drafts.Wait()
	return nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
}
