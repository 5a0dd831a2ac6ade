package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/foliolab/enrich/internal/config"
	"github.com/foliolab/enrich/internal/dependency"
	"github.com/foliolab/enrich/internal/embedindex"
	"github.com/foliolab/enrich/internal/extract"
	"github.com/foliolab/enrich/internal/httpapi"
	"github.com/foliolab/enrich/internal/jobstore"
	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/logging"
	"github.com/foliolab/enrich/internal/matching"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/monitoring"
	"github.com/foliolab/enrich/internal/normalize"
	"github.com/foliolab/enrich/internal/ontology"
	"github.com/foliolab/enrich/internal/pipeline"
	"github.com/foliolab/enrich/internal/reconcile"
	"github.com/foliolab/enrich/internal/stages"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	accessor, err := buildOntologyAccessor(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build ontology accessor: %v", err)
	}

	retryPolicy := llm.RetryPolicy{
		MaxAttempts: cfg.LM.RetryAttempts,
		BaseDelay:   cfg.LM.RetryBaseDelay,
		MaxDelay:    cfg.LM.RetryMaxDelay,
	}
	lmChain := buildLMChain(cfg, retryPolicy)

	embedIndex := buildEmbedIndex(cfg)
	var embedder llm.Embedder
	if cfg.LM.OpenAIAPIKey != "" {
		embedder = llm.NewOpenAIProvider(cfg.LM.OpenAIAPIKey, cfg.LM.OpenAIModel, retryPolicy)
	}

	ruler, err := matching.NewRuler(ctx, accessor, cfg.Matching.BoundaryHyphenAsWordChar)
	if err != nil {
		log.Fatalf("Failed to build ruler: %v", err)
	}
	propertyMatcher, err := matching.NewPropertyMatcher(ctx, accessor, cfg.Matching.BoundaryHyphenAsWordChar)
	if err != nil {
		log.Fatalf("Failed to build property matcher: %v", err)
	}

	allLabels, err := accessor.AllLabels(ctx)
	if err != nil {
		log.Fatalf("Failed to load ontology labels: %v", err)
	}
	expanderPatterns := make([]matching.Pattern, 0, len(allLabels))
	for _, e := range allLabels {
		expanderPatterns = append(expanderPatterns, matching.Pattern{Text: e.Label, ConceptID: e.ConceptID, Label: e.Label, IsPreferred: e.IsPreferred})
	}
	expanderAutomaton := matching.Build(expanderPatterns, cfg.Matching.BoundaryHyphenAsWordChar)

	store, err := jobstore.New(cfg.JobStore.RootDir)
	if err != nil {
		log.Fatalf("Failed to initialize job store: %v", err)
	}

	sources := map[model.SourceKind]normalize.Source{
		model.SourceKindInline: normalize.InlineSource{},
	}

	bus := pipeline.NewEventBus()

	orch, err := pipeline.New(pipeline.Config{
		Sources:             sources,
		Accessor:            accessor,
		Ruler:               ruler,
		PropertyMatcher:     propertyMatcher,
		ExpanderAutomaton:   expanderAutomaton,
		ExpanderScale:       cfg.Matching.AltLabelExpansionScale,
		Proposer:            stages.NewProposer(embedIndex, embedder, lmChain, accessor, cfg.Embedding.TriageMargin),
		IndividualExtractor: extract.NewExtractor(),
		DocTypeClassifier:   stages.NewDocTypeClassifier(lmChain),
		DependencyExtractor: dependency.NewExtractor(lmChain),
		LMChain:             lmChain,
		StageConcurrency:    cfg.Concurrency.StageLMConcurrency,
		GlobalJobLimit:      cfg.Concurrency.GlobalJobLimit,
		Timeouts: pipeline.Timeouts{
			StageSoft: cfg.Concurrency.StageSoftTimeout,
			StageHard: cfg.Concurrency.StageHardTimeout,
			JobHard:   cfg.Concurrency.JobHardTimeout,
		},
		Resolver:   reconcile.NewResolver(embedder, embedIndex, cfg.Matching.ConflictThreshold),
		Reconciler: reconcile.NewReconcilerWithTriage(embedder, embedIndex, cfg.Matching.ConflictThreshold),
		EventBus:   bus,
	})
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	handlers := httpapi.NewHandlers(orch, store, monitoring.NewCollector(), bus, cfg.Matching.MaxChunkSize, cfg.Matching.DefaultChunkOverlap)

	app := fiber.New(fiber.Config{
		ServerHeader: "FOLIO-Enrich",
		AppName:      "FOLIO Enrich API v1.0",
		BodyLimit:    cfg.Server.MaxUploadBytes,
		ErrorHandler: httpapi.ErrorHandler(logging.New("HTTP")),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,X-HTTP-Method-Override",
		AllowCredentials: true,
	}))

	httpapi.RegisterRoutes(app, handlers, cfg.Auth.JWTSecret)

	// Retention sweep: expired job documents are removed once a day.
	if cfg.JobStore.RetentionDays > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				removed, err := store.Prune(time.Duration(cfg.JobStore.RetentionDays) * 24 * time.Hour)
				if err != nil {
					log.Printf("Job retention sweep failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("Job retention sweep removed %d expired jobs", removed)
				}
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

func buildOntologyAccessor(ctx context.Context, cfg *config.Config) (ontology.Accessor, error) {
	if cfg.Ontology.Backend == "opensearch" {
		return ontology.NewOpenSearchAccessor(cfg.Ontology.OpenSearchURL, cfg.Ontology.IndexName, cfg.Ontology.Version)
	}
	concepts, err := ontology.LoadConceptsFromFile(cfg.Ontology.ConceptsPath)
	if err != nil {
		return nil, err
	}
	return ontology.NewMemoryAccessor(cfg.Ontology.Version, concepts), nil
}

func buildEmbedIndex(cfg *config.Config) embedindex.Index {
	if cfg.Embedding.Backend == "opensearch" {
		idx, err := embedindex.NewOpenSearchIndex(cfg.Embedding.OpenSearchURL, cfg.Embedding.IndexName)
		if err == nil {
			return idx
		}
		log.Printf("Warning: failed to build opensearch embedding index, falling back to memory: %v", err)
	}
	return embedindex.NewMemoryIndex()
}

func buildLMChain(cfg *config.Config, policy llm.RetryPolicy) *llm.Chain {
	var providers []llm.Provider
	if cfg.LM.OpenAIAPIKey != "" {
		providers = append(providers, llm.NewOpenAIProvider(cfg.LM.OpenAIAPIKey, cfg.LM.OpenAIModel, policy))
	}
	if cfg.LM.ClaudeAPIKey != "" {
		providers = append(providers, llm.NewClaudeProvider(cfg.LM.ClaudeAPIKey, cfg.LM.ClaudeModel, policy))
	}
	providers = append(providers, llm.NewOllamaProvider(cfg.LM.OllamaBaseURL, cfg.LM.OllamaModel, policy))
	return llm.NewChain(cfg.LM.EnableFallback, providers...).WithTaskRouting(cfg.LM.TaskProviders)
}
