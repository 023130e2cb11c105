package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RAGBench/app/clients"
	"RAGBench/app/configs"
	"RAGBench/app/dataset"
	"RAGBench/app/eval"
	"RAGBench/app/index"
	"RAGBench/app/models"
	"RAGBench/app/storage"
	"RAGBench/app/utils"
)

// One-time setup (model deployment, bulk ingest) can legitimately take a
// while on a cold cluster.
const setupTimeout = 20 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to the run configuration")
	flag.Parse()

	cfg, err := configs.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := models.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.EmbeddingsModel)
	if cfg.Data.AuditLog != "" {
		audit, err := utils.NewAuditLogger(cfg.Data.AuditLog)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		defer audit.Close()
		model = model.WithAudit(audit)
	}

	svc, err := buildIndexService(cfg, model)
	if err != nil {
		log.Fatalf("❌ Build index service: %v", err)
	}
	defer svc.Close()

	corpus, err := dataset.LoadCorpus(cfg.Data.Corpus)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	passages := make([]index.Passage, 0, len(corpus))
	for _, entry := range corpus {
		passages = append(passages, index.Passage{
			ID:          entry.ID,
			Text:        entry.Text,
			SourceTitle: entry.SourceTitle,
		})
	}
	log.Printf("📚 Loaded %d corpus passages", len(passages))

	setupCtx, cancelSetup := context.WithTimeout(ctx, setupTimeout)
	err = index.Setup(setupCtx, svc, passages)
	cancelSetup()
	if err != nil {
		log.Fatalf("❌ Index setup failed: %v", err)
	}

	questions, err := dataset.LoadQuestions(cfg.Data.Questions, cfg.Run.NumQuestions)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Data.DBPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer store.Close()

	runner := eval.NewRunner(model, svc, store, eval.Options{
		TopK:     cfg.Run.TopK,
		Workers:  cfg.Run.Workers,
		FailFast: cfg.Run.FailFast,
	})

	log.Printf("🚀 Starting evaluation run %s over %d questions", runner.RunID(), len(questions))
	report, err := runner.Run(ctx, questions)
	if err != nil {
		log.Fatalf("❌ Evaluation run aborted: %v", err)
	}

	rendered := report.Render()
	fmt.Println(rendered)

	notifyReport(cfg, rendered)
}

func buildIndexService(cfg *configs.Config, embedder models.Embedder) (index.Service, error) {
	idxCfg := index.Config{
		Name:         cfg.Index.Name,
		Pipeline:     cfg.Index.Pipeline,
		ModelName:    cfg.Index.ModelName,
		ModelVersion: cfg.Index.ModelVersion,
		Dimension:    cfg.Index.Dimension,
	}
	switch cfg.Index.Backend {
	case "qdrant":
		return index.NewQdrantService(cfg.Index.Host, cfg.Index.Port, embedder, idxCfg)
	default:
		return index.NewOpenSearchService(cfg.Index.URL, idxCfg), nil
	}
}

func notifyReport(cfg *configs.Config, rendered string) {
	if cfg.Notify.DiscordToken == "" {
		return
	}
	notifier, err := clients.NewDiscordNotifier(cfg.Notify.DiscordToken, cfg.Notify.DiscordChannelID)
	if err != nil {
		log.Printf("⚠️ Discord notifier disabled: %v", err)
		return
	}
	if err = notifier.Open(); err != nil {
		log.Printf("⚠️ Could not connect Discord notifier: %v", err)
		return
	}
	defer notifier.Close()
	if err = notifier.NotifyReport(rendered); err != nil {
		log.Printf("⚠️ Could not send report to Discord: %v", err)
	}
}
