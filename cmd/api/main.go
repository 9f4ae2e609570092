package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lexdraft/api/internal/ai"
	"lexdraft/api/internal/app"
	"lexdraft/api/internal/authpw"
	"lexdraft/api/internal/config"
	"lexdraft/api/internal/contract"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/opportunity"
	"lexdraft/api/internal/revision"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/session"
	"lexdraft/api/internal/speech"
	"lexdraft/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		log.Fatalf("failed to create revisions dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	templateRecords := make([]search.TemplateRecord, 0)
	for _, t := range contract.Templates() {
		templateRecords = append(templateRecords, search.TemplateRecord{
			ID:       t.ID,
			Name:     t.Name,
			Variants: strings.Join(t.Variants, ", "),
		})
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, templateRecords)
	searchService.ReindexAll(ctx)

	collaborators := app.Collaborators{
		Auth:      authpw.NewService(dataStore),
		Search:    searchService,
		Revisions: revision.New(cfg.RevisionsDir),
		Exporter:  export.NewService(),
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		log.Printf("Using Redis for refresh tokens and renumber locks")
		collaborators.Sessions = redisStore
		collaborators.Locker = redisStore
	} else {
		log.Printf("Using PostgreSQL for refresh tokens and an in-process renumber lock")
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		assistant, err := ai.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("WARNING: AI assistant unavailable: %v", err)
		} else {
			collaborators.Assistant = assistant
		}
	} else {
		log.Printf("GEMINI_API_KEY not set; AI endpoints disabled")
	}

	speaker, err := speech.New(ctx, cfg.TTSLanguage, cfg.TTSVoice)
	if err != nil {
		log.Printf("WARNING: speech service unavailable: %v", err)
	} else {
		defer speaker.Close()
		collaborators.Speaker = speaker
	}

	if strings.TrimSpace(cfg.OpportunityURL) != "" {
		collaborators.Opportunities = opportunity.NewClient(cfg.OpportunityURL)
	} else {
		log.Printf("OPPORTUNITY_SERVICE_URL not set; opportunity endpoints disabled")
	}

	service := app.New(cfg, dataStore, collaborators)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Lexdraft API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
