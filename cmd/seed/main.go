package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"rfp-pilot/backend/internal/config"
	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/internal/services"
	"rfp-pilot/backend/pkg/models"
)

// defaultEntries gives a fresh install enough knowledge to answer a few
// common security and infrastructure questions.
var defaultEntries = []models.KnowledgeEntry{
	{
		Content: "All customer data is encrypted at rest using AES-256 and in transit using TLS 1.3. Encryption keys are rotated every 90 days and managed through a dedicated KMS.",
		Metadata: map[string]string{
			models.MetaCategory: "security",
			models.MetaSection:  "Data Protection",
		},
	},
	{
		Content: "Our platform maintains SOC 2 Type II certification, renewed annually. The latest audit report is available to customers under NDA.",
		Metadata: map[string]string{
			models.MetaCategory: "compliance",
			models.MetaSection:  "Certifications",
		},
	},
	{
		Content: "Production infrastructure runs across three availability zones with automated failover. We commit to 99.9% uptime with service credits defined in the SLA.",
		Metadata: map[string]string{
			models.MetaCategory: "infrastructure",
			models.MetaSection:  "Availability",
		},
	},
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	envFile := flag.String("env", "", "Path to config file")
	seedFile := flag.String("file", "", "Path to a JSON file of knowledge entries")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool, repository.DefaultEmbeddingDim); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	store := repository.NewPostgresKnowledgeStore(pool)
	embedder := services.NewHTTPEmbeddingClient(cfg.Embedding.URL)

	entries := defaultEntries
	if *seedFile != "" {
		entries, err = loadEntries(*seedFile)
		if err != nil {
			log.Fatalf("Failed to load seed file: %v", err)
		}
		logger.Info("Loaded seed entries", "file", *seedFile, "count", len(entries))
	}

	seeded := 0
	for _, entry := range entries {
		if entry.Content == "" {
			logger.Warn("Skipping entry with empty content")
			continue
		}

		embedding, err := embedder.Embed(ctx, entry.Content)
		if err != nil {
			log.Printf("Failed to embed entry: %v", err)
			continue
		}

		if err := store.Upsert(ctx, entry.Content, entry.Metadata, embedding); err != nil {
			log.Printf("Failed to index entry: %v", err)
			continue
		}
		seeded++
	}

	logger.Info("Seeding complete!", "seeded", seeded, "total", len(entries))
}

func loadEntries(path string) ([]models.KnowledgeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []models.KnowledgeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}
