package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/adetayo/edflowsim/backend/internal/adapters/database"
	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/infrastructure/clients/postgres"
	"github.com/adetayo/edflowsim/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				sim_events,
				patients
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	data, err := os.ReadFile(cfg.Simulation.DatasetPath)
	if err != nil {
		log.Fatalf("Failed to read dataset %s: %v", cfg.Simulation.DatasetPath, err)
	}

	var patients []*entities.Patient
	if err := json.Unmarshal(data, &patients); err != nil {
		log.Fatalf("Failed to parse dataset: %v", err)
	}

	repo := database.NewPatientAdapter(pgClient)

	inserted := 0
	for _, p := range patients {
		record := p.Clone()
		record.ID = ""
		record.Status = entities.StatusCalledIn
		record.Color = entities.ColorGrey
		record.IsSimulated = true
		record.Version = 0

		if _, err := repo.Insert(ctx, record); err != nil {
			log.Printf("Failed to insert patient %s: %v", p.Name, err)
			continue
		}
		inserted++
	}

	log.Printf("Seeding completed: %d of %d patients inserted", inserted, len(patients))
}
