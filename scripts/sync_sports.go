package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/database"
	"courtside/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type SportsConfig struct {
	Sports []models.Sport `yaml:"sports"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		sportsPath = flag.String("sports", "configs/sports.yaml", "path to sports.yaml")
		dbPath     = flag.String("db", "./data/courtside.db", "path to sqlite db")
		deactivate = flag.Bool("deactivate-missing", false, "deactivate sports that are not listed in the file")
	)
	flag.Parse()

	data, err := os.ReadFile(*sportsPath)
	if err != nil {
		return fmt.Errorf("read sports: %w", err)
	}
	var cfg SportsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse sports: %w", err)
	}
	if len(cfg.Sports) == 0 {
		return errors.New("no sports in yaml")
	}
	for i := range cfg.Sports {
		if cfg.Sports[i].SortOrder == 0 {
			cfg.Sports[i].SortOrder = int64(i + 1)
		}
	}
	if err = config.ValidateSports(cfg.Sports); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, updated, err := db.SyncSports(ctx, cfg.Sports)
	if err != nil {
		return err
	}

	deactivated := 0
	if *deactivate {
		listed := make(map[string]bool, len(cfg.Sports))
		for _, s := range cfg.Sports {
			listed[normalizeName(s.Name)] = true
		}
		all, err := db.GetAllSports(ctx)
		if err != nil {
			return fmt.Errorf("list sports: %w", err)
		}
		for _, s := range all {
			if !s.IsActive || listed[normalizeName(s.Name)] {
				continue
			}
			if err := db.DeactivateSport(ctx, s.ID); err != nil {
				return fmt.Errorf("deactivate %s: %w", s.Name, err)
			}
			deactivated++
		}
	}

	fmt.Printf("done: created=%d updated=%d deactivated=%d\n", created, updated, deactivated)
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
