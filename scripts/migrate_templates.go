package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"agendum/internal/database"
	"agendum/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type TemplatesConfig struct {
	Templates []models.AvailabilityTemplate `yaml:"templates"`
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
		templatesPath = flag.String("templates", "configs/templates.yaml", "path to templates.yaml")
		dbPath        = flag.String("db", "./data/agenda.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*templatesPath)
	if err != nil {
		return fmt.Errorf("read templates: %w", err)
	}
	var cfg TemplatesConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	if len(cfg.Templates) == 0 {
		return fmt.Errorf("no templates in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Templates {
		tpl := &cfg.Templates[i]
		if tpl.ProfessionalID == "" {
			continue
		}
		_, err = db.GetTemplate(ctx, tpl.ProfessionalID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, database.ErrNotConfigured):
			created++
		default:
			return fmt.Errorf("get %s: %w", tpl.ProfessionalID, err)
		}
		if err = db.SetTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("set %s: %w", tpl.ProfessionalID, err)
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
