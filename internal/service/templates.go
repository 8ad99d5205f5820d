package service

import (
	"context"
	"fmt"
	"os"

	"agendum/internal/domain"
	"agendum/internal/models"

	"github.com/rs/zerolog"
	yaml "gopkg.in/yaml.v2"
)

type templatesFile struct {
	Templates []models.AvailabilityTemplate `yaml:"templates"`
}

// SeedTemplates loads weekly templates from a YAML file and upserts them.
// Professionals already present keep running on the file's latest version;
// an invalid entry aborts the whole seed so a typo cannot silently wipe a
// schedule.
func SeedTemplates(ctx context.Context, store domain.Store, path string, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read templates file: %w", err)
	}

	var file templatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse templates file: %w", err)
	}

	for i := range file.Templates {
		tpl := &file.Templates[i]
		if err := store.SetTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("seed template for %s: %w", tpl.ProfessionalID, err)
		}
	}

	logger.Info().Int("count", len(file.Templates)).Str("path", path).Msg("availability templates seeded")
	return nil
}
