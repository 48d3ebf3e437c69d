package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"plant_inspection/internal/config"
	"plant_inspection/internal/domain"
	"plant_inspection/internal/repository"
	"plant_inspection/internal/usecase"

	"github.com/spf13/cobra"
)

var demoPersons = []usecase.CreatePersonInput{
	{LoginName: "admin", DisplayName: "Markus Müller", Password: "admin123", Role: string(domain.RoleAdmin)},
	{LoginName: "inspector", DisplayName: "Laura Schmidt", Password: "inspector123", Role: string(domain.RoleInspector)},
	{LoginName: "thomas.weber", DisplayName: "Thomas Weber", Password: "inspector123", Role: string(domain.RoleInspector)},
}

var demoTemplates = []usecase.TemplateInput{
	{
		Name:            "Pump Check",
		PlantName:       "Plant A",
		Recommendations: "Stop the pump before opening any housing.",
		Steps: []usecase.StepInput{
			{Description: "Check seals", Requirement: "no visible leakage", OrderIndex: 1},
			{Description: "Check pressure", Requirement: "6 bar", OrderIndex: 2},
			{Description: "Check noise", Requirement: "no grinding or rattling", OrderIndex: 3},
		},
	},
	{
		Name:      "Boiler Safety Inspection",
		PlantName: "Plant B",
		Steps: []usecase.StepInput{
			{Description: "Read safety valve tag", Requirement: "valid test date", OrderIndex: 1},
			{Description: "Check water level gauge", OrderIndex: 2},
			{Description: "Inspect burner flame", Requirement: "steady blue flame", OrderIndex: 3},
			{Description: "Check flue gas temperature", Requirement: "< 180 °C", OrderIndex: 4},
		},
	},
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "seed",
		Short:        "Create demo users and checklist templates",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, closeLog := config.SetupLogger(cfg.Log.File, cfg.LogLevel())
			defer closeLog()

			ctx := cmd.Context()
			store, err := repository.Open(ctx, repository.Options{
				Driver:      cfg.Storage.Driver,
				SQLitePath:  cfg.Storage.SQLitePath,
				DatabaseURL: cfg.Storage.DatabaseURL,
			})
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			return seed(ctx,
				usecase.NewPersonUseCase(store, logger, nil),
				usecase.NewTemplateUseCase(store, logger, nil),
				logger,
			)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// seed is idempotent: existing users and templates with the same name are
// left untouched.
func seed(ctx context.Context, persons *usecase.PersonUseCase, templates *usecase.TemplateUseCase, logger *slog.Logger) error {
	for _, in := range demoPersons {
		_, err := persons.GetByLoginName(ctx, in.LoginName)
		if err == nil {
			logger.Info("demo user already exists, skipping", "username", in.LoginName)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if _, err := persons.CreatePerson(ctx, in); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", in.LoginName, err)
		}
		logger.Info("created demo user", "username", in.LoginName, "role", in.Role)
	}

	for _, in := range demoTemplates {
		existing, err := templates.ListTemplates(ctx, domain.TemplateFilter{NameContains: in.Name})
		if err != nil {
			return err
		}
		if hasTemplate(existing, in.Name) {
			logger.Info("template already exists, skipping", "name", in.Name)
			continue
		}
		if _, err := templates.CreateTemplate(ctx, in); err != nil {
			return fmt.Errorf("failed to seed template %s: %w", in.Name, err)
		}
		logger.Info("seeded template", "name", in.Name, "steps", len(in.Steps))
	}

	logger.Info("seeding completed")
	return nil
}

func hasTemplate(list []domain.ChecklistTemplate, name string) bool {
	for _, t := range list {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}
