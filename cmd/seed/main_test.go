package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/repository"
	"plant_inspection/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	persons := usecase.NewPersonUseCase(store, logger, nil)
	templates := usecase.NewTemplateUseCase(store, logger, nil)

	require.NoError(t, seed(ctx, persons, templates, logger))
	require.NoError(t, seed(ctx, persons, templates, logger))

	list, err := persons.ListPersons(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(demoPersons))

	admin, err := persons.GetByLoginName(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, persons.CheckPassword(admin, "admin123"))

	tmpls, err := templates.ListTemplates(ctx, domain.TemplateFilter{})
	require.NoError(t, err)
	require.Len(t, tmpls, len(demoTemplates))
	for _, tmpl := range tmpls {
		assert.NotEmpty(t, tmpl.Steps, tmpl.Name)
	}
}
