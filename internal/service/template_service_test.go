package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

func newTemplateService(e *env) *service.TemplateService {
	projector := service.NewSlotProjector(e.store, e.store, 7, zap.NewNop(), e.opts()...)
	return service.NewTemplateService(e.store, projector, zap.NewNop(), e.opts()...)
}

func TestTemplateServiceReplace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := newTemplateService(e)

	entries, err := svc.Replace(ctx, 1, []service.TemplateHour{
		{Weekday: 2, Hour: 10, Modality: model.ModalityVirtual},
		{Weekday: 3, Hour: 15, Modality: model.ModalityVirtual},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].GroupID, entries[1].GroupID)
	assert.NotZero(t, entries[0].ID)

	// Слоты проецируются сразу
	assert.True(t, e.slot(t, key(1, 5, 10)).Available)
	assert.True(t, e.slot(t, key(1, 6, 15)).Available)

	replaced, err := svc.Replace(ctx, 1, []service.TemplateHour{
		{Weekday: 4, Hour: 12, Modality: model.ModalityVirtual},
	})
	require.NoError(t, err)

	listed, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 4, listed[0].Weekday)
	assert.NotEqual(t, entries[0].GroupID, replaced[0].GroupID)

	// Уже созданные слоты остаются
	assert.True(t, e.slot(t, key(1, 5, 10)).Available)
}

func TestTemplateServiceReplaceValidation(t *testing.T) {
	e := newEnv(t)
	svc := newTemplateService(e)

	tests := []struct {
		name  string
		hours []service.TemplateHour
	}{
		{"weekday out of range", []service.TemplateHour{{Weekday: 7, Hour: 10, Modality: model.ModalityVirtual}}},
		{"hour out of range", []service.TemplateHour{{Weekday: 1, Hour: 24, Modality: model.ModalityVirtual}}},
		{"unknown modality", []service.TemplateHour{{Weekday: 1, Hour: 10, Modality: "hybrid"}}},
		{"duplicate hour", []service.TemplateHour{
			{Weekday: 1, Hour: 10, Modality: model.ModalityVirtual},
			{Weekday: 1, Hour: 10, Modality: model.ModalityInPerson},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Replace(context.Background(), 1, tt.hours)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	listed, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestTemplateServiceReplaceWithEmptyTemplate(t *testing.T) {
	e := newEnv(t)
	svc := newTemplateService(e)

	_, err := svc.Replace(context.Background(), 1, []service.TemplateHour{{Weekday: 2, Hour: 10, Modality: model.ModalityVirtual}})
	require.NoError(t, err)

	entries, err := svc.Replace(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	listed, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
