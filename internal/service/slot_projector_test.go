package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

func TestSlotProjectorProjectMentor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	room := "Кабинет 3"
	require.NoError(t, e.store.Replace(ctx, 1, []*model.WeeklyTemplateEntry{
		{MentorID: 1, Weekday: 1, Hour: 8, Modality: model.ModalityVirtual, IsActive: true},                   // понедельник
		{MentorID: 1, Weekday: 2, Hour: 10, Modality: model.ModalityInPerson, Location: &room, IsActive: true}, // вторник
	}))

	projector := service.NewSlotProjector(e.store, e.store, 14, zap.NewNop(), e.opts()...)

	created, err := projector.ProjectMentor(ctx, 1)
	require.NoError(t, err)
	// 04.03 08:00 уже прошёл; остаются 11.03 08:00, 05.03 и 12.03 10:00
	assert.Equal(t, 3, created)

	_, err = e.store.Get(ctx, key(1, 4, 8))
	assert.ErrorIs(t, err, model.ErrSlotNotFound)

	slot := e.slot(t, key(1, 5, 10))
	assert.True(t, slot.Available)
	assert.Equal(t, model.ModalityInPerson, slot.Modality)
	require.NotNil(t, slot.Location)
	assert.Equal(t, room, *slot.Location)

	assert.True(t, e.slot(t, key(1, 11, 8)).Available)
	assert.True(t, e.slot(t, key(1, 12, 10)).Available)

	again, err := projector.ProjectMentor(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, again, "projection is idempotent")
}

func TestSlotProjectorKeepsExistingSlotState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	k := key(1, 5, 10)

	require.NoError(t, e.store.Replace(ctx, 1, []*model.WeeklyTemplateEntry{
		{MentorID: 1, Weekday: 2, Hour: 10, Modality: model.ModalityVirtual, IsActive: true},
	}))
	projector := service.NewSlotProjector(e.store, e.store, 7, zap.NewNop(), e.opts()...)

	_, err := projector.ProjectMentor(ctx, 1)
	require.NoError(t, err)

	_, err = e.holds.PlaceHold(ctx, k, 7)
	require.NoError(t, err)

	_, err = projector.ProjectAll(ctx)
	require.NoError(t, err)
	assert.True(t, e.slot(t, k).HeldBy(7))
}

type flakyTemplates struct {
	service.TemplateStore
	entries []*model.WeeklyTemplateEntry
}

func (f *flakyTemplates) ListActive(context.Context) ([]*model.WeeklyTemplateEntry, error) {
	return f.entries, nil
}

type rejectingSlots struct {
	service.SlotStore
	reject int64
}

func (r *rejectingSlots) BulkInsert(ctx context.Context, slots []*model.Slot) (int, error) {
	if len(slots) > 0 && slots[0].MentorID == r.reject {
		return 0, errors.New("disk full")
	}
	return r.SlotStore.BulkInsert(ctx, slots)
}

func TestSlotProjectorProjectAllContinuesAfterMentorFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	templates := &flakyTemplates{entries: []*model.WeeklyTemplateEntry{
		{MentorID: 1, Weekday: 2, Hour: 10, Modality: model.ModalityVirtual, IsActive: true},
		{MentorID: 2, Weekday: 2, Hour: 10, Modality: model.ModalityVirtual, IsActive: true},
	}}
	slots := &rejectingSlots{SlotStore: e.store, reject: 1}

	projector := service.NewSlotProjector(slots, templates, 7, zap.NewNop(), e.opts()...)
	created, err := projector.ProjectAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, created)
	assert.True(t, e.slot(t, key(2, 5, 10)).Available)
}
