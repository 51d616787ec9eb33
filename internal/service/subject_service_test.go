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

func TestSubjectService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := service.NewSubjectService(e.store, zap.NewNop())

	require.NoError(t, svc.Assign(ctx, 2, 5))
	require.NoError(t, svc.Assign(ctx, 1, 5))
	require.NoError(t, svc.Assign(ctx, 1, 5))

	mentors, err := svc.Mentors(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, mentors)

	require.NoError(t, svc.Unassign(ctx, 1, 5))
	mentors, err = svc.Mentors(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, mentors)

	assert.ErrorIs(t, svc.Assign(ctx, 0, 5), model.ErrValidation)
	assert.ErrorIs(t, svc.Assign(ctx, 1, -1), model.ErrValidation)
}
