package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

func TestAvailabilityServiceQuery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	const viewer = 7

	e.seed(t,
		key(1, 5, 10), // свободен
		key(1, 5, 11), // холд зрителя
		key(1, 5, 12), // чужой действующий холд
		key(1, 5, 13), // чужой просроченный холд
		key(1, 5, 14), // забронирован
		key(1, 6, 10),
		key(2, 5, 9),
		key(1, 4, 8), // уже прошёл
	)

	_, err := e.holds.PlaceHold(ctx, key(1, 5, 11), viewer)
	require.NoError(t, err)
	_, err = e.holds.PlaceHold(ctx, key(1, 5, 12), 8)
	require.NoError(t, err)
	holdAt(t, e.store, key(1, 5, 13), 9, baseTime.Add(-time.Minute))
	e.book(t, key(1, 5, 14), 10, 1000)

	res, err := e.availability.Query(ctx, service.AvailabilityQuery{
		ViewerID: viewer,
		From:     date(4),
		To:       date(6),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"2030-03-05": 2,
		"2030-03-06": 1,
	}, res.PerDayMentorCount)

	assert.Equal(t, map[int64]map[string][]int{
		1: {
			"2030-03-05": {10, 11, 13},
			"2030-03-06": {10},
		},
		2: {
			"2030-03-05": {9},
		},
	}, res.PerMentorSlots)
}

func TestAvailabilityServiceHeldSlotHiddenFromOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(ctx, k, 7)
	require.NoError(t, err)

	owner, err := e.availability.Query(ctx, service.AvailabilityQuery{ViewerID: 7, From: date(5), To: date(5)})
	require.NoError(t, err)
	assert.Equal(t, []int{10}, owner.PerMentorSlots[1]["2030-03-05"])

	other, err := e.availability.Query(ctx, service.AvailabilityQuery{ViewerID: 8, From: date(5), To: date(5)})
	require.NoError(t, err)
	assert.Empty(t, other.PerMentorSlots)
	assert.Empty(t, other.PerDayMentorCount)

	// После истечения TTL слот снова виден всем, даже до прохода sweeper
	e.clock.Advance(6 * time.Minute)
	other, err = e.availability.Query(ctx, service.AvailabilityQuery{ViewerID: 8, From: date(5), To: date(5)})
	require.NoError(t, err)
	assert.Equal(t, []int{10}, other.PerMentorSlots[1]["2030-03-05"])
}

func TestAvailabilityServiceSubjectFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, key(1, 5, 10), key(2, 5, 10), key(3, 5, 10))

	require.NoError(t, e.store.Assign(ctx, model.MentorSubject{MentorID: 2, SubjectID: 5}))
	require.NoError(t, e.store.Assign(ctx, model.MentorSubject{MentorID: 3, SubjectID: 5}))

	subject := int64(5)
	res, err := e.availability.Query(ctx, service.AvailabilityQuery{ViewerID: 7, From: date(5), To: date(5), SubjectID: &subject})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2030-03-05": 2}, res.PerDayMentorCount)
	assert.NotContains(t, res.PerMentorSlots, int64(1))

	unknown := int64(99)
	res, err = e.availability.Query(ctx, service.AvailabilityQuery{ViewerID: 7, From: date(5), To: date(5), SubjectID: &unknown})
	require.NoError(t, err)
	assert.Empty(t, res.PerMentorSlots)
	assert.NotNil(t, res.PerDayMentorCount)
}

func TestAvailabilityServiceRangeValidation(t *testing.T) {
	e := newEnv(t)

	_, err := e.availability.Query(context.Background(), service.AvailabilityQuery{ViewerID: 7, From: date(6), To: date(5)})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.availability.Query(context.Background(), service.AvailabilityQuery{
		ViewerID: 7,
		From:     date(1),
		To:       date(1).AddDate(0, 0, 93),
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}
