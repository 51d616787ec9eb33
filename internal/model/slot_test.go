package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlotStateEqual(t *testing.T) {
	exp := time.Date(2030, time.March, 4, 9, 5, 0, 0, time.UTC)

	assert.True(t, AvailableState().Equal(AvailableState()))
	assert.True(t, HeldState(7, exp).Equal(HeldState(7, exp)))
	assert.True(t, HeldState(7, exp).Equal(HeldState(7, exp.In(time.FixedZone("MSK", 3*3600)))))

	assert.False(t, HeldState(7, exp).Equal(HeldState(8, exp)))
	assert.False(t, HeldState(7, exp).Equal(HeldState(7, exp.Add(time.Microsecond))))
	assert.False(t, BookedState().Equal(AvailableState()))
	assert.False(t, BookedState().Equal(HeldState(7, exp)))
}

func TestSlotStateHold(t *testing.T) {
	exp := time.Date(2030, time.March, 4, 9, 5, 0, 0, time.UTC)
	held := HeldState(7, exp.Add(123*time.Nanosecond))

	assert.True(t, held.HoldExpiresAt.Equal(exp), "expiry is truncated to microseconds")
	assert.True(t, held.HeldBy(7))
	assert.False(t, held.HeldBy(8))
	assert.False(t, held.HoldExpired(exp))
	assert.True(t, held.HoldExpired(exp.Add(time.Nanosecond)))
	assert.Equal(t, "held", held.Name())

	assert.False(t, BookedState().HeldBy(7))
	assert.True(t, BookedState().IsBooked())
	assert.Equal(t, "booked", BookedState().Name())
	assert.Equal(t, "available", AvailableState().Name())
}

func TestSlotKeyStartTime(t *testing.T) {
	k := NewSlotKey(1, time.Date(2030, time.March, 5, 17, 45, 0, 0, time.UTC), 10)

	assert.Equal(t, "1/2030-03-05/10", k.String())
	assert.Equal(t, time.Date(2030, time.March, 5, 10, 0, 0, 0, time.UTC), k.StartTime(nil))

	msk := time.FixedZone("MSK", 3*3600)
	assert.True(t, k.StartTime(msk).Equal(time.Date(2030, time.March, 5, 7, 0, 0, 0, time.UTC)))
}
