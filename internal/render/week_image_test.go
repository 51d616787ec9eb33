package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	monday := time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC)

	for offset := 0; offset < 7; offset++ {
		d := monday.AddDate(0, 0, offset).Add(15 * time.Hour)
		assert.Equal(t, monday, WeekStart(d), d.Weekday().String())
	}
}

func TestHourSpan(t *testing.T) {
	assert.Equal(t, hourRange{start: defaultMinHour - hourPadding, end: defaultMaxHour + hourPadding, total: 15}, hourSpan(nil))

	span := hourSpan(map[string][]int{
		"2030-03-05": {0, 5},
		"2030-03-06": {23},
	})
	assert.Equal(t, hourRange{start: 0, end: 23, total: 24}, span)
}

func TestWeekImage(t *testing.T) {
	data, err := WeekImage(Week{
		Start: time.Date(2030, time.March, 6, 0, 0, 0, 0, time.UTC),
		Hours: map[string][]int{
			"2030-03-05": {10, 11},
			"2030-03-08": {15},
		},
		Now: time.Date(2030, time.March, 5, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}
