package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRussianDate(t *testing.T) {
	got, err := ParseRussianDate("01.09.2025")
	require.NoError(t, err)

	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.September, got.Month())
	assert.Equal(t, 1, got.Day())
	assert.Equal(t, MoscowTZ, got.Location())

	_, err = ParseRussianDate("2025-09-01")
	assert.Error(t, err)

	_, err = ParseRussianDate("")
	assert.Error(t, err)
}

func TestFormatRussian(t *testing.T) {
	utc := time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "08.03.2026", FormatRussian(utc))

	// 23:00 UTC в Москве уже следующая дата
	late := time.Date(2026, time.March, 8, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "09.03.2026", FormatRussian(late))
}

func TestStartOfDay(t *testing.T) {
	moment := time.Date(2026, time.March, 8, 15, 42, 7, 0, MoscowTZ)
	start := StartOfDay(moment)

	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 0, start.Minute())
	assert.Equal(t, 8, start.Day())
	assert.Equal(t, MoscowTZ, start.Location())
}

func TestIsWeekend(t *testing.T) {
	saturday := Date(2026, 3, 7)
	sunday := Date(2026, 3, 8)
	monday := Date(2026, 3, 9)

	assert.True(t, IsWeekend(saturday))
	assert.True(t, IsWeekend(sunday))
	assert.False(t, IsWeekend(monday))
}

func TestDaysBetween(t *testing.T) {
	a := Date(2026, 3, 1)
	b := Date(2026, 3, 10)

	assert.Equal(t, 9, DaysBetween(a, b))
	assert.Equal(t, 9, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestIsSameDay(t *testing.T) {
	// 22:00 UTC и 01:00 Мск следующих суток - один день по Москве
	evening := time.Date(2026, 3, 8, 22, 0, 0, 0, time.UTC)
	night := time.Date(2026, 3, 9, 1, 0, 0, 0, MoscowTZ)

	assert.True(t, IsSameDay(evening, night))
	assert.False(t, IsSameDay(evening, Date(2026, 3, 8)))
}
