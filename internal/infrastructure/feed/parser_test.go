package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

func TestParseStats(t *testing.T) {
	rows := [][]string{
		{"id", "program", "homework_total", "homework_intime", "phone"},
		{"101", "PD", "10", "7", "+79990001122"},
		{"102", "DA", "3", "0", ""},
		{"total:", "", "13", "7", ""}, // service row at the bottom
		{},
	}

	stats := ParseStats(rows)
	require.Len(t, stats, 2)

	s, ok := stats[student.ID(101)]
	require.True(t, ok)

	// Digit cells become ints
	total, ok := s.GetInt("homework_total")
	assert.True(t, ok)
	assert.Equal(t, 10, total)

	// Non-digit cells stay strings, including phone-like "+7..." values
	program, ok := s.GetString("program")
	assert.True(t, ok)
	assert.Equal(t, "PD", program)

	phone, ok := s.GetString("phone")
	assert.True(t, ok)
	assert.Equal(t, "+79990001122", phone)
}

func TestParseStats_Degenerate(t *testing.T) {
	assert.Nil(t, ParseStats(nil))
	assert.Nil(t, ParseStats([][]string{{"id", "program"}}))

	// Negative and zero ids are service rows too
	stats := ParseStats([][]string{
		{"id", "x"},
		{"0", "1"},
		{"-5", "1"},
	})
	assert.Empty(t, stats)
}

func TestParseStats_ShortRow(t *testing.T) {
	stats := ParseStats([][]string{
		{"id", "a", "b"},
		{"7", "1"},
	})
	require.Len(t, stats, 1)

	s := stats[student.ID(7)]
	_, ok := s.GetInt("b")
	assert.False(t, ok)
}

func TestParseChallenges(t *testing.T) {
	rows := [][]string{
		{"ID", "Title", "Profession", "Eval", "Value", "Is_Active"},
		{"early_bird", "Ранняя пташка", "ALL", "homework_morning >= 5", "100", "TRUE"},
		{"pd_only", "Для питонистов", "PD", "homework_total > 3", "50", "false"},
		{"", "без id", "ALL", "x > 1", "10", "true"},
		{"broken", "Сломанный", "ALL", "x > 1", "not-a-number", "1"},
	}

	records := ParseChallenges(rows)
	require.Len(t, records, 3)

	assert.Equal(t, ChallengeRecord{
		ID:         "early_bird",
		Title:      "Ранняя пташка",
		Profession: "ALL",
		Rule:       "homework_morning >= 5",
		Value:      100,
		IsActive:   true,
	}, records[0])

	assert.False(t, records[1].IsActive)

	// Malformed value parses as zero so the reconciler can reject the row
	assert.Equal(t, 0, records[2].Value)
	assert.True(t, records[2].IsActive)
}

func TestParseChallenges_MissingColumn(t *testing.T) {
	rows := [][]string{
		{"id", "title", "value"},
		{"c1", "t", "10"},
	}

	records := ParseChallenges(rows)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Rule)
	assert.False(t, records[0].IsActive)
}

func TestParseProducts(t *testing.T) {
	rows := [][]string{
		{"id", "title", "description", "value", "is_active"},
		{"sticker_pack", "Стикерпак", "Набор стикеров", "200", "да"},
		{" spaced ", " Title ", "", "5", "no"},
	}

	records := ParseProducts(rows)
	require.Len(t, records, 2)

	assert.Equal(t, "sticker_pack", records[0].ID)
	assert.Equal(t, 200, records[0].Value)
	assert.True(t, records[0].IsActive)

	// Cells are trimmed
	assert.Equal(t, "spaced", records[1].ID)
	assert.Equal(t, "Title", records[1].Title)
	assert.False(t, records[1].IsActive)
}

func TestCache(t *testing.T) {
	c := NewCache()
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.UpdatedAt().IsZero())

	_, ok := c.Get(1)
	assert.False(t, ok)

	snapshot := map[student.ID]student.Statistics{
		1: {"homework_total": 10},
		2: {"homework_total": 3},
	}
	require.True(t, c.ReplaceStats(snapshot))
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.UpdatedAt().IsZero())

	got, ok := c.Get(1)
	require.True(t, ok)
	total, _ := got.GetInt("homework_total")
	assert.Equal(t, 10, total)

	// Get returns a copy, not the shared map
	got["homework_total"] = 99
	again, _ := c.Get(1)
	total, _ = again.GetInt("homework_total")
	assert.Equal(t, 10, total)

	// Empty snapshot keeps the last known good table
	assert.False(t, c.ReplaceStats(nil))
	assert.False(t, c.ReplaceStats(map[student.ID]student.Statistics{}))
	assert.Equal(t, 2, c.Len())

	assert.ElementsMatch(t, []student.ID{1, 2}, c.IDs())
}
