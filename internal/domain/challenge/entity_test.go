package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

func TestNew(t *testing.T) {
	t.Run("valid challenge", func(t *testing.T) {
		c, err := New("early_bird", "  Ранняя пташка ", student.ProfessionAll,
			" homework_morning >= 5 ", 100)
		require.NoError(t, err)

		assert.Equal(t, "early_bird", c.ID)
		assert.Equal(t, "Ранняя пташка", c.Title)
		assert.Equal(t, "homework_morning >= 5", c.Rule)
		assert.Equal(t, student.Points(100), c.Value)
		assert.True(t, c.IsActive)
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name  string
			id    string
			title string
			rule  string
			value int
			want  error
		}{
			{"empty id", "", "t", "r", 1, ErrEmptyID},
			{"blank id", "   ", "t", "r", 1, ErrEmptyID},
			{"empty title", "id", "", "r", 1, ErrEmptyTitle},
			{"empty rule", "id", "t", "", 1, ErrEmptyRule},
			{"zero value", "id", "t", "r", 0, ErrNonPositiveValue},
			{"negative value", "id", "t", "r", -10, ErrNonPositiveValue},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.id, tt.title, student.ProfessionAll, tt.rule, tt.value)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("invalid profession", func(t *testing.T) {
		_, err := New("id", "t", student.Profession("XX"), "r", 1)
		assert.Error(t, err)
	})
}

func TestChallenge_AppliesTo(t *testing.T) {
	forAll, err := New("c1", "t", student.ProfessionAll, "r", 1)
	require.NoError(t, err)
	forPD, err := New("c2", "t", student.ProfessionPD, "r", 1)
	require.NoError(t, err)

	assert.True(t, forAll.AppliesTo(student.ProfessionPD))
	assert.True(t, forAll.AppliesTo(student.ProfessionNA))

	assert.True(t, forPD.AppliesTo(student.ProfessionPD))
	assert.False(t, forPD.AppliesTo(student.ProfessionDA))
}

func TestChallenge_ActivateDeactivate(t *testing.T) {
	c, err := New("c1", "t", student.ProfessionAll, "r", 1)
	require.NoError(t, err)

	c.Deactivate()
	assert.False(t, c.IsActive)

	c.Activate()
	assert.True(t, c.IsActive)
}

func TestNewCompletion(t *testing.T) {
	s := &student.Student{ID: 7}
	c, err := New("night_owl", "t", student.ProfessionAll, "r", 150)
	require.NoError(t, err)

	completion := NewCompletion(s, c)
	assert.Equal(t, student.ID(7), completion.StudentID)
	assert.Equal(t, "night_owl", completion.ChallengeID)
	// Награда фиксируется на момент выполнения
	assert.Equal(t, student.Points(150), completion.Value)
	assert.False(t, completion.CompletedAt.IsZero())
}
