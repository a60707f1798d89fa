package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/internal/domain/achievement"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

func TestRefreshAchievementsHandler(t *testing.T) {
	ctx := context.Background()
	engine := achievement.NewEngine(nil)

	newHandler := func(s *student.Student) (*RefreshAchievementsHandler, *fakeAchievementRepo) {
		students := newFakeStudentRepo(s)
		grants := newFakeAchievementRepo()
		return NewRefreshAchievementsHandler(students, grants, engine, testLogger()), grants
	}

	t.Run("persists earned set and picks display", func(t *testing.T) {
		h, grants := newHandler(&student.Student{
			ID:         1,
			Profession: student.ProfessionQA,
			Statistics: student.Statistics{
				"homework_total":  10,
				"homework_intime": 10,
			},
		})

		result, err := h.Handle(ctx, RefreshAchievementsCommand{StudentID: 1})
		require.NoError(t, err)

		var types []achievement.Type
		for _, g := range result.Earned {
			types = append(types, g.Type)
		}
		assert.Contains(t, types, achievement.TypeDetermined)
		assert.Contains(t, types, achievement.TypeFlawless)

		require.NotNil(t, result.Display)
		// Вводные достижения не показываются при наличии продвинутых
		assert.False(t, achievement.IsBasic(result.Display.Type))

		saved, err := grants.GetByStudent(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, saved, len(result.Earned))
	})

	t.Run("nothing earned saves nothing but still shows chilly", func(t *testing.T) {
		h, grants := newHandler(&student.Student{
			ID:         1,
			Profession: student.ProfessionQA,
			Statistics: student.Statistics{},
		})

		result, err := h.Handle(ctx, RefreshAchievementsCommand{StudentID: 1})
		require.NoError(t, err)

		assert.Empty(t, result.Earned)
		assert.Zero(t, grants.saves)

		// Запасной вариант для отображения не попадает в историю
		require.NotNil(t, result.Display)
		assert.Equal(t, achievement.TypeChilly, result.Display.Type)
		assert.Contains(t, result.Display.Description, student.ProfessionQA.Dative())
	})

	t.Run("re-evaluation does not duplicate", func(t *testing.T) {
		h, grants := newHandler(&student.Student{
			ID:         1,
			Statistics: student.Statistics{"homework_total": 2},
		})

		_, err := h.Handle(ctx, RefreshAchievementsCommand{StudentID: 1})
		require.NoError(t, err)
		_, err = h.Handle(ctx, RefreshAchievementsCommand{StudentID: 1})
		require.NoError(t, err)

		saved, err := grants.GetByStudent(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, saved, 1)
		assert.Equal(t, achievement.TypeChilly, saved[0].Type)
	})

	t.Run("unknown student", func(t *testing.T) {
		h, _ := newHandler(&student.Student{ID: 1, Statistics: student.Statistics{}})
		_, err := h.Handle(ctx, RefreshAchievementsCommand{StudentID: 99})
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("invalid command", func(t *testing.T) {
		h, _ := newHandler(&student.Student{ID: 1, Statistics: student.Statistics{}})
		_, err := h.Handle(ctx, RefreshAchievementsCommand{})
		assert.Error(t, err)
	})
}
