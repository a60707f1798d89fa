package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/internal/domain/challenge"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

func TestReconcileChallengesHandler(t *testing.T) {
	ctx := context.Background()

	newHandler := func(cs ...*challenge.Challenge) (*ReconcileChallengesHandler, *fakeChallengeRepo) {
		repo := newFakeChallengeRepo(newFakeStudentRepo(), cs...)
		return NewReconcileChallengesHandler(repo, testLogger()), repo
	}

	t.Run("upserts valid rows", func(t *testing.T) {
		h, repo := newHandler()

		result, err := h.Handle(ctx, ReconcileChallengesCommand{Rows: []ChallengeRow{
			{ID: "c1", Title: "Первый", Profession: "PD", Rule: "homework_total > 1", Value: 100, IsActive: true},
			{ID: "c2", Title: "Второй", Rule: "homework_total > 2", Value: 50, IsActive: false},
		}})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Created)
		assert.Zero(t, result.Updated)
		assert.Zero(t, result.Unchanged)
		assert.Empty(t, result.Rejected)
		assert.Equal(t, 2, result.Written())

		c1, err := repo.GetByID(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, student.ProfessionPD, c1.Profession)
		assert.True(t, c1.IsActive)

		// Пустая профессия означает "для всех"
		c2, err := repo.GetByID(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, student.ProfessionAll, c2.Profession)
		assert.False(t, c2.IsActive)
	})

	t.Run("bad row does not block the batch", func(t *testing.T) {
		h, repo := newHandler()

		result, err := h.Handle(ctx, ReconcileChallengesCommand{Rows: []ChallengeRow{
			{ID: "no_value", Title: "t", Rule: "x > 1", Value: 0, IsActive: true},
			{ID: "bad_rule", Title: "t", Rule: "(x > 1", Value: 10, IsActive: true},
			{ID: "good", Title: "t", Rule: "homework_total > 1", Value: 10, IsActive: true},
		}})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Created)
		require.Len(t, result.Rejected, 2)
		assert.Equal(t, "no_value", result.Rejected[0].ID)
		assert.Equal(t, "bad_rule", result.Rejected[1].ID)

		_, err = repo.GetByID(ctx, "good")
		assert.NoError(t, err)
		_, err = repo.GetByID(ctx, "bad_rule")
		assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)
	})

	t.Run("resubmitting the same batch changes nothing", func(t *testing.T) {
		h, _ := newHandler()

		rows := []ChallengeRow{
			{ID: "c1", Title: "t", Profession: "ALL", Rule: "homework_total >= 5", Value: 10, IsActive: true},
		}

		result, err := h.Handle(ctx, ReconcileChallengesCommand{Rows: rows})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)

		result, err = h.Handle(ctx, ReconcileChallengesCommand{Rows: rows})
		require.NoError(t, err)
		assert.Zero(t, result.Created)
		assert.Zero(t, result.Updated)
		assert.Equal(t, 1, result.Unchanged)
		assert.Empty(t, result.Rejected)
	})

	t.Run("changed row updates in place", func(t *testing.T) {
		existing := mustChallenge(t, "c1", student.ProfessionAll, "homework_total >= 5", 10)
		h, repo := newHandler(existing)

		result, err := h.Handle(ctx, ReconcileChallengesCommand{Rows: []ChallengeRow{
			{ID: "c1", Title: existing.Title, Profession: "ALL", Rule: "homework_total >= 5", Value: 25, IsActive: true},
		}})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Zero(t, result.Created)

		got, err := repo.GetByID(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, student.Points(25), got.Value)
	})

	t.Run("absent challenges are left untouched", func(t *testing.T) {
		existing := mustChallenge(t, "old", student.ProfessionAll, "homework_total > 1", 10)
		h, repo := newHandler(existing)

		_, err := h.Handle(ctx, ReconcileChallengesCommand{Rows: []ChallengeRow{
			{ID: "new", Title: "t", Rule: "homework_total > 2", Value: 20, IsActive: true},
		}})
		require.NoError(t, err)

		old, err := repo.GetByID(ctx, "old")
		require.NoError(t, err)
		assert.True(t, old.IsActive)
	})

	t.Run("empty batch is invalid", func(t *testing.T) {
		h, _ := newHandler()
		_, err := h.Handle(ctx, ReconcileChallengesCommand{})
		assert.Error(t, err)
	})
}

func TestSetChallengeActiveHandler(t *testing.T) {
	ctx := context.Background()

	c := mustChallenge(t, "c1", student.ProfessionAll, "homework_total > 1", 10)
	repo := newFakeChallengeRepo(newFakeStudentRepo(), c)
	h := NewSetChallengeActiveHandler(repo, testLogger())

	require.NoError(t, h.Handle(ctx, SetChallengeActiveCommand{ChallengeID: "c1", Active: false}))
	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, h.Handle(ctx, SetChallengeActiveCommand{ChallengeID: "c1", Active: true}))
	got, _ = repo.GetByID(ctx, "c1")
	assert.True(t, got.IsActive)

	assert.Error(t, h.Handle(ctx, SetChallengeActiveCommand{ChallengeID: ""}))
	assert.ErrorIs(t,
		h.Handle(ctx, SetChallengeActiveCommand{ChallengeID: "missing", Active: true}),
		challenge.ErrChallengeNotFound)
}
