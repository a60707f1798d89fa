package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/skypro-hub/bonus-hub/internal/domain/achievement"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH ACHIEVEMENTS COMMAND
// Re-evaluates the achievement catalog for a student and persists the
// earned set. Re-earning refreshes the timestamp instead of duplicating.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshAchievementsCommand identifies the student to evaluate.
type RefreshAchievementsCommand struct {
	StudentID student.ID
}

// Validate validates the command.
func (c RefreshAchievementsCommand) Validate() error {
	if !c.StudentID.IsValid() {
		return errors.New("refresh_achievements: invalid student id")
	}
	return nil
}

// RefreshAchievementsResult summarizes the evaluation.
type RefreshAchievementsResult struct {
	// Earned contains all achievements the statistics currently support.
	Earned []achievement.Grant

	// Display is the one achievement picked for the statistics page.
	// Always set: when nothing was earned it falls back to the
	// introductory chilly achievement.
	Display *achievement.Grant
}

// RefreshAchievementsHandler handles the RefreshAchievementsCommand.
type RefreshAchievementsHandler struct {
	studentRepo     student.Repository
	achievementRepo achievement.Repository
	engine          *achievement.Engine
	log             *logger.Logger
}

// NewRefreshAchievementsHandler creates a new RefreshAchievementsHandler.
func NewRefreshAchievementsHandler(
	studentRepo student.Repository,
	achievementRepo achievement.Repository,
	engine *achievement.Engine,
	log *logger.Logger,
) *RefreshAchievementsHandler {
	return &RefreshAchievementsHandler{
		studentRepo:     studentRepo,
		achievementRepo: achievementRepo,
		engine:          engine,
		log:             log,
	}
}

// Handle executes the evaluation.
func (h *RefreshAchievementsHandler) Handle(ctx context.Context, cmd RefreshAchievementsCommand) (*RefreshAchievementsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.studentRepo.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("refresh_achievements: load student: %w", err)
	}

	earned := h.engine.Evaluate(s)
	result := &RefreshAchievementsResult{Earned: earned}

	if len(earned) > 0 {
		if err := h.achievementRepo.SaveGrants(ctx, earned); err != nil {
			return nil, fmt.Errorf("refresh_achievements: save grants: %w", err)
		}
	}

	display := h.engine.PickDisplay(s, earned)
	result.Display = &display

	h.log.Debug("achievements refreshed",
		logger.StudentID(int64(s.ID)),
		logger.Int("earned", len(earned)),
	)

	return result, nil
}
