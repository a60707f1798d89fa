package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/challenge"
	"github.com/skypro-hub/bonus-hub/internal/domain/shared"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
	"github.com/skypro-hub/bonus-hub/pkg/ruleeval"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD CHALLENGES COMMAND
// Evaluates eligible challenges against a student's statistics and credits
// points for the newly completed ones.
// ══════════════════════════════════════════════════════════════════════════════

// AwardChallengesCommand identifies the student to evaluate.
type AwardChallengesCommand struct {
	StudentID student.ID

	// Stats overrides the stored statistics when non-nil. The sync job
	// passes the fresh snapshot here to avoid a reload.
	Stats student.Statistics
}

// Validate validates the command.
func (c AwardChallengesCommand) Validate() error {
	if !c.StudentID.IsValid() {
		return errors.New("award_challenges: invalid student id")
	}
	return nil
}

// RuleFailure records a challenge whose rule could not be evaluated.
// A failing rule skips its challenge only; the rest of the batch proceeds.
type RuleFailure struct {
	ChallengeID string
	Err         error
}

// AwardChallengesResult summarizes one awarding pass over a student.
type AwardChallengesResult struct {
	// Evaluated is the count of eligible challenges checked.
	Evaluated int

	// Awarded contains IDs of newly completed challenges.
	Awarded []string

	// PointsCredited is the total award, zero when nothing completed.
	PointsCredited student.Points

	// NewBalance is the student's balance after the award.
	NewBalance student.Points

	// Remaining contains IDs of eligible challenges still open after
	// the pass.
	Remaining []string

	// Completed contains the full completed set, earlier passes included.
	Completed []string

	// Failures contains challenges skipped due to rule errors.
	Failures []RuleFailure
}

// AwardChallengesHandler handles the AwardChallengesCommand.
//
// The pass is idempotent: eligibility excludes already completed
// challenges, and CommitAward ignores duplicate completions, so running
// the same statistics twice credits nothing the second time.
type AwardChallengesHandler struct {
	studentRepo   student.Repository
	challengeRepo challenge.Repository
	log           *logger.Logger
}

// NewAwardChallengesHandler creates a new AwardChallengesHandler.
func NewAwardChallengesHandler(
	studentRepo student.Repository,
	challengeRepo challenge.Repository,
	log *logger.Logger,
) *AwardChallengesHandler {
	return &AwardChallengesHandler{
		studentRepo:   studentRepo,
		challengeRepo: challengeRepo,
		log:           log,
	}
}

// Handle executes one awarding pass.
func (h *AwardChallengesHandler) Handle(ctx context.Context, cmd AwardChallengesCommand) (*AwardChallengesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.studentRepo.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("award_challenges: load student: %w", err)
	}

	stats := cmd.Stats
	if stats == nil {
		stats = s.Statistics
	}

	eligible, err := h.challengeRepo.ListEligible(ctx, s.ID, s.Profession)
	if err != nil {
		return nil, fmt.Errorf("award_challenges: list eligible: %w", err)
	}

	prior, err := h.challengeRepo.GetCompletions(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("award_challenges: load completions: %w", err)
	}

	result := &AwardChallengesResult{
		Evaluated:  len(eligible),
		NewBalance: s.Points,
	}
	for _, c := range prior {
		result.Completed = append(result.Completed, c.ChallengeID)
	}

	completions := h.evaluate(s, eligible, stats, result)
	if len(completions) > 0 {
		updated, err := h.challengeRepo.CommitAward(ctx, s.ID, completions)
		if err != nil {
			return nil, fmt.Errorf("award_challenges: commit award: %w", err)
		}
		result.NewBalance = updated.Points
	}

	awarded := make(map[string]bool, len(completions))
	for _, c := range completions {
		awarded[c.ChallengeID] = true
		result.Awarded = append(result.Awarded, c.ChallengeID)
		result.Completed = append(result.Completed, c.ChallengeID)
		result.PointsCredited += c.Value
	}
	for _, c := range eligible {
		if !awarded[c.ID] {
			result.Remaining = append(result.Remaining, c.ID)
		}
	}

	if len(completions) > 0 {
		h.log.Info("challenges awarded",
			logger.StudentID(int64(s.ID)),
			logger.Int("awarded", len(result.Awarded)),
			logger.PointsAmount(int(result.PointsCredited)),
		)
	}

	return result, nil
}

// evaluate runs every eligible rule against the statistics snapshot.
// Rule failures are collected, not propagated: one broken editorial
// expression must not freeze awarding for the whole student.
func (h *AwardChallengesHandler) evaluate(
	s *student.Student,
	eligible []*challenge.Challenge,
	stats student.Statistics,
	result *AwardChallengesResult,
) []challenge.Completion {
	vars := ruleeval.Vars(stats)
	now := time.Now().UTC()

	var completions []challenge.Completion
	for _, c := range eligible {
		passed, err := ruleeval.Eval(c.Rule, vars)
		if err != nil {
			failure := shared.WrapError("challenge", "Award", shared.ErrEvaluation, "rule evaluation failed", err)
			result.Failures = append(result.Failures, RuleFailure{ChallengeID: c.ID, Err: failure})
			h.log.Warn("challenge rule failed",
				logger.StudentID(int64(s.ID)),
				logger.ChallengeID(c.ID),
				logger.Err(err),
			)
			continue
		}
		if !passed {
			continue
		}
		completions = append(completions, challenge.Completion{
			StudentID:   s.ID,
			ChallengeID: c.ID,
			Value:       c.Value,
			CompletedAt: now,
		})
	}
	return completions
}
