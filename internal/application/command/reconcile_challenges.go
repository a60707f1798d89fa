// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/challenge"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
	"github.com/skypro-hub/bonus-hub/pkg/ruleeval"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CHALLENGES COMMAND
// Synchronizes the challenge catalog from the editorial table into storage.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRow is one row of the editorial challenge table.
type ChallengeRow struct {
	ID         string
	Title      string
	Profession string
	Rule       string
	Value      int
	IsActive   bool
}

// ReconcileChallengesCommand carries a batch of editorial rows.
type ReconcileChallengesCommand struct {
	Rows []ChallengeRow
}

// Validate validates the command.
func (c ReconcileChallengesCommand) Validate() error {
	if len(c.Rows) == 0 {
		return errors.New("reconcile_challenges: empty batch")
	}
	return nil
}

// RowError describes a rejected editorial row.
type RowError struct {
	ID  string
	Err error
}

// ReconcileChallengesResult summarizes a reconciliation run.
type ReconcileChallengesResult struct {
	// Created is the count of challenges seen for the first time.
	Created int

	// Updated is the count of stored challenges whose business fields
	// differed from the incoming row.
	Updated int

	// Unchanged is the count of rows that matched storage exactly.
	Unchanged int

	// Rejected contains rows that failed validation, rule parsing or
	// storage. A bad row never blocks the rest of the batch.
	Rejected []RowError

	// Duration is the total reconciliation time.
	Duration time.Duration
}

// Written returns the number of rows that reached storage.
func (r *ReconcileChallengesResult) Written() int {
	return r.Created + r.Updated
}

// ReconcileChallengesHandler handles the ReconcileChallengesCommand.
//
// Challenges present in storage but absent from the batch are left
// untouched: partial editorial exports must not deactivate the catalog.
// Deactivation is a separate, explicit command.
type ReconcileChallengesHandler struct {
	challengeRepo challenge.Repository
	log           *logger.Logger
}

// NewReconcileChallengesHandler creates a new ReconcileChallengesHandler.
func NewReconcileChallengesHandler(
	challengeRepo challenge.Repository,
	log *logger.Logger,
) *ReconcileChallengesHandler {
	return &ReconcileChallengesHandler{
		challengeRepo: challengeRepo,
		log:           log,
	}
}

// Handle executes the reconciliation.
func (h *ReconcileChallengesHandler) Handle(ctx context.Context, cmd ReconcileChallengesCommand) (*ReconcileChallengesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	result := &ReconcileChallengesResult{}

	for _, row := range cmd.Rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconcile_challenges: %w", err)
		}

		c, err := h.buildChallenge(row)
		if err != nil {
			result.Rejected = append(result.Rejected, RowError{ID: row.ID, Err: err})
			h.log.Warn("challenge row rejected",
				logger.String("challenge_id", row.ID),
				logger.Err(err),
			)
			continue
		}

		existing, lookupErr := h.challengeRepo.GetByID(ctx, c.ID)
		if lookupErr != nil && !errors.Is(lookupErr, challenge.ErrChallengeNotFound) {
			result.Rejected = append(result.Rejected, RowError{ID: c.ID, Err: lookupErr})
			h.log.Error("challenge lookup failed",
				logger.String("challenge_id", c.ID),
				logger.Err(lookupErr),
			)
			continue
		}

		if lookupErr == nil && existing.Matches(c) {
			result.Unchanged++
			continue
		}

		if err := h.challengeRepo.Upsert(ctx, c); err != nil {
			result.Rejected = append(result.Rejected, RowError{ID: c.ID, Err: err})
			h.log.Error("challenge upsert failed",
				logger.String("challenge_id", c.ID),
				logger.Err(err),
			)
			continue
		}
		if lookupErr == nil {
			result.Updated++
		} else {
			result.Created++
		}
	}

	result.Duration = time.Since(started)

	h.log.Info("challenge catalog reconciled",
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("unchanged", result.Unchanged),
		logger.Int("rejected", len(result.Rejected)),
		logger.Duration("duration", result.Duration),
	)

	return result, nil
}

// buildChallenge validates a row and parses its rule before it can
// enter storage. A rule that does not parse never reaches the awarder.
func (h *ReconcileChallengesHandler) buildChallenge(row ChallengeRow) (*challenge.Challenge, error) {
	prof := student.ProfessionAll
	if row.Profession != "" {
		prof = student.ParseProfession(row.Profession)
	}

	c, err := challenge.New(row.ID, row.Title, prof, row.Rule, row.Value)
	if err != nil {
		return nil, err
	}
	c.IsActive = row.IsActive

	if _, err := ruleeval.Parse(c.Rule); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SET CHALLENGE ACTIVE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SetChallengeActiveCommand explicitly activates or deactivates a challenge.
// Deactivation keeps the challenge row and its completion history.
type SetChallengeActiveCommand struct {
	ChallengeID string
	Active      bool
}

// Validate validates the command.
func (c SetChallengeActiveCommand) Validate() error {
	if c.ChallengeID == "" {
		return errors.New("set_challenge_active: challenge_id must be provided")
	}
	return nil
}

// SetChallengeActiveHandler handles the SetChallengeActiveCommand.
type SetChallengeActiveHandler struct {
	challengeRepo challenge.Repository
	log           *logger.Logger
}

// NewSetChallengeActiveHandler creates a new SetChallengeActiveHandler.
func NewSetChallengeActiveHandler(
	challengeRepo challenge.Repository,
	log *logger.Logger,
) *SetChallengeActiveHandler {
	return &SetChallengeActiveHandler{challengeRepo: challengeRepo, log: log}
}

// Handle executes the command.
func (h *SetChallengeActiveHandler) Handle(ctx context.Context, cmd SetChallengeActiveCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if err := h.challengeRepo.SetActive(ctx, cmd.ChallengeID, cmd.Active); err != nil {
		return fmt.Errorf("set_challenge_active: %w", err)
	}

	h.log.Info("challenge active flag changed",
		logger.String("challenge_id", cmd.ChallengeID),
		logger.Bool("active", cmd.Active),
	)
	return nil
}
