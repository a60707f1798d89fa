// Package postgres implements the PostgreSQL persistence layer for Bonus Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/challenge"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `id, title, profession, rule, value, is_active, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Catalog Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return scanChallenge(row)
}

// GetAll returns the whole challenge catalog.
func (r *ChallengeRepository) GetAll(ctx context.Context) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		ORDER BY id ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	return scanChallenges(rows)
}

// Upsert creates a challenge or updates an existing one by ID.
func (r *ChallengeRepository) Upsert(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (id, title, profession, rule, value, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(id) DO UPDATE SET
			title = EXCLUDED.title,
			profession = EXCLUDED.profession,
			rule = EXCLUDED.rule,
			value = EXCLUDED.value,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.Title,
		string(c.Profession),
		c.Rule,
		int(c.Value),
		c.IsActive,
		c.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert challenge: %w", err)
	}

	return nil
}

// SetActive explicitly enables or disables a challenge.
func (r *ChallengeRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE challenges
		SET is_active = $1, updated_at = NOW()
		WHERE id = $2
	`, active, id)
	if err != nil {
		return fmt.Errorf("failed to set challenge active: %w", err)
	}

	if result.RowsAffected() == 0 {
		return challenge.ErrChallengeNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Eligibility
// ─────────────────────────────────────────────────────────────────────────────

// ListEligible returns active challenges matching the student's profession,
// excluding the ones the student has already completed.
func (r *ChallengeRepository) ListEligible(ctx context.Context, id student.ID, p student.Profession) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE is_active
		  AND profession IN ($1, 'ALL')
		  AND id NOT IN (
			SELECT challenge_id FROM student_challenges WHERE student_id = $2
		  )
		ORDER BY id ASC
	`

	rows, err := r.conn.Query(ctx, query, string(p), int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible challenges: %w", err)
	}
	defer rows.Close()

	return scanChallenges(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Completions
// ─────────────────────────────────────────────────────────────────────────────

// GetCompletions returns a student's completions in completion order.
func (r *ChallengeRepository) GetCompletions(ctx context.Context, id student.ID) ([]challenge.Completion, error) {
	query := `
		SELECT student_id, challenge_id, value, completed_at
		FROM student_challenges
		WHERE student_id = $1
		ORDER BY completed_at ASC, id ASC
	`

	rows, err := r.conn.Query(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []challenge.Completion
	for rows.Next() {
		var c challenge.Completion
		var studentID int64
		var value int

		if err := rows.Scan(&studentID, &c.ChallengeID, &value, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}

		c.StudentID = student.ID(studentID)
		c.Value = student.Points(value)
		completions = append(completions, c)
	}

	return completions, rows.Err()
}

// CommitAward records completions and credits the total reward to the
// student's balance in a single transaction. pg_advisory_xact_lock serializes
// concurrent awards to the same student; the lock is released with the
// transaction. A completion pair that already exists is skipped and its
// reward is not credited.
func (r *ChallengeRepository) CommitAward(ctx context.Context, id student.ID, completions []challenge.Completion) (*student.Student, error) {
	var result *student.Student
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(id)); err != nil {
			return fmt.Errorf("failed to acquire award lock: %w", err)
		}

		var total int
		for _, c := range completions {
			cmd, err := tx.Exec(ctx, `
				INSERT INTO student_challenges (student_id, challenge_id, value, completed_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT(student_id, challenge_id) DO NOTHING
			`, int64(id), c.ChallengeID, int(c.Value), c.CompletedAt)
			if err != nil {
				return fmt.Errorf("failed to record completion %s: %w", c.ChallengeID, err)
			}

			// A duplicate pair inserts nothing and earns nothing.
			if cmd.RowsAffected() > 0 {
				total += int(c.Value)
			}
		}

		if total > 0 {
			cmd, err := tx.Exec(ctx, `
				UPDATE students
				SET points = points + $1, updated_at = NOW()
				WHERE id = $2
			`, total, int64(id))
			if err != nil {
				return fmt.Errorf("failed to credit points: %w", err)
			}
			if cmd.RowsAffected() == 0 {
				return student.ErrStudentNotFound
			}
		}

		row := tx.QueryRow(ctx, `
			SELECT `+studentColumns+`
			FROM students
			WHERE id = $1
		`, int64(id))

		var err error
		result, err = scanStudent(row)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanChallenge scans a single challenge from a row.
func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var c challenge.Challenge
	var profession string
	var value int

	err := row.Scan(
		&c.ID,
		&c.Title,
		&profession,
		&c.Rule,
		&value,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, challenge.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan challenge: %w", err)
	}

	c.Profession = student.Profession(profession)
	c.Value = student.Points(value)

	return &c, nil
}

// scanChallenges scans multiple challenges from rows.
func scanChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	var challenges []*challenge.Challenge

	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return challenges, nil
}
