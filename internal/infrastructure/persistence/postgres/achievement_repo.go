// Package postgres implements the PostgreSQL persistence layer for Bonus Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/skypro-hub/bonus-hub/internal/domain/achievement"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// SaveGrants saves a student's achievement grants. Re-granting the same type
// refreshes earned_at and the rendered texts instead of creating a duplicate.
func (r *AchievementRepository) SaveGrants(ctx context.Context, grants []achievement.Grant) error {
	query := `
		INSERT INTO achievements (student_id, type, title, description, picture, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT(student_id, type) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			picture = EXCLUDED.picture,
			earned_at = EXCLUDED.earned_at
	`

	for _, g := range grants {
		_, err := r.conn.Exec(ctx, query,
			int64(g.StudentID),
			string(g.Type),
			g.Title,
			g.Description,
			g.Picture,
			g.EarnedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save grant %s: %w", g.Type, err)
		}
	}

	return nil
}

// GetByStudent returns a student's grants in grant order.
func (r *AchievementRepository) GetByStudent(ctx context.Context, id student.ID) ([]achievement.Grant, error) {
	query := `
		SELECT student_id, type, title, description, picture, earned_at
		FROM achievements
		WHERE student_id = $1
		ORDER BY earned_at ASC, id ASC
	`

	rows, err := r.conn.Query(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var grants []achievement.Grant
	for rows.Next() {
		var g achievement.Grant
		var studentID int64
		var grantType string

		err := rows.Scan(&studentID, &grantType, &g.Title, &g.Description, &g.Picture, &g.EarnedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}

		g.StudentID = student.ID(studentID)
		g.Type = achievement.Type(grantType)
		grants = append(grants, g)
	}

	return grants, rows.Err()
}

// DeleteByStudent removes all grants of a student.
func (r *AchievementRepository) DeleteByStudent(ctx context.Context, id student.ID) error {
	_, err := r.conn.Exec(ctx, "DELETE FROM achievements WHERE student_id = $1", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete achievements: %w", err)
	}
	return nil
}
