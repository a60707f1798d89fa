// Package postgres implements the PostgreSQL persistence layer for Bonus Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `id, first_name, last_name, profession, started_at, statistics,
	   points, last_login, bonuses_last_visited, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, first_name, last_name, profession, started_at, statistics,
			points, last_login, bonuses_last_visited, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	statsJSON, err := json.Marshal(s.Statistics)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		int64(s.ID),
		s.FirstName,
		s.LastName,
		string(s.Profession),
		nullableTime(s.StartedAt),
		statsJSON,
		int(s.Points),
		nullableTime(s.LastLogin),
		nullableTime(s.BonusesLastVisited),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id student.ID) (*student.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, int64(id))
	return scanStudent(row)
}

// Update updates a student.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students SET
			first_name = $1,
			last_name = $2,
			profession = $3,
			started_at = $4,
			statistics = $5,
			points = $6,
			last_login = $7,
			bonuses_last_visited = $8,
			updated_at = $9
		WHERE id = $10
	`

	statsJSON, err := json.Marshal(s.Statistics)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		s.FirstName,
		s.LastName,
		string(s.Profession),
		nullableTime(s.StartedAt),
		statsJSON,
		int(s.Points),
		nullableTime(s.LastLogin),
		nullableTime(s.BonusesLastVisited),
		time.Now().UTC(),
		int64(s.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}

	if result.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// Upsert creates a student or updates an existing one in a single statement.
// Points are never touched here: the balance only changes through awards and
// purchases, while upserts carry feed data.
func (r *StudentRepository) Upsert(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, first_name, last_name, profession, started_at, statistics,
			points, last_login, bonuses_last_visited, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT(id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			profession = EXCLUDED.profession,
			started_at = EXCLUDED.started_at,
			statistics = EXCLUDED.statistics,
			updated_at = EXCLUDED.updated_at
	`

	statsJSON, err := json.Marshal(s.Statistics)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		int64(s.ID),
		s.FirstName,
		s.LastName,
		string(s.Profession),
		nullableTime(s.StartedAt),
		statsJSON,
		int(s.Points),
		nullableTime(s.LastLogin),
		nullableTime(s.BonusesLastVisited),
		s.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert student: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns students with pagination, ordered by ID for stable paging.
func (r *StudentRepository) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Points Operations
// ─────────────────────────────────────────────────────────────────────────────

// DebitPoints atomically debits the balance. The conditional UPDATE performs
// the check and the debit in one statement, so two concurrent debits can never
// spend the same points twice.
func (r *StudentRepository) DebitPoints(ctx context.Context, id student.ID, amount student.Points) (*student.Student, error) {
	if amount < 0 {
		return nil, student.ErrNegativeAmount
	}

	var result *student.Student
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			UPDATE students
			SET points = points - $1, updated_at = NOW()
			WHERE id = $2 AND points >= $1
		`, int(amount), int64(id))
		if err != nil {
			return fmt.Errorf("failed to debit points: %w", err)
		}

		if cmd.RowsAffected() == 0 {
			// Distinguish a missing student from an insufficient balance.
			var exists bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)",
				int64(id),
			).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check student existence: %w", err)
			}
			if !exists {
				return student.ErrStudentNotFound
			}
			return student.ErrInsufficientBalance
		}

		row := tx.QueryRow(ctx, `
			SELECT `+studentColumns+`
			FROM students
			WHERE id = $1
		`, int64(id))

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

// scanStudent scans a single student from a row.
func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var id int64
	var profession string
	var points int
	var statsJSON []byte
	var startedAt, lastLogin, bonusesVisited *time.Time

	err := row.Scan(
		&id,
		&s.FirstName,
		&s.LastName,
		&profession,
		&startedAt,
		&statsJSON,
		&points,
		&lastLogin,
		&bonusesVisited,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, student.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.ID = student.ID(id)
	s.Profession = student.Profession(profession)
	s.Points = student.Points(points)
	s.Statistics = unmarshalStatistics(statsJSON)
	if startedAt != nil {
		s.StartedAt = *startedAt
	}
	if lastLogin != nil {
		s.LastLogin = *lastLogin
	}
	if bonusesVisited != nil {
		s.BonusesLastVisited = *bonusesVisited
	}

	return &s, nil
}

// scanStudents scans multiple students from rows.
func scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	var students []*student.Student

	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return students, nil
}

// unmarshalStatistics decodes the JSONB statistics snapshot.
func unmarshalStatistics(data []byte) student.Statistics {
	stats := student.Statistics{}
	if len(data) == 0 {
		return stats
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return student.Statistics{}
	}
	return stats
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
