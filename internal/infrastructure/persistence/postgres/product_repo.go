// Package postgres implements the PostgreSQL persistence layer for Bonus Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/product"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRODUCT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProductRepository implements product.Repository for PostgreSQL.
type ProductRepository struct {
	conn *Connection
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(conn *Connection) *ProductRepository {
	return &ProductRepository{conn: conn}
}

const productColumns = `id, title, description, value, is_active, created_at, updated_at`

// GetByID returns a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return scanProduct(row)
}

// GetActive returns products available for purchase.
func (r *ProductRepository) GetActive(ctx context.Context) ([]*product.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active
		ORDER BY value ASC, id ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active products: %w", err)
	}
	defer rows.Close()

	var products []*product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// Upsert creates a product or updates an existing one by ID.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	query := `
		INSERT INTO products (id, title, description, value, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			value = EXCLUDED.value,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.Title,
		p.Description,
		int(p.Value),
		p.IsActive,
		p.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}

// CommitPurchase records a purchase and debits the price from the student's
// balance in a single transaction. The conditional UPDATE checks and debits
// atomically; on insufficient balance nothing is written.
func (r *ProductRepository) CommitPurchase(ctx context.Context, purchase product.Purchase, price student.Points) (*student.Student, error) {
	if price < 0 {
		return nil, student.ErrNegativeAmount
	}

	var result *student.Student
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			UPDATE students
			SET points = points - $1, updated_at = NOW()
			WHERE id = $2 AND points >= $1
		`, int(price), int64(purchase.StudentID))
		if err != nil {
			return fmt.Errorf("failed to debit purchase price: %w", err)
		}

		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)",
				int64(purchase.StudentID),
			).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check student existence: %w", err)
			}
			if !exists {
				return student.ErrStudentNotFound
			}
			return student.ErrInsufficientBalance
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO student_products (student_id, product_id, added_by, created_at)
			VALUES ($1, $2, $3, $4)
		`, int64(purchase.StudentID), purchase.ProductID, purchase.AddedBy, purchase.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record purchase: %w", err)
		}

		row := tx.QueryRow(ctx, `
			SELECT `+studentColumns+`
			FROM students
			WHERE id = $1
		`, int64(purchase.StudentID))

		result, err = scanStudent(row)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetPurchases returns a student's purchases from newest to oldest.
func (r *ProductRepository) GetPurchases(ctx context.Context, id student.ID) ([]product.Purchase, error) {
	query := `
		SELECT id, student_id, product_id, added_by, created_at
		FROM student_products
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.conn.Query(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []product.Purchase
	for rows.Next() {
		var p product.Purchase
		var studentID int64

		if err := rows.Scan(&p.ID, &studentID, &p.ProductID, &p.AddedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}

		p.StudentID = student.ID(studentID)
		purchases = append(purchases, p)
	}

	return purchases, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanProduct scans a single product from a row.
func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	var value int

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&value,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	p.Value = student.Points(value)

	return &p, nil
}
