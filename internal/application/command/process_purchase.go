package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/product"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS PURCHASE COMMAND
// Spends bonus points on a shop product. Balance check and debit happen in
// one transaction, so the balance can never go negative.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessPurchaseCommand carries the purchase request.
type ProcessPurchaseCommand struct {
	StudentID student.ID
	ProductID string

	// AddedBy records who initiated the purchase (the student themselves
	// or an administrator login).
	AddedBy string
}

// Validate validates the command.
func (c ProcessPurchaseCommand) Validate() error {
	if !c.StudentID.IsValid() {
		return errors.New("process_purchase: invalid student id")
	}
	if c.ProductID == "" {
		return errors.New("process_purchase: product_id must be provided")
	}
	return nil
}

// ProcessPurchaseResult describes a committed purchase.
type ProcessPurchaseResult struct {
	ProductTitle string
	PricePaid    student.Points
	NewBalance   student.Points
	PurchasedAt  time.Time
}

// PurchaseExporter pushes a purchase record to the external report.
// Export is best-effort: a failing exporter never rolls back a purchase.
type PurchaseExporter interface {
	ExportPurchase(studentID student.ID, productID, productTitle string, price student.Points)
}

// ProcessPurchaseHandler handles the ProcessPurchaseCommand.
type ProcessPurchaseHandler struct {
	studentRepo student.Repository
	productRepo product.Repository
	exporter    PurchaseExporter
	log         *logger.Logger
}

// NewProcessPurchaseHandler creates a new ProcessPurchaseHandler.
// exporter may be nil when purchase export is disabled.
func NewProcessPurchaseHandler(
	studentRepo student.Repository,
	productRepo product.Repository,
	exporter PurchaseExporter,
	log *logger.Logger,
) *ProcessPurchaseHandler {
	return &ProcessPurchaseHandler{
		studentRepo: studentRepo,
		productRepo: productRepo,
		exporter:    exporter,
		log:         log,
	}
}

// Handle executes the purchase.
func (h *ProcessPurchaseHandler) Handle(ctx context.Context, cmd ProcessPurchaseCommand) (*ProcessPurchaseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p, err := h.productRepo.GetByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, fmt.Errorf("process_purchase: load product: %w", err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("process_purchase: %s: %w", p.ID, product.ErrProductInactive)
	}

	purchase := product.Purchase{
		StudentID: cmd.StudentID,
		ProductID: p.ID,
		AddedBy:   cmd.AddedBy,
		CreatedAt: time.Now().UTC(),
	}

	updated, err := h.productRepo.CommitPurchase(ctx, purchase, p.Value)
	if err != nil {
		if errors.Is(err, student.ErrInsufficientBalance) {
			h.log.Info("purchase rejected: insufficient balance",
				logger.StudentID(int64(cmd.StudentID)),
				logger.ProductID(p.ID),
				logger.PointsAmount(int(p.Value)),
			)
		}
		return nil, fmt.Errorf("process_purchase: commit: %w", err)
	}

	if h.exporter != nil {
		h.exporter.ExportPurchase(cmd.StudentID, p.ID, p.Title, p.Value)
	}

	h.log.Info("purchase committed",
		logger.StudentID(int64(cmd.StudentID)),
		logger.ProductID(p.ID),
		logger.PointsAmount(int(p.Value)),
	)

	return &ProcessPurchaseResult{
		ProductTitle: p.Title,
		PricePaid:    p.Value,
		NewBalance:   updated.Points,
		PurchasedAt:  purchase.CreatedAt,
	}, nil
}
