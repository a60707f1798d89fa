package export

import (
	"context"
	"strconv"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// PurchaseExporter renders purchases into report rows and hands them to
// the retry queue. It satisfies the application layer's exporter port.
type PurchaseExporter struct {
	queue *Queue

	// ctx bounds the lifetime of background pushes; cancelled on shutdown.
	ctx context.Context
}

// NewPurchaseExporter creates a purchase exporter bound to ctx.
func NewPurchaseExporter(ctx context.Context, queue *Queue) *PurchaseExporter {
	return &PurchaseExporter{queue: queue, ctx: ctx}
}

// ExportPurchase pushes one purchase row. Fire-and-forget: failures are
// retried by the queue and never surface to the caller.
func (e *PurchaseExporter) ExportPurchase(studentID student.ID, productID, productTitle string, price student.Points) {
	e.queue.Push(e.ctx,
		strconv.FormatInt(int64(studentID), 10),
		productID,
		productTitle,
		strconv.Itoa(int(price)),
	)
}
