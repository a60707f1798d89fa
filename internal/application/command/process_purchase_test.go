package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/internal/domain/product"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

func mustProduct(t *testing.T, id string, value int) *product.Product {
	t.Helper()
	p, err := product.New(id, "title "+id, "", value)
	require.NoError(t, err)
	return p
}

func TestProcessPurchaseHandler(t *testing.T) {
	ctx := context.Background()

	newHandler := func(s *student.Student, exporter PurchaseExporter, ps ...*product.Product) (*ProcessPurchaseHandler, *fakeStudentRepo, *fakeProductRepo) {
		students := newFakeStudentRepo(s)
		products := newFakeProductRepo(students, ps...)
		return NewProcessPurchaseHandler(students, products, exporter, testLogger()), students, products
	}

	t.Run("commits and exports", func(t *testing.T) {
		exporter := &fakeExporter{}
		h, students, products := newHandler(
			&student.Student{ID: 1, Points: 300},
			exporter,
			mustProduct(t, "sticker_pack", 200),
		)

		result, err := h.Handle(ctx, ProcessPurchaseCommand{
			StudentID: 1,
			ProductID: "sticker_pack",
			AddedBy:   "student",
		})
		require.NoError(t, err)

		assert.Equal(t, "title sticker_pack", result.ProductTitle)
		assert.Equal(t, student.Points(200), result.PricePaid)
		assert.Equal(t, student.Points(100), result.NewBalance)

		stored, err := students.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, student.Points(100), stored.Points)

		purchases, err := products.GetPurchases(ctx, 1)
		require.NoError(t, err)
		require.Len(t, purchases, 1)
		assert.Equal(t, "student", purchases[0].AddedBy)

		assert.Equal(t, []string{"sticker_pack"}, exporter.exported)
	})

	t.Run("insufficient balance rejects without purchase", func(t *testing.T) {
		exporter := &fakeExporter{}
		h, students, products := newHandler(
			&student.Student{ID: 1, Points: 100},
			exporter,
			mustProduct(t, "sticker_pack", 200),
		)

		_, err := h.Handle(ctx, ProcessPurchaseCommand{StudentID: 1, ProductID: "sticker_pack"})
		assert.ErrorIs(t, err, student.ErrInsufficientBalance)

		stored, _ := students.GetByID(ctx, 1)
		assert.Equal(t, student.Points(100), stored.Points)

		purchases, _ := products.GetPurchases(ctx, 1)
		assert.Empty(t, purchases)
		assert.Empty(t, exporter.exported)
	})

	t.Run("exact balance spends to zero", func(t *testing.T) {
		h, students, _ := newHandler(
			&student.Student{ID: 1, Points: 200},
			nil,
			mustProduct(t, "sticker_pack", 200),
		)

		result, err := h.Handle(ctx, ProcessPurchaseCommand{StudentID: 1, ProductID: "sticker_pack"})
		require.NoError(t, err)
		assert.Equal(t, student.Points(0), result.NewBalance)

		stored, _ := students.GetByID(ctx, 1)
		assert.Equal(t, student.Points(0), stored.Points)
	})

	t.Run("inactive product", func(t *testing.T) {
		p := mustProduct(t, "retired", 50)
		p.IsActive = false
		h, _, _ := newHandler(&student.Student{ID: 1, Points: 100}, nil, p)

		_, err := h.Handle(ctx, ProcessPurchaseCommand{StudentID: 1, ProductID: "retired"})
		assert.ErrorIs(t, err, product.ErrProductInactive)
	})

	t.Run("unknown product", func(t *testing.T) {
		h, _, _ := newHandler(&student.Student{ID: 1, Points: 100}, nil)
		_, err := h.Handle(ctx, ProcessPurchaseCommand{StudentID: 1, ProductID: "missing"})
		assert.ErrorIs(t, err, product.ErrProductNotFound)
	})

	t.Run("nil exporter is allowed", func(t *testing.T) {
		h, _, _ := newHandler(
			&student.Student{ID: 1, Points: 300},
			nil,
			mustProduct(t, "sticker_pack", 200),
		)

		_, err := h.Handle(ctx, ProcessPurchaseCommand{StudentID: 1, ProductID: "sticker_pack"})
		assert.NoError(t, err)
	})

	t.Run("invalid command", func(t *testing.T) {
		h, _, _ := newHandler(&student.Student{ID: 1}, nil)

		_, err := h.Handle(ctx, ProcessPurchaseCommand{StudentID: 0, ProductID: "x"})
		assert.Error(t, err)

		_, err = h.Handle(ctx, ProcessPurchaseCommand{StudentID: 1, ProductID: ""})
		assert.Error(t, err)
	})
}
