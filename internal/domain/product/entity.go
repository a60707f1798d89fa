// Package product содержит доменную модель товаров бонусной лавки.
package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/shared"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

var (
	// ErrProductNotFound - товар не найден.
	ErrProductNotFound = shared.NewDomainError("product", "Find", shared.ErrNotFound, "product not found")

	// ErrProductInactive - товар снят с продажи.
	ErrProductInactive = shared.NewDomainError("product", "Purchase", shared.ErrInvalidState, "product is inactive")

	// ErrEmptyID - пустой идентификатор товара.
	ErrEmptyID = shared.NewDomainError("product", "New", shared.ErrEmptyValue, "product id must not be empty")

	// ErrEmptyTitle - пустой заголовок товара.
	ErrEmptyTitle = shared.NewDomainError("product", "New", shared.ErrEmptyValue, "product title must not be empty")

	// ErrNonPositiveValue - цена должна быть положительной.
	ErrNonPositiveValue = shared.NewDomainError("product", "New", shared.ErrInvalidInput, "product value must be positive")
)

// Product - товар, который студент может купить за бонусы.
type Product struct {
	// ID - стабильный строковый идентификатор из таблицы каталога.
	ID string

	Title       string
	Description string

	// Value - цена в бонусах.
	Value student.Points

	// IsActive - неактивные товары недоступны для покупки.
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт товар с валидацией полей.
func New(id, title, description string, value int) (*Product, error) {
	p := &Product{
		ID:          strings.TrimSpace(id),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Value:       student.Points(value),
		IsActive:    true,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

// Validate проверяет инварианты товара.
func (p *Product) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if p.Value <= 0 {
		return ErrNonPositiveValue
	}
	return nil
}

// String возвращает строковое представление для логирования.
func (p *Product) String() string {
	return fmt.Sprintf("Product{ID: %s, Title: %s, Value: %d, Active: %v}",
		p.ID, p.Title, p.Value, p.IsActive)
}

// Purchase - факт покупки товара студентом.
type Purchase struct {
	ID        int64
	StudentID student.ID
	ProductID string

	// AddedBy - кто оформил покупку: сам студент либо администратор.
	AddedBy string

	CreatedAt time.Time
}
