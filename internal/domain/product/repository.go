package product

import (
	"context"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// Repository определяет контракт хранилища товаров и покупок.
type Repository interface {
	// GetByID возвращает товар по идентификатору.
	// Возвращает ErrProductNotFound, если товар не найден.
	GetByID(ctx context.Context, id string) (*Product, error)

	// GetActive возвращает товары, доступные для покупки.
	GetActive(ctx context.Context) ([]*Product, error)

	// Upsert создаёт товар или обновляет существующий по ID.
	Upsert(ctx context.Context, p *Product) error

	// CommitPurchase в одной транзакции записывает покупку и списывает
	// цену с баланса студента. Проверка баланса и списание не разделяются:
	// при нехватке бонусов возвращается student.ErrInsufficientBalance
	// и покупка не записывается.
	CommitPurchase(ctx context.Context, purchase Purchase, price student.Points) (*student.Student, error)

	// GetPurchases возвращает покупки студента от новых к старым.
	GetPurchases(ctx context.Context, id student.ID) ([]Purchase, error)
}
