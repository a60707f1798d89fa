package achievement

import (
	"context"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// Repository определяет контракт хранилища присвоенных достижений.
type Repository interface {
	// SaveGrants сохраняет достижения студента. Повторное присвоение
	// того же типа обновляет время, а не создаёт дубликат.
	SaveGrants(ctx context.Context, grants []Grant) error

	// GetByStudent возвращает достижения студента в порядке присвоения.
	GetByStudent(ctx context.Context, id student.ID) ([]Grant, error)

	// DeleteByStudent удаляет все достижения студента.
	DeleteByStudent(ctx context.Context, id student.ID) error
}
