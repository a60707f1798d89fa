package student

import "context"

// Repository определяет контракт для работы с хранилищем студентов.
// Интерфейс находится в domain слое (Dependency Inversion Principle),
// реализация - в infrastructure слое.
type Repository interface {
	// ─────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────

	// Create создаёт нового студента.
	// Возвращает ErrStudentAlreadyExists, если студент с таким ID уже существует.
	Create(ctx context.Context, s *Student) error

	// GetByID возвращает студента по идентификатору.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id ID) (*Student, error)

	// Update сохраняет изменения студента (статистика, баланс, визиты).
	Update(ctx context.Context, s *Student) error

	// Upsert создаёт студента или обновляет существующего одним запросом.
	// Используется при синхронизации фида, где существование неизвестно.
	Upsert(ctx context.Context, s *Student) error

	// ─────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────

	// GetAll возвращает студентов постранично.
	GetAll(ctx context.Context, opts ListOptions) ([]*Student, error)

	// Count возвращает количество студентов.
	Count(ctx context.Context) (int, error)

	// ─────────────────────────────────────────────────────────
	// Points Operations
	// ─────────────────────────────────────────────────────────

	// DebitPoints атомарно списывает бонусы в одной транзакции:
	// проверка баланса и списание не разделяются. Возвращает
	// ErrInsufficientBalance, если баланса не хватает.
	DebitPoints(ctx context.Context, id ID, amount Points) (*Student, error)
}

// ListOptions - параметры постраничной выборки.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 100, Offset: 0}
}

// WithLimit устанавливает размер страницы.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}
