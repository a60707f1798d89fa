package challenge

import (
	"context"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// Repository определяет контракт хранилища челленджей и выполнений.
type Repository interface {
	// ─────────────────────────────────────────────────────────
	// Catalog Operations
	// ─────────────────────────────────────────────────────────

	// GetByID возвращает челлендж по идентификатору.
	// Возвращает ErrChallengeNotFound, если челлендж не найден.
	GetByID(ctx context.Context, id string) (*Challenge, error)

	// GetAll возвращает весь каталог челленджей.
	GetAll(ctx context.Context) ([]*Challenge, error)

	// Upsert создаёт челлендж или обновляет существующий по ID.
	// Деактивированный челлендж при обновлении остаётся деактивированным
	// только если новые данные не говорят обратного.
	Upsert(ctx context.Context, c *Challenge) error

	// SetActive явно включает или выключает челлендж.
	SetActive(ctx context.Context, id string, active bool) error

	// ─────────────────────────────────────────────────────────
	// Eligibility
	// ─────────────────────────────────────────────────────────

	// ListEligible возвращает активные челленджи для профессии студента,
	// исключая уже выполненные им. Профессия ALL попадает в выборку
	// для любой профессии.
	ListEligible(ctx context.Context, id student.ID, p student.Profession) ([]*Challenge, error)

	// ─────────────────────────────────────────────────────────
	// Completions
	// ─────────────────────────────────────────────────────────

	// GetCompletions возвращает выполнения студента в порядке выполнения.
	GetCompletions(ctx context.Context, id student.ID) ([]Completion, error)

	// CommitAward в одной транзакции записывает выполнения и начисляет
	// суммарную награду на баланс студента. Транзакция сериализуется
	// по студенту: два конкурентных начисления одному студенту
	// выполняются по очереди. Возвращает обновлённого студента.
	//
	// Если какая-то пара (студент, челлендж) уже записана, она молча
	// пропускается и её награда не начисляется.
	CommitAward(ctx context.Context, id student.ID, completions []Completion) (*student.Student, error)
}
