// Package challenge содержит доменную модель челленджей - заданий с правилом
// выполнения и наградой в бонусах.
package challenge

import (
	"fmt"
	"strings"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/shared"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrChallengeNotFound - челлендж не найден.
	ErrChallengeNotFound = shared.NewDomainError("challenge", "Find", shared.ErrNotFound, "challenge not found")

	// ErrEmptyID - пустой идентификатор челленджа.
	ErrEmptyID = shared.NewDomainError("challenge", "New", shared.ErrEmptyValue, "challenge id must not be empty")

	// ErrEmptyTitle - пустой заголовок челленджа.
	ErrEmptyTitle = shared.NewDomainError("challenge", "New", shared.ErrEmptyValue, "challenge title must not be empty")

	// ErrEmptyRule - пустое правило выполнения.
	ErrEmptyRule = shared.NewDomainError("challenge", "New", shared.ErrEmptyValue, "challenge rule must not be empty")

	// ErrNonPositiveValue - награда должна быть положительной.
	ErrNonPositiveValue = shared.NewDomainError("challenge", "New", shared.ErrInvalidInput, "challenge value must be positive")

	// ErrCompletionExists - студент уже выполнил этот челлендж.
	ErrCompletionExists = shared.NewDomainError("challenge", "Complete", shared.ErrAlreadyExists, "challenge already completed by student")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// Challenge - задание из управляемого редакцией каталога.
// Каталог ведётся во внешней таблице и синхронизируется в БД.
type Challenge struct {
	// ID - стабильный строковый идентификатор из таблицы каталога.
	ID string

	// Title - заголовок задания.
	Title string

	// Profession - область видимости: конкретная профессия или ProfessionAll.
	Profession student.Profession

	// Rule - выражение над метриками статистики. Истинность выражения
	// означает выполнение челленджа.
	Rule string

	// Value - награда в бонусах.
	Value student.Points

	// IsActive - активные челленджи участвуют в начислении.
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт челлендж с валидацией полей.
func New(id, title string, prof student.Profession, rule string, value int) (*Challenge, error) {
	c := &Challenge{
		ID:         strings.TrimSpace(id),
		Title:      strings.TrimSpace(title),
		Profession: prof,
		Rule:       strings.TrimSpace(rule),
		Value:      student.Points(value),
		IsActive:   true,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

// Validate проверяет инварианты челленджа.
func (c *Challenge) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if c.Title == "" {
		return ErrEmptyTitle
	}
	if c.Rule == "" {
		return ErrEmptyRule
	}
	if c.Value <= 0 {
		return ErrNonPositiveValue
	}
	if !c.Profession.IsValid() {
		return fmt.Errorf("invalid profession %q", c.Profession)
	}
	return nil
}

// AppliesTo сообщает, доступен ли челлендж студенту данной профессии.
func (c *Challenge) AppliesTo(p student.Profession) bool {
	return c.Profession == student.ProfessionAll || c.Profession == p
}

// Matches сообщает, совпадают ли бизнес-поля с другим челленджем.
// Служебные метки времени не сравниваются.
func (c *Challenge) Matches(other *Challenge) bool {
	return c.ID == other.ID &&
		c.Title == other.Title &&
		c.Profession == other.Profession &&
		c.Rule == other.Rule &&
		c.Value == other.Value &&
		c.IsActive == other.IsActive
}

// Deactivate выводит челлендж из начисления, сохраняя историю выполнений.
func (c *Challenge) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
}

// Activate возвращает челлендж в начисление.
func (c *Challenge) Activate() {
	c.IsActive = true
	c.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление для логирования.
func (c *Challenge) String() string {
	return fmt.Sprintf(
		"Challenge{ID: %s, Title: %s, Profession: %s, Value: %d, Active: %v}",
		c.ID, c.Title, c.Profession, c.Value, c.IsActive,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

// Completion - факт выполнения челленджа студентом.
// Пара (студент, челлендж) уникальна: выполнить дважды нельзя.
type Completion struct {
	StudentID   student.ID
	ChallengeID string

	// Value - награда на момент выполнения. Фиксируется в записи,
	// чтобы последующие правки каталога не меняли историю.
	Value student.Points

	CompletedAt time.Time
}

// NewCompletion создаёт запись о выполнении.
func NewCompletion(s *student.Student, c *Challenge) Completion {
	return Completion{
		StudentID:   s.ID,
		ChallengeID: c.ID,
		Value:       c.Value,
		CompletedAt: time.Now().UTC(),
	}
}
