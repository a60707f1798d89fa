// Package student содержит доменную модель студента бонусной программы.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет уникальный идентификатор студента на платформе.
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// Points представляет бонусный баланс студента.
type Points int

// IsValid проверяет, что баланс неотрицательный.
func (p Points) IsValid() bool {
	return p >= 0
}

// Profession представляет профессию, которую изучает студент.
type Profession string

const (
	ProfessionPD Profession = "PD" // Python-разработчик
	ProfessionDA Profession = "DA" // Аналитик данных
	ProfessionGD Profession = "GD" // Графический дизайнер
	ProfessionWD Profession = "WD" // Веб-разработчик
	ProfessionQA Profession = "QA" // Инженер по тестированию
	ProfessionJD Profession = "JD" // Java-разработчик
	ProfessionIM Profession = "IM" // Интернет-маркетолог
	ProfessionPM Profession = "PM" // Менеджер проектов
	ProfessionNA Profession = "NA" // Неизвестная профессия

	// ProfessionAll - специальная область видимости "для всех профессий".
	// Используется только в челленджах, не присваивается студентам.
	ProfessionAll Profession = "ALL"
)

// ParseProfession приводит строку к известной профессии.
// Неизвестные значения превращаются в ProfessionNA, а не в ошибку:
// фид статистики исторически содержит опечатки в этом поле.
func ParseProfession(s string) Profession {
	switch Profession(strings.ToUpper(strings.TrimSpace(s))) {
	case ProfessionPD, ProfessionDA, ProfessionGD, ProfessionWD,
		ProfessionQA, ProfessionJD, ProfessionIM, ProfessionPM:
		return Profession(strings.ToUpper(strings.TrimSpace(s)))
	case ProfessionAll:
		return ProfessionAll
	default:
		return ProfessionNA
	}
}

// IsValid проверяет, что профессия известна.
func (p Profession) IsValid() bool {
	switch p {
	case ProfessionPD, ProfessionDA, ProfessionGD, ProfessionWD,
		ProfessionQA, ProfessionJD, ProfessionIM, ProfessionPM,
		ProfessionNA, ProfessionAll:
		return true
	default:
		return false
	}
}

// Title возвращает название профессии в именительном падеже.
func (p Profession) Title() string {
	titles := map[Profession]string{
		ProfessionPD:  "Python-разработчик",
		ProfessionDA:  "Аналитик данных",
		ProfessionGD:  "Графический дизайнер",
		ProfessionWD:  "Веб-разработчик",
		ProfessionQA:  "Инженер по тестированию",
		ProfessionJD:  "Java-разработчик",
		ProfessionIM:  "Интернет-маркетолог",
		ProfessionPM:  "Менеджер проектов",
		ProfessionNA:  "Неизвестная профессия",
		ProfessionAll: "Все профессии",
	}
	if t, ok := titles[p]; ok {
		return t
	}
	return string(p)
}

// Dative возвращает название профессии в дательном падеже.
// Используется в шаблонах описаний достижений ("Сдаю домашки по ...").
func (p Profession) Dative() string {
	dative := map[Profession]string{
		ProfessionPD: "Python разработке",
		ProfessionDA: "Аналитике данных",
		ProfessionGD: "Графическому дизайну",
		ProfessionWD: "Web-разработке",
		ProfessionQA: "Тестированию",
		ProfessionJD: "Java разработке",
		ProfessionIM: "Интернет-маркетингу",
		ProfessionPM: "Менеджменту проектов",
		ProfessionNA: "...",
	}
	if d, ok := dative[p]; ok {
		return d
	}
	return "..."
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// Statistics - статистика обучения студента: метрика -> число или строка.
// Заполняется провайдером статистики и служит пространством имён
// для правил достижений и челленджей.
type Statistics map[string]any

// requiredStatKeys - обязательный набор метрик. Отсутствие любого из ключей
// при создании студента является ошибкой валидации, а не молчаливым нулём.
var requiredStatKeys = []string{
	"program",
	"started_at",
	"lessons_in_program",
	"lessons_completed",
	"homework_total",
	"homework_intime",
	"homework_firstday",
	"homework_night",
	"homework_morning",
	"homework_weekend",
	"courseworks_in_program",
	"courseworks_completed",
	"questions_number",
	"comments_help",
	"lives_total",
	"lives_visited",
	"lives_watched_in_record",
	"ik_spent",
	"rates_created",
}

// RequiredStatKeys возвращает копию списка обязательных метрик.
func RequiredStatKeys() []string {
	keys := make([]string, len(requiredStatKeys))
	copy(keys, requiredStatKeys)
	return keys
}

// Validate проверяет наличие всех обязательных метрик.
func (s Statistics) Validate() error {
	var missing []string
	for _, key := range requiredStatKeys {
		if _, ok := s[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrIncompleteStatistics, strings.Join(missing, ", "))
	}
	return nil
}

// GetInt возвращает целочисленную метрику.
// Числа из JSON приходят как float64, из парсера фида - как int.
func (s Statistics) GetInt(key string) (int, bool) {
	switch v := s[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetString возвращает строковую метрику.
func (s Statistics) GetString(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Clone создаёт независимую копию статистики.
func (s Statistics) Clone() Statistics {
	if s == nil {
		return nil
	}
	clone := make(Statistics, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Ошибки домена строятся через shared.DomainError: errors.Is работает и по
// конкретной ошибке, и по базовому виду (shared.ErrNotFound и т.д.).
var (
	// ErrInvalidStudentID - невалидный идентификатор студента.
	ErrInvalidStudentID = shared.NewDomainError("student", "New", shared.ErrInvalidID, "invalid student id: must be positive")

	// ErrIncompleteStatistics - в статистике не хватает обязательных метрик.
	ErrIncompleteStatistics = shared.NewDomainError("student", "New", shared.ErrMissingKeys, "incomplete statistics")

	// ErrNegativePoints - попытка установить отрицательный баланс.
	ErrNegativePoints = shared.NewDomainError("student", "Points", shared.ErrNegativeValue, "points balance cannot be negative")

	// ErrNegativeAmount - сумма операции должна быть положительной.
	ErrNegativeAmount = shared.NewDomainError("student", "Points", shared.ErrInvalidInput, "amount must be positive")

	// ErrInsufficientBalance - списание превышает текущий баланс.
	ErrInsufficientBalance = shared.NewDomainError("student", "Debit", shared.ErrInsufficientPoints, "insufficient points balance")

	// ErrStudentNotFound - студент не найден.
	ErrStudentNotFound = shared.NewDomainError("student", "Find", shared.ErrNotFound, "student not found")

	// ErrStudentAlreadyExists - студент уже существует.
	ErrStudentAlreadyExists = shared.NewDomainError("student", "Create", shared.ErrAlreadyExists, "student already exists")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - центральная сущность бонусной программы.
type Student struct {
	// ID - идентификатор студента на платформе обучения.
	ID ID

	// FirstName, LastName - имя студента из фида статистики.
	FirstName string
	LastName  string

	// Profession - профессия, которую изучает студент.
	Profession Profession

	// StartedAt - дата начала обучения.
	StartedAt time.Time

	// Statistics - последняя известная статистика обучения.
	Statistics Statistics

	// Points - бонусный баланс. Увеличивается только выполнением челленджей,
	// уменьшается только подтверждёнными покупками. Никогда не отрицательный.
	Points Points

	// LastLogin - время последнего визита страницы статистики.
	LastLogin time.Time

	// BonusesLastVisited - время последнего визита страницы бонусов.
	BonusesLastVisited time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID         ID
	FirstName  string
	LastName   string
	Profession Profession
	StartedAt  time.Time
	Statistics Statistics
}

// NewStudent создаёт нового студента с валидацией всех полей.
// Неполная статистика - ошибка валидации, а не значение по умолчанию.
func NewStudent(params NewStudentParams) (*Student, error) {
	if !params.ID.IsValid() {
		return nil, ErrInvalidStudentID
	}

	if params.Profession == "" || params.Profession == ProfessionAll {
		params.Profession = ProfessionNA
	}
	if !params.Profession.IsValid() {
		return nil, fmt.Errorf("invalid profession %q", params.Profession)
	}

	if err := params.Statistics.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &Student{
		ID:         params.ID,
		FirstName:  strings.TrimSpace(params.FirstName),
		LastName:   strings.TrimSpace(params.LastName),
		Profession: params.Profession,
		StartedAt:  params.StartedAt,
		Statistics: params.Statistics.Clone(),
		Points:     0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// FullName возвращает полное имя студента.
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// DaysSinceStart возвращает количество дней с начала обучения.
func (s *Student) DaysSinceStart() int {
	return int(time.Since(s.StartedAt).Hours() / 24)
}

// RefreshStatistics заменяет статистику студента новым снимком.
// Пустой снимок игнорируется: провайдер вернул "нет свежих данных".
func (s *Student) RefreshStatistics(stats Statistics) bool {
	if len(stats) == 0 {
		return false
	}
	s.Statistics = stats.Clone()
	s.UpdatedAt = time.Now().UTC()
	return true
}

// CreditPoints начисляет бонусы за выполненные челленджи.
func (s *Student) CreditPoints(amount Points) error {
	if amount <= 0 {
		return ErrNegativeAmount
	}
	s.Points += amount
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// DebitPoints списывает бонусы за покупку.
// Инвариант: баланс никогда не уходит в минус - списание отклоняется.
func (s *Student) DebitPoints(amount Points) error {
	if amount <= 0 {
		return ErrNegativeAmount
	}
	if s.Points-amount < 0 {
		return ErrInsufficientBalance
	}
	s.Points -= amount
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkBonusesVisited отмечает визит страницы бонусов.
func (s *Student) MarkBonusesVisited() {
	s.BonusesLastVisited = time.Now().UTC()
	s.UpdatedAt = s.BonusesLastVisited
}

// String возвращает строковое представление студента для логирования.
func (s *Student) String() string {
	return fmt.Sprintf(
		"Student{ID: %d, Name: %s, Profession: %s, Points: %d}",
		s.ID, s.FullName(), s.Profession, s.Points,
	)
}

// Clone создаёт глубокую копию студента.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Statistics = s.Statistics.Clone()
	return &clone
}
