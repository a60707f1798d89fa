package achievement

import (
	"math/rand"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Grant - факт присвоения достижения студенту.
type Grant struct {
	StudentID student.ID
	Type      Type
	Title     string

	// Description уже содержит подставленную профессию студента.
	Description string
	Picture     string
	EarnedAt    time.Time
}

// Engine вычисляет заработанные достижения по статистике студента.
// Движок не имеет состояния, кроме источника случайности для выбора
// отображаемого достижения.
type Engine struct {
	rng *rand.Rand
}

// NewEngine создаёт движок достижений.
// rng позволяет детерминировать выбор в тестах; nil означает
// стандартный источник со случайным зерном.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// Evaluate проверяет весь каталог против статистики студента и возвращает
// заработанные достижения в порядке каталога.
//
// Правила изолированы друг от друга: паника в одном check не прерывает
// проверку остальных. Отсутствие метрики означает "не заработано".
func (e *Engine) Evaluate(s *student.Student) []Grant {
	now := time.Now().UTC()
	var grants []Grant

	for _, a := range Catalog {
		if !e.safeCheck(a, s.Statistics) {
			continue
		}
		grants = append(grants, Grant{
			StudentID:   s.ID,
			Type:        a.Type,
			Title:       a.Title,
			Description: a.Describe(s.Profession),
			Picture:     a.Type.Picture(),
			EarnedAt:    now,
		})
	}

	return grants
}

// safeCheck выполняет check, превращая панику правила в "не заработано".
func (e *Engine) safeCheck(a Achievement, stats student.Statistics) (earned bool) {
	defer func() {
		if recover() != nil {
			earned = false
		}
	}()
	return a.Check(stats)
}

// PickDisplay выбирает одно достижение для показа на странице статистики.
// Приоритет у "продвинутых" достижений: вводные (chilly, determined, lurky)
// показываются только когда больше нечего показать. Когда не заработано
// ничего, синтезируется chilly - странице статистики всегда есть что
// показать.
func (e *Engine) PickDisplay(s *student.Student, grants []Grant) Grant {
	var advanced, basic []Grant
	for _, g := range grants {
		if IsBasic(g.Type) {
			basic = append(basic, g)
		} else {
			advanced = append(advanced, g)
		}
	}

	if len(advanced) > 0 {
		return advanced[e.rng.Intn(len(advanced))]
	}
	if len(basic) > 0 {
		return basic[e.rng.Intn(len(basic))]
	}
	return e.chillyGrant(s)
}

// chillyGrant собирает вводное достижение chilly из каталога. Оно не
// сохраняется в историю: это запасной вариант только для отображения.
func (e *Engine) chillyGrant(s *student.Student) Grant {
	a, _ := ByType(TypeChilly)
	return Grant{
		StudentID:   s.ID,
		Type:        a.Type,
		Title:       a.Title,
		Description: a.Describe(s.Profession),
		Picture:     a.Type.Picture(),
		EarnedAt:    time.Now().UTC(),
	}
}
