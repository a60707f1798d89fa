// Package achievement содержит каталог достижений и движок их вычисления.
// Достижение - это "стиль обучения", вычисляемый по статистике студента.
package achievement

import (
	"fmt"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Type - тип достижения. Значение хранится в БД и в имени картинки.
type Type string

const (
	TypeChilly      Type = "chilly"
	TypeDetermined  Type = "determined"
	TypeLurky       Type = "lurky"
	TypePopcorn     Type = "popcorn"
	TypeNightOwl    Type = "nightowl"
	TypeSunshine    Type = "sunshine"
	TypeNoRest      Type = "norest"
	TypeLightning   Type = "lightning"
	TypeFlawless    Type = "flawless"
	TypeLivewatcher Type = "livewatcher"
	TypeQuestionCat Type = "questioncat"
	TypeResponsive  Type = "responsive"
	TypeSheriff     Type = "sheriff"
	TypePersonal    Type = "personal"
	TypeLastminute  Type = "lastminute"
)

// IsValid проверяет, что тип присутствует в каталоге.
func (t Type) IsValid() bool {
	_, ok := catalogIndex[t]
	return ok
}

// Picture возвращает имя файла картинки достижения.
func (t Type) Picture() string {
	return fmt.Sprintf("%s.png", t)
}

// Achievement - описание достижения из каталога.
type Achievement struct {
	Type  Type
	Title string

	// check решает, заработано ли достижение по статистике.
	// Отсутствие нужной метрики означает "не заработано", а не ошибку:
	// правило просто не может сработать без данных.
	check func(stats student.Statistics) bool

	// describe строит описание, подставляя профессию в дательном падеже.
	describe func(prof string) string
}

// Check вычисляет, заработано ли достижение.
func (a Achievement) Check(stats student.Statistics) bool {
	return a.check(stats)
}

// Describe возвращает описание достижения для профессии студента.
func (a Achievement) Describe(p student.Profession) string {
	return a.describe(p.Dative())
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// basicTypes - вводные достижения. Показываются только когда студент
// не заработал ничего посложнее.
var basicTypes = map[Type]bool{
	TypeChilly:     true,
	TypeDetermined: true,
	TypeLurky:      true,
}

// IsBasic сообщает, относится ли тип к вводному набору.
func IsBasic(t Type) bool {
	return basicTypes[t]
}

// ratio возвращает отношение part/total либо false, если метрик нет
// или total равен нулю.
func ratio(stats student.Statistics, part, total string) (float64, bool) {
	p, ok := stats.GetInt(part)
	if !ok || p == 0 {
		return 0, false
	}
	t, ok := stats.GetInt(total)
	if !ok || t == 0 {
		return 0, false
	}
	return float64(p) / float64(t), true
}

// Catalog - полный набор достижений. Порядок стабилен: он определяет
// порядок вычисления и отображения.
var Catalog = []Achievement{
	{
		Type:  TypeChilly,
		Title: "На чиле",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			return ok && total < 5
		},
		describe: func(prof string) string {
			return "Наслаждаюсь новым статусом ученика, не сомневаюсь в своих силах, знаю что все легко изучу и сделаю"
		},
	},
	{
		Type:  TypeDetermined,
		Title: "Решительный",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total < 2 {
				return false
			}
			r, ok := ratio(stats, "homework_intime", "homework_total")
			return ok && r >= 0.5
		},
		describe: func(prof string) string {
			return "Смело учусь новой профессии и меняю свою жизнь"
		},
	},
	{
		Type:  TypeLurky,
		Title: "Затаившийся дракон",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total < 2 {
				return false
			}
			r, ok := ratio(stats, "homework_intime", "homework_total")
			return ok && r < 0.5
		},
		describe: func(prof string) string {
			return "Прохожу уроки тихо и размеренно, набираю силу перед большим прыжком"
		},
	},
	{
		Type:  TypePopcorn,
		Title: "С попкорном",
		check: func(stats student.Statistics) bool {
			total, okT := stats.GetInt("lives_total")
			visited, okV := stats.GetInt("lives_visited")
			inRecord, okR := stats.GetInt("lives_watched_in_record")
			if !okT || !okV || !okR || total == 0 || inRecord == 0 {
				return false
			}
			return total > 3 && visited == 0 && total-inRecord <= 5
		},
		describe: func(prof string) string {
			return "Люблю смотреть занятия, но в записи в удобное время."
		},
	},
	{
		Type:  TypeNightOwl,
		Title: "Неспящий",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total <= 3 {
				return false
			}
			r, ok := ratio(stats, "homework_night", "homework_total")
			return ok && r > 0.5
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Сдаю домашки по <strong>%s</strong> ночью, пока все спят!", prof)
		},
	},
	{
		Type:  TypeSunshine,
		Title: "Солнышко",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total <= 3 {
				return false
			}
			r, ok := ratio(stats, "homework_morning", "homework_total")
			return ok && r > 0.5
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Сдаю домашки по <strong>%s</strong> по утрам", prof)
		},
	},
	{
		Type:  TypeNoRest,
		Title: "Без выходных",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total <= 3 {
				return false
			}
			r, ok := ratio(stats, "homework_weekend", "homework_total")
			return ok && r > 0.5
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Сдаю домашки по <strong>%s</strong> даже на выходных, пока все отдыхают", prof)
		},
	},
	{
		Type:  TypeLightning,
		Title: "Молния",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total <= 3 {
				return false
			}
			r, ok := ratio(stats, "homework_firstday", "homework_total")
			return ok && r > 0.3
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Сдаю домашки по <strong>%s</strong> в первые 24 часа", prof)
		},
	},
	{
		Type:  TypeFlawless,
		Title: "Безупречный",
		check: func(stats student.Statistics) bool {
			total, okT := stats.GetInt("homework_total")
			intime, okI := stats.GetInt("homework_intime")
			if !okT || !okI || total == 0 || intime == 0 {
				return false
			}
			return total > 3 && total == intime
		},
		describe: func(prof string) string {
			return fmt.Sprintf("100%% моих домашек по <strong>%s</strong> сданы вовремя", prof)
		},
	},
	{
		Type:  TypeLivewatcher,
		Title: "Внимательный зритель",
		check: func(stats student.Statistics) bool {
			visited, ok := stats.GetInt("lives_visited")
			if !ok || visited <= 3 {
				return false
			}
			r, ok := ratio(stats, "lives_visited", "lives_total")
			return ok && r > 0.5
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Активно участвую в онлайн-занятиях по <strong>%s</strong>", prof)
		},
	},
	{
		Type:  TypeQuestionCat,
		Title: "Кот вопроскин",
		check: func(stats student.Statistics) bool {
			questions, ok := stats.GetInt("questions_number")
			return ok && questions > 7
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Я задаю вопросы, как только что-то не понятно по <strong>%s</strong>", prof)
		},
	},
	{
		Type:  TypeResponsive,
		Title: "Отзывчивый",
		check: func(stats student.Statistics) bool {
			help, ok := stats.GetInt("comments_help")
			return ok && help > 3
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Я помогаю другим ученикам разбираться с их вопросами по <strong>%s</strong>", prof)
		},
	},
	{
		Type:  TypeSheriff,
		Title: "Новый шериф",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total <= 3 {
				return false
			}
			r, ok := ratio(stats, "rates_created", "homework_total")
			return ok && r > 0.5
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Проставляю оценки наставникам, материалам и занятиям по <strong>%s</strong>", prof)
		},
	},
	{
		Type:  TypePersonal,
		Title: "Персональный",
		check: func(stats student.Statistics) bool {
			spent, ok := stats.GetInt("ik_spent")
			return ok && spent > 5
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Я часто зависаю на личных встречах с наставниками по <strong>%s</strong>", prof)
		},
	},
	{
		// homework_last_6 - необязательная метрика: старые снимки статистики
		// её не содержат, тогда достижение просто не срабатывает.
		Type:  TypeLastminute,
		Title: "Как в последний раз",
		check: func(stats student.Statistics) bool {
			total, ok := stats.GetInt("homework_total")
			if !ok || total <= 3 {
				return false
			}
			r, ok := ratio(stats, "homework_last_6", "homework_total")
			return ok && r >= 0.3
		},
		describe: func(prof string) string {
			return fmt.Sprintf("Откладываю все на последний день, но все же успеваю к дедлайну по <strong>%s</strong>", prof)
		},
	},
}

var catalogIndex = buildIndex()

func buildIndex() map[Type]Achievement {
	idx := make(map[Type]Achievement, len(Catalog))
	for _, a := range Catalog {
		idx[a.Type] = a
	}
	return idx
}

// ByType возвращает достижение из каталога по типу.
func ByType(t Type) (Achievement, bool) {
	a, ok := catalogIndex[t]
	return a, ok
}
