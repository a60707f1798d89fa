package command

import (
	"context"
	"io"
	"sort"

	"github.com/skypro-hub/bonus-hub/internal/domain/achievement"
	"github.com/skypro-hub/bonus-hub/internal/domain/challenge"
	"github.com/skypro-hub/bonus-hub/internal/domain/product"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes. Достаточно семантики контрактов репозиториев:
// идемпотентность CommitAward, атомарность CommitPurchase, ошибки доменного
// слоя вместо SQL-ошибок.
// ─────────────────────────────────────────────────────────────────────────────

func testLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	return logger.New(opts)
}

type fakeStudentRepo struct {
	students map[student.ID]*student.Student
}

func newFakeStudentRepo(students ...*student.Student) *fakeStudentRepo {
	r := &fakeStudentRepo{students: make(map[student.ID]*student.Student)}
	for _, s := range students {
		r.students[s.ID] = s.Clone()
	}
	return r
}

func (r *fakeStudentRepo) Create(ctx context.Context, s *student.Student) error {
	if _, ok := r.students[s.ID]; ok {
		return student.ErrStudentAlreadyExists
	}
	r.students[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) GetByID(ctx context.Context, id student.ID) (*student.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return s.Clone(), nil
}

func (r *fakeStudentRepo) Update(ctx context.Context, s *student.Student) error {
	if _, ok := r.students[s.ID]; !ok {
		return student.ErrStudentNotFound
	}
	r.students[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) Upsert(ctx context.Context, s *student.Student) error {
	r.students[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	ids := make([]student.ID, 0, len(r.students))
	for id := range r.students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*student.Student
	for i, id := range ids {
		if i < opts.Offset {
			continue
		}
		if len(out) == opts.Limit {
			break
		}
		out = append(out, r.students[id].Clone())
	}
	return out, nil
}

func (r *fakeStudentRepo) Count(ctx context.Context) (int, error) {
	return len(r.students), nil
}

func (r *fakeStudentRepo) DebitPoints(ctx context.Context, id student.ID, amount student.Points) (*student.Student, error) {
	if amount < 0 {
		return nil, student.ErrNegativeAmount
	}
	s, ok := r.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	if s.Points < amount {
		return nil, student.ErrInsufficientBalance
	}
	s.Points -= amount
	return s.Clone(), nil
}

type fakeChallengeRepo struct {
	studentRepo *fakeStudentRepo
	challenges  map[string]*challenge.Challenge
	completions map[student.ID]map[string]challenge.Completion
	upserts     int

	// failCommit заставляет CommitAward падать до записи: имитация
	// отката транзакции.
	failCommit error
}

func newFakeChallengeRepo(studentRepo *fakeStudentRepo, cs ...*challenge.Challenge) *fakeChallengeRepo {
	r := &fakeChallengeRepo{
		studentRepo: studentRepo,
		challenges:  make(map[string]*challenge.Challenge),
		completions: make(map[student.ID]map[string]challenge.Completion),
	}
	for _, c := range cs {
		r.challenges[c.ID] = c
	}
	return r
}

func (r *fakeChallengeRepo) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	c, ok := r.challenges[id]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	return c, nil
}

func (r *fakeChallengeRepo) GetAll(ctx context.Context) ([]*challenge.Challenge, error) {
	return r.sorted(func(*challenge.Challenge) bool { return true }), nil
}

func (r *fakeChallengeRepo) Upsert(ctx context.Context, c *challenge.Challenge) error {
	r.challenges[c.ID] = c
	r.upserts++
	return nil
}

func (r *fakeChallengeRepo) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := r.challenges[id]
	if !ok {
		return challenge.ErrChallengeNotFound
	}
	c.IsActive = active
	return nil
}

func (r *fakeChallengeRepo) ListEligible(ctx context.Context, id student.ID, p student.Profession) ([]*challenge.Challenge, error) {
	done := r.completions[id]
	return r.sorted(func(c *challenge.Challenge) bool {
		if !c.IsActive || !c.AppliesTo(p) {
			return false
		}
		_, completed := done[c.ID]
		return !completed
	}), nil
}

func (r *fakeChallengeRepo) GetCompletions(ctx context.Context, id student.ID) ([]challenge.Completion, error) {
	var out []challenge.Completion
	for _, c := range r.completions[id] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChallengeID < out[j].ChallengeID })
	return out, nil
}

func (r *fakeChallengeRepo) CommitAward(ctx context.Context, id student.ID, completions []challenge.Completion) (*student.Student, error) {
	if r.failCommit != nil {
		return nil, r.failCommit
	}

	s, ok := r.studentRepo.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}

	done := r.completions[id]
	if done == nil {
		done = make(map[string]challenge.Completion)
		r.completions[id] = done
	}

	var total student.Points
	for _, c := range completions {
		// Повторная пара молча пропускается и не начисляется
		if _, exists := done[c.ChallengeID]; exists {
			continue
		}
		done[c.ChallengeID] = c
		total += c.Value
	}

	s.Points += total
	return s.Clone(), nil
}

func (r *fakeChallengeRepo) sorted(keep func(*challenge.Challenge) bool) []*challenge.Challenge {
	var out []*challenge.Challenge
	for _, c := range r.challenges {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeProductRepo struct {
	studentRepo *fakeStudentRepo
	products    map[string]*product.Product
	purchases   []product.Purchase
}

func newFakeProductRepo(studentRepo *fakeStudentRepo, ps ...*product.Product) *fakeProductRepo {
	r := &fakeProductRepo{
		studentRepo: studentRepo,
		products:    make(map[string]*product.Product),
	}
	for _, p := range ps {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) GetActive(ctx context.Context) ([]*product.Product, error) {
	var out []*product.Product
	for _, p := range r.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func (r *fakeProductRepo) Upsert(ctx context.Context, p *product.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) CommitPurchase(ctx context.Context, purchase product.Purchase, price student.Points) (*student.Student, error) {
	s, err := r.studentRepo.DebitPoints(ctx, purchase.StudentID, price)
	if err != nil {
		return nil, err
	}
	r.purchases = append(r.purchases, purchase)
	return s, nil
}

func (r *fakeProductRepo) GetPurchases(ctx context.Context, id student.ID) ([]product.Purchase, error) {
	var out []product.Purchase
	for _, p := range r.purchases {
		if p.StudentID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAchievementRepo struct {
	grants map[student.ID]map[achievement.Type]achievement.Grant
	saves  int
}

func newFakeAchievementRepo() *fakeAchievementRepo {
	return &fakeAchievementRepo{grants: make(map[student.ID]map[achievement.Type]achievement.Grant)}
}

func (r *fakeAchievementRepo) SaveGrants(ctx context.Context, grants []achievement.Grant) error {
	r.saves++
	for _, g := range grants {
		byType := r.grants[g.StudentID]
		if byType == nil {
			byType = make(map[achievement.Type]achievement.Grant)
			r.grants[g.StudentID] = byType
		}
		byType[g.Type] = g
	}
	return nil
}

func (r *fakeAchievementRepo) GetByStudent(ctx context.Context, id student.ID) ([]achievement.Grant, error) {
	var out []achievement.Grant
	for _, g := range r.grants[id] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (r *fakeAchievementRepo) DeleteByStudent(ctx context.Context, id student.ID) error {
	delete(r.grants, id)
	return nil
}

type fakeExporter struct {
	exported []string
}

func (e *fakeExporter) ExportPurchase(studentID student.ID, productID, productTitle string, price student.Points) {
	e.exported = append(e.exported, productID)
}
