package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/internal/application/command"
	"github.com/skypro-hub/bonus-hub/internal/domain/achievement"
	"github.com/skypro-hub/bonus-hub/internal/domain/challenge"
	"github.com/skypro-hub/bonus-hub/internal/domain/product"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/feed"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

func testLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	return logger.New(opts)
}

type memStudentRepo struct {
	students map[student.ID]*student.Student
}

func newMemStudentRepo(students ...*student.Student) *memStudentRepo {
	r := &memStudentRepo{students: make(map[student.ID]*student.Student)}
	for _, s := range students {
		r.students[s.ID] = s.Clone()
	}
	return r
}

func (r *memStudentRepo) Create(ctx context.Context, s *student.Student) error {
	if _, ok := r.students[s.ID]; ok {
		return student.ErrStudentAlreadyExists
	}
	r.students[s.ID] = s.Clone()
	return nil
}

func (r *memStudentRepo) GetByID(ctx context.Context, id student.ID) (*student.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return s.Clone(), nil
}

func (r *memStudentRepo) Update(ctx context.Context, s *student.Student) error {
	if _, ok := r.students[s.ID]; !ok {
		return student.ErrStudentNotFound
	}
	r.students[s.ID] = s.Clone()
	return nil
}

func (r *memStudentRepo) Upsert(ctx context.Context, s *student.Student) error {
	r.students[s.ID] = s.Clone()
	return nil
}

func (r *memStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
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

func (r *memStudentRepo) Count(ctx context.Context) (int, error) {
	return len(r.students), nil
}

func (r *memStudentRepo) DebitPoints(ctx context.Context, id student.ID, amount student.Points) (*student.Student, error) {
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

type memChallengeRepo struct {
	studentRepo *memStudentRepo
	challenges  map[string]*challenge.Challenge
	completions map[student.ID]map[string]challenge.Completion
}

func newMemChallengeRepo(studentRepo *memStudentRepo) *memChallengeRepo {
	return &memChallengeRepo{
		studentRepo: studentRepo,
		challenges:  make(map[string]*challenge.Challenge),
		completions: make(map[student.ID]map[string]challenge.Completion),
	}
}

func (r *memChallengeRepo) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	c, ok := r.challenges[id]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	return c, nil
}

func (r *memChallengeRepo) GetAll(ctx context.Context) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	for _, c := range r.challenges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memChallengeRepo) Upsert(ctx context.Context, c *challenge.Challenge) error {
	r.challenges[c.ID] = c
	return nil
}

func (r *memChallengeRepo) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := r.challenges[id]
	if !ok {
		return challenge.ErrChallengeNotFound
	}
	c.IsActive = active
	return nil
}

func (r *memChallengeRepo) ListEligible(ctx context.Context, id student.ID, p student.Profession) ([]*challenge.Challenge, error) {
	done := r.completions[id]
	var out []*challenge.Challenge
	for _, c := range r.challenges {
		if !c.IsActive || !c.AppliesTo(p) {
			continue
		}
		if _, completed := done[c.ID]; completed {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memChallengeRepo) GetCompletions(ctx context.Context, id student.ID) ([]challenge.Completion, error) {
	var out []challenge.Completion
	for _, c := range r.completions[id] {
		out = append(out, c)
	}
	return out, nil
}

func (r *memChallengeRepo) CommitAward(ctx context.Context, id student.ID, completions []challenge.Completion) (*student.Student, error) {
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
		if _, exists := done[c.ChallengeID]; exists {
			continue
		}
		done[c.ChallengeID] = c
		total += c.Value
	}
	s.Points += total
	return s.Clone(), nil
}

type memProductRepo struct {
	products map[string]*product.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[string]*product.Product)}
}

func (r *memProductRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (r *memProductRepo) GetActive(ctx context.Context) ([]*product.Product, error) {
	var out []*product.Product
	for _, p := range r.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) Upsert(ctx context.Context, p *product.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *memProductRepo) CommitPurchase(ctx context.Context, purchase product.Purchase, price student.Points) (*student.Student, error) {
	return nil, errors.New("not used in sync")
}

func (r *memProductRepo) GetPurchases(ctx context.Context, id student.ID) ([]product.Purchase, error) {
	return nil, nil
}

type memAchievementRepo struct {
	grants map[student.ID]map[achievement.Type]achievement.Grant
}

func newMemAchievementRepo() *memAchievementRepo {
	return &memAchievementRepo{grants: make(map[student.ID]map[achievement.Type]achievement.Grant)}
}

func (r *memAchievementRepo) SaveGrants(ctx context.Context, grants []achievement.Grant) error {
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

func (r *memAchievementRepo) GetByStudent(ctx context.Context, id student.ID) ([]achievement.Grant, error) {
	var out []achievement.Grant
	for _, g := range r.grants[id] {
		out = append(out, g)
	}
	return out, nil
}

func (r *memAchievementRepo) DeleteByStudent(ctx context.Context, id student.ID) error {
	delete(r.grants, id)
	return nil
}

// fakeFeed serves sheets by name.
type fakeFeed struct {
	sheets map[string][][]string
	errs   map[string]error
}

func (f *fakeFeed) GetSheetValues(ctx context.Context, sheetName string) ([][]string, error) {
	if err := f.errs[sheetName]; err != nil {
		return nil, err
	}
	return f.sheets[sheetName], nil
}

// fakeStatsProvider serves per-student statistics, failing on demand.
type fakeStatsProvider struct {
	stats map[student.ID]student.Statistics
	fail  map[student.ID]error
}

func (p *fakeStatsProvider) GetStats(ctx context.Context, id student.ID) (student.Statistics, error) {
	if err := p.fail[id]; err != nil {
		return nil, err
	}
	s, ok := p.stats[id]
	if !ok {
		return nil, errors.New("no stats")
	}
	return s, nil
}

// fakeRecorder captures snapshot and last-run bookkeeping.
type fakeRecorder struct {
	snapshots map[student.ID]student.Statistics
	lastSync  time.Time
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{snapshots: make(map[student.ID]student.Statistics)}
}

func (r *fakeRecorder) Set(ctx context.Context, id student.ID, stats student.Statistics, ttl time.Duration) error {
	r.snapshots[id] = stats
	return nil
}

func (r *fakeRecorder) SetLastSyncAt(ctx context.Context, at time.Time) error {
	r.lastSync = at
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

// statsSheet renders a statistics table: a header with every required
// metric plus name columns, then one row per student.
func statsSheet(students map[student.ID]map[string]string) [][]string {
	header := append([]string{"id", "first_name", "last_name"}, student.RequiredStatKeys()...)

	rows := [][]string{header}
	ids := make([]student.ID, 0, len(students))
	for id := range students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		overrides := students[id]
		row := make([]string, 0, len(header))
		for _, key := range header {
			switch {
			case key == "id":
				row = append(row, strconv.FormatInt(int64(id), 10))
			case overrides[key] != "":
				row = append(row, overrides[key])
			case key == "program":
				row = append(row, "PD")
			case key == "started_at":
				row = append(row, "01.09.2025")
			case key == "first_name" || key == "last_name":
				row = append(row, "X")
			default:
				row = append(row, "0")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

type syncFixture struct {
	job          *SyncBonusesJob
	students     *memStudentRepo
	challenges   *memChallengeRepo
	products     *memProductRepo
	achievements *memAchievementRepo
	recorder     *fakeRecorder
	feedSource   *fakeFeed
	provider     *fakeStatsProvider
}

func newSyncFixture(feedSource *fakeFeed, provider *fakeStatsProvider, existing ...*student.Student) *syncFixture {
	log := testLogger()

	students := newMemStudentRepo(existing...)
	challenges := newMemChallengeRepo(students)
	products := newMemProductRepo()
	achievements := newMemAchievementRepo()
	recorder := newFakeRecorder()

	cfg := DefaultSyncBonusesConfig()
	cfg.BatchSize = 2
	cfg.BatchPause = 0

	job := NewSyncBonusesJob(
		students,
		products,
		feedSource,
		provider,
		feed.NewCache(),
		command.NewReconcileChallengesHandler(challenges, log),
		command.NewAwardChallengesHandler(students, challenges, log),
		command.NewRefreshAchievementsHandler(students, achievements, achievement.NewEngine(nil), log),
		recorder,
		log,
		cfg,
	)

	return &syncFixture{
		job:          job,
		students:     students,
		challenges:   challenges,
		products:     products,
		achievements: achievements,
		recorder:     recorder,
		feedSource:   feedSource,
		provider:     provider,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestSyncBonusesJob_Run(t *testing.T) {
	ctx := context.Background()

	feedSource := &fakeFeed{sheets: map[string][][]string{
		"challenges": {
			{"id", "title", "profession", "eval", "value", "is_active"},
			{"ten_hw", "Десять домашек", "ALL", "homework_total >= 10", "100", "true"},
			{"da_only", "Для аналитиков", "DA", "homework_total >= 1", "50", "true"},
		},
		"products": {
			{"id", "title", "description", "value", "is_active"},
			{"sticker_pack", "Стикерпак", "", "200", "true"},
		},
		"stats": statsSheet(map[student.ID]map[string]string{
			101: {"homework_total": "12"},
			102: {"homework_total": "2"},
		}),
	}}

	provider := &fakeStatsProvider{stats: map[student.ID]student.Statistics{
		101: {"homework_total": 12},
		102: {"homework_total": 2},
	}}

	f := newSyncFixture(feedSource, provider)

	require.NoError(t, f.job.Run(ctx))

	stats := f.job.LastSyncStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SnapshotSize)
	assert.Equal(t, 2, stats.StudentsEnrolled)
	assert.Equal(t, 2, stats.ChallengesUpserted)
	assert.Equal(t, 1, stats.ProductsUpserted)
	assert.Equal(t, 2, stats.StudentsTotal)
	assert.Equal(t, 2, stats.StudentsRefreshed)
	assert.Zero(t, stats.StudentsFailed)
	assert.Equal(t, 1, stats.ChallengesAwarded)
	assert.Equal(t, 100, stats.PointsCredited)

	// Enrollment built students from the statistics table
	s101, err := f.students.GetByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, student.ProfessionPD, s101.Profession)
	assert.Equal(t, 2025, s101.StartedAt.Year())

	// Challenge for 12 homeworks awarded to 101, not to 102
	assert.Equal(t, student.Points(100), s101.Points)
	s102, err := f.students.GetByID(ctx, 102)
	require.NoError(t, err)
	assert.Zero(t, s102.Points)

	// Fresh statistics replaced the enrollment snapshot
	total, _ := s101.Statistics.GetInt("homework_total")
	assert.Equal(t, 12, total)

	// Achievements evaluated on the refreshed data
	grants, err := f.achievements.GetByStudent(ctx, 102)
	require.NoError(t, err)
	assert.NotEmpty(t, grants)

	// Bookkeeping recorded
	assert.False(t, f.recorder.lastSync.IsZero())
	assert.Len(t, f.recorder.snapshots, 2)

	// Product catalog reconciled
	_, err = f.products.GetByID(ctx, "sticker_pack")
	assert.NoError(t, err)
}

func TestSyncBonusesJob_Run_Idempotent(t *testing.T) {
	ctx := context.Background()

	feedSource := &fakeFeed{sheets: map[string][][]string{
		"challenges": {
			{"id", "title", "profession", "eval", "value", "is_active"},
			{"ten_hw", "t", "ALL", "homework_total >= 10", "100", "true"},
		},
		"products": {{"id", "title", "description", "value", "is_active"}},
		"stats": statsSheet(map[student.ID]map[string]string{
			101: {"homework_total": "12"},
		}),
	}}
	provider := &fakeStatsProvider{stats: map[student.ID]student.Statistics{
		101: {"homework_total": 12},
	}}

	f := newSyncFixture(feedSource, provider)

	require.NoError(t, f.job.Run(ctx))
	require.NoError(t, f.job.Run(ctx))

	// Второй прогон ничего не доначисляет
	s, err := f.students.GetByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, student.Points(100), s.Points)
	assert.Zero(t, f.job.LastSyncStats().PointsCredited)
}

func TestSyncBonusesJob_Run_SnapshotFallback(t *testing.T) {
	ctx := context.Background()

	feedSource := &fakeFeed{sheets: map[string][][]string{
		"challenges": {{"id", "title", "profession", "eval", "value", "is_active"}},
		"products":   {{"id", "title", "description", "value", "is_active"}},
		"stats": statsSheet(map[student.ID]map[string]string{
			101: {"homework_total": "7"},
		}),
	}}

	// Платформа статистики лежит
	provider := &fakeStatsProvider{fail: map[student.ID]error{101: errors.New("platform down")}}

	f := newSyncFixture(feedSource, provider)

	require.NoError(t, f.job.Run(ctx))

	stats := f.job.LastSyncStats()
	assert.Equal(t, 1, stats.StudentsRefreshed)
	assert.Zero(t, stats.StudentsFailed)

	// Статистика взята из снапшота таблицы
	s, err := f.students.GetByID(ctx, 101)
	require.NoError(t, err)
	total, _ := s.Statistics.GetInt("homework_total")
	assert.Equal(t, 7, total)
}

func TestSyncBonusesJob_Run_MajorityFailure(t *testing.T) {
	ctx := context.Background()

	existing := make([]*student.Student, 0, 3)
	fail := make(map[student.ID]error)
	for i := 1; i <= 3; i++ {
		existing = append(existing, &student.Student{
			ID:         student.ID(i),
			Statistics: student.Statistics{"homework_total": 1},
		})
		if i > 1 {
			fail[student.ID(i)] = errors.New("platform down")
		}
	}

	feedSource := &fakeFeed{sheets: map[string][][]string{
		"challenges": {{"id", "title", "profession", "eval", "value", "is_active"}},
		"products":   {{"id", "title", "description", "value", "is_active"}},
		"stats":      nil,
	}}
	provider := &fakeStatsProvider{
		stats: map[student.ID]student.Statistics{1: {"homework_total": 1}},
		fail:  fail,
	}

	f := newSyncFixture(feedSource, provider, existing...)

	err := f.job.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than half")

	stats := f.job.LastSyncStats()
	assert.Equal(t, 3, stats.StudentsTotal)
	assert.Equal(t, 2, stats.StudentsFailed)
	assert.Equal(t, 1, stats.StudentsRefreshed)
}

func TestSyncBonusesJob_Run_FeedFailureAborts(t *testing.T) {
	ctx := context.Background()

	feedSource := &fakeFeed{
		sheets: map[string][][]string{},
		errs:   map[string]error{"challenges": fmt.Errorf("sheet api down")},
	}
	provider := &fakeStatsProvider{}

	f := newSyncFixture(feedSource, provider)

	err := f.job.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "challenge table")
	assert.Nil(t, f.job.LastSyncStats())
}
