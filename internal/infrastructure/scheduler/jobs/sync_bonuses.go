// Package jobs contains implementations of scheduled jobs for Bonus Hub.
// Each job keeps local data in sync with the editorial tables and the
// statistics platform, and re-runs the bonus pipeline on fresh data.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/skypro-hub/bonus-hub/internal/application/command"
	"github.com/skypro-hub/bonus-hub/internal/domain/product"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/feed"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
	"github.com/skypro-hub/bonus-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC BONUSES JOB
// ══════════════════════════════════════════════════════════════════════════════

// SyncBonusesJob is the core periodic job. One run pulls the editorial
// tables, refreshes the in-memory statistics snapshot, updates every known
// student from the statistics platform, and re-runs challenge awarding and
// achievement evaluation on the fresh data.
type SyncBonusesJob struct {
	// Dependencies
	studentRepo  student.Repository
	productRepo  product.Repository
	feedSource   FeedSource
	statsClient  StatsProvider
	statsCache   *feed.Cache
	reconcile    *command.ReconcileChallengesHandler
	award        *command.AwardChallengesHandler
	achievements *command.RefreshAchievementsHandler
	recorder     SyncRecorder
	log          *logger.Logger

	// Configuration
	config SyncBonusesConfig

	// State (for metrics)
	lastStats atomic.Value // *SyncStats
}

// FeedSource fetches editorial tables by sheet name.
type FeedSource interface {
	GetSheetValues(ctx context.Context, sheetName string) ([][]string, error)
}

// StatsProvider fetches fresh statistics for a single student.
type StatsProvider interface {
	GetStats(ctx context.Context, id student.ID) (student.Statistics, error)
}

// SyncRecorder persists per-student snapshots and the last run time.
// Optional: a nil recorder disables bookkeeping, not the sync.
type SyncRecorder interface {
	Set(ctx context.Context, id student.ID, stats student.Statistics, ttl time.Duration) error
	SetLastSyncAt(ctx context.Context, at time.Time) error
}

// SyncBonusesConfig contains configuration for the sync job.
type SyncBonusesConfig struct {
	// StatsSheet is the sheet name of the statistics table.
	StatsSheet string

	// ChallengesSheet is the sheet name of the challenge table.
	ChallengesSheet string

	// ProductsSheet is the sheet name of the product table.
	ProductsSheet string

	// BatchSize is the number of students refreshed between pauses.
	// The statistics platform throttles aggressive clients.
	BatchSize int

	// BatchPause is the pause between batches.
	BatchPause time.Duration

	// SnapshotTTL is the TTL for recorded statistics snapshots.
	SnapshotTTL time.Duration

	// Timeout is the maximum duration for the entire sync run.
	Timeout time.Duration
}

// DefaultSyncBonusesConfig returns sensible defaults.
func DefaultSyncBonusesConfig() SyncBonusesConfig {
	return SyncBonusesConfig{
		StatsSheet:      "stats",
		ChallengesSheet: "challenges",
		ProductsSheet:   "products",
		BatchSize:       10,
		BatchPause:      500 * time.Millisecond,
		SnapshotTTL:     30 * time.Minute,
		Timeout:         10 * time.Minute,
	}
}

// SyncStats contains statistics from a sync run.
type SyncStats struct {
	StartedAt          time.Time
	CompletedAt        time.Time
	Duration           time.Duration
	SnapshotSize       int
	StudentsEnrolled   int
	ChallengesUpserted int
	ChallengesRejected int
	ProductsUpserted   int
	StudentsTotal      int
	StudentsRefreshed  int
	StudentsFailed     int
	ChallengesAwarded  int
	PointsCredited     int
}

// NewSyncBonusesJob creates a new sync job.
func NewSyncBonusesJob(
	studentRepo student.Repository,
	productRepo product.Repository,
	feedSource FeedSource,
	statsClient StatsProvider,
	statsCache *feed.Cache,
	reconcile *command.ReconcileChallengesHandler,
	award *command.AwardChallengesHandler,
	achievements *command.RefreshAchievementsHandler,
	recorder SyncRecorder,
	log *logger.Logger,
	config SyncBonusesConfig,
) *SyncBonusesJob {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	return &SyncBonusesJob{
		studentRepo:  studentRepo,
		productRepo:  productRepo,
		feedSource:   feedSource,
		statsClient:  statsClient,
		statsCache:   statsCache,
		reconcile:    reconcile,
		award:        award,
		achievements: achievements,
		recorder:     recorder,
		log:          log,
		config:       config,
	}
}

// Name returns the job name.
func (j *SyncBonusesJob) Name() string {
	return "sync_bonuses"
}

// Description returns a human-readable description.
func (j *SyncBonusesJob) Description() string {
	return "Pulls editorial tables, refreshes statistics and re-runs the bonus pipeline"
}

// Run executes one sync pass. Catalog and snapshot failures abort the run;
// a single student failing only skips that student.
func (j *SyncBonusesJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &SyncStats{StartedAt: startedAt}

	// Correlation id ties every log line of one run together.
	log := j.log.With(logger.String("run_id", uuid.NewString()))

	log.Info("sync started", logger.JobName(j.Name()))

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if err := j.refreshCatalogs(ctx, log, stats); err != nil {
		return err
	}

	if err := j.refreshSnapshot(ctx, log, stats); err != nil {
		return err
	}

	if err := j.enrollStudents(ctx, log, stats); err != nil {
		return err
	}

	if err := j.refreshStudents(ctx, log, stats); err != nil {
		return err
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	if j.recorder != nil {
		if err := j.recorder.SetLastSyncAt(ctx, stats.CompletedAt); err != nil {
			log.Warn("failed to record sync time", logger.Err(err))
		}
	}

	log.Info("sync completed",
		logger.JobName(j.Name()),
		logger.Duration("duration", stats.Duration),
		logger.Int("snapshot_size", stats.SnapshotSize),
		logger.Int("students_enrolled", stats.StudentsEnrolled),
		logger.Int("students_refreshed", stats.StudentsRefreshed),
		logger.Int("students_failed", stats.StudentsFailed),
		logger.Int("challenges_awarded", stats.ChallengesAwarded),
		logger.PointsAmount(stats.PointsCredited),
	)

	// A run where most students failed points at a platform outage.
	if stats.StudentsTotal > 0 && stats.StudentsFailed*2 > stats.StudentsTotal {
		return fmt.Errorf("sync failed for more than half of students (%d/%d)",
			stats.StudentsFailed, stats.StudentsTotal)
	}

	return nil
}

// LastSyncStats returns statistics from the last completed run.
func (j *SyncBonusesJob) LastSyncStats() *SyncStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*SyncStats)
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog refresh
// ─────────────────────────────────────────────────────────────────────────────

// refreshCatalogs reconciles the challenge and product catalogs from the
// editorial tables.
func (j *SyncBonusesJob) refreshCatalogs(ctx context.Context, log *logger.Logger, stats *SyncStats) error {
	rows, err := j.feedSource.GetSheetValues(ctx, j.config.ChallengesSheet)
	if err != nil {
		return fmt.Errorf("sync_bonuses: fetch challenge table: %w", err)
	}

	records := feed.ParseChallenges(rows)
	if len(records) > 0 {
		cmd := command.ReconcileChallengesCommand{Rows: challengeRows(records)}
		result, err := j.reconcile.Handle(ctx, cmd)
		if err != nil {
			return fmt.Errorf("sync_bonuses: reconcile challenges: %w", err)
		}
		stats.ChallengesUpserted = result.Written()
		stats.ChallengesRejected = len(result.Rejected)
	}

	rows, err = j.feedSource.GetSheetValues(ctx, j.config.ProductsSheet)
	if err != nil {
		return fmt.Errorf("sync_bonuses: fetch product table: %w", err)
	}

	for _, rec := range feed.ParseProducts(rows) {
		p, err := product.New(rec.ID, rec.Title, rec.Description, rec.Value)
		if err != nil {
			log.Warn("product row rejected",
				logger.ProductID(rec.ID),
				logger.Err(err),
			)
			continue
		}
		p.IsActive = rec.IsActive

		if err := j.productRepo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("sync_bonuses: upsert product %s: %w", p.ID, err)
		}
		stats.ProductsUpserted++
	}

	return nil
}

// challengeRows converts parsed feed records to command rows.
func challengeRows(records []feed.ChallengeRecord) []command.ChallengeRow {
	rows := make([]command.ChallengeRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, command.ChallengeRow{
			ID:         rec.ID,
			Title:      rec.Title,
			Profession: rec.Profession,
			Rule:       rec.Rule,
			Value:      rec.Value,
			IsActive:   rec.IsActive,
		})
	}
	return rows
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot refresh
// ─────────────────────────────────────────────────────────────────────────────

// refreshSnapshot pulls the statistics table and swaps the in-memory
// snapshot. An empty table keeps the previous snapshot.
func (j *SyncBonusesJob) refreshSnapshot(ctx context.Context, log *logger.Logger, stats *SyncStats) error {
	rows, err := j.feedSource.GetSheetValues(ctx, j.config.StatsSheet)
	if err != nil {
		return fmt.Errorf("sync_bonuses: fetch stats table: %w", err)
	}

	parsed := feed.ParseStats(rows)
	if !j.statsCache.ReplaceStats(parsed) {
		log.Warn("empty statistics table, keeping previous snapshot")
	}
	stats.SnapshotSize = j.statsCache.Len()

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment
// ─────────────────────────────────────────────────────────────────────────────

// enrollStudents creates students that appear in the statistics table but
// are not stored yet. The table is the only entry point into the program:
// a student who is not in it earns nothing.
func (j *SyncBonusesJob) enrollStudents(ctx context.Context, log *logger.Logger, stats *SyncStats) error {
	for _, id := range j.statsCache.IDs() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync_bonuses: %w", err)
		}

		_, err := j.studentRepo.GetByID(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, student.ErrStudentNotFound) {
			return fmt.Errorf("sync_bonuses: load student %d: %w", id, err)
		}

		snapshot, ok := j.statsCache.Get(id)
		if !ok {
			continue
		}

		s, err := newStudentFromSnapshot(id, snapshot)
		if err != nil {
			log.Warn("student row rejected",
				logger.StudentID(int64(id)),
				logger.Err(err),
			)
			continue
		}

		if err := j.studentRepo.Upsert(ctx, s); err != nil {
			return fmt.Errorf("sync_bonuses: enroll student %d: %w", id, err)
		}
		stats.StudentsEnrolled++
	}

	return nil
}

// newStudentFromSnapshot builds a student from their statistics table row.
// started_at comes in the table's Russian date format; an unparseable date
// leaves the field zero rather than rejecting the student.
func newStudentFromSnapshot(id student.ID, snapshot student.Statistics) (*student.Student, error) {
	first, _ := snapshot.GetString("first_name")
	last, _ := snapshot.GetString("last_name")
	program, _ := snapshot.GetString("program")

	var startedAt time.Time
	if raw, ok := snapshot.GetString("started_at"); ok {
		if t, err := timeutil.ParseRussianDate(raw); err == nil {
			startedAt = t
		}
	}

	return student.NewStudent(student.NewStudentParams{
		ID:         id,
		FirstName:  first,
		LastName:   last,
		Profession: student.ParseProfession(program),
		StartedAt:  startedAt,
		Statistics: snapshot,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Student refresh
// ─────────────────────────────────────────────────────────────────────────────

// refreshStudents walks all students in pages of BatchSize, refreshing
// statistics and re-running the bonus pipeline for each. A pause between
// batches keeps the statistics platform happy.
func (j *SyncBonusesJob) refreshStudents(ctx context.Context, log *logger.Logger, stats *SyncStats) error {
	opts := student.DefaultListOptions().WithLimit(j.config.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync_bonuses: %w", err)
		}

		batch, err := j.studentRepo.GetAll(ctx, opts)
		if err != nil {
			return fmt.Errorf("sync_bonuses: list students: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		for _, s := range batch {
			stats.StudentsTotal++
			if err := j.refreshStudent(ctx, log, s, stats); err != nil {
				stats.StudentsFailed++
				log.Error("student refresh failed",
					logger.StudentID(int64(s.ID)),
					logger.Err(err),
				)
				continue
			}
			stats.StudentsRefreshed++
		}

		if len(batch) < j.config.BatchSize {
			return nil
		}
		opts = opts.WithOffset(opts.Offset + j.config.BatchSize)

		if j.config.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("sync_bonuses: %w", ctx.Err())
			case <-time.After(j.config.BatchPause):
			}
		}
	}
}

// refreshStudent refreshes one student's statistics and re-runs awarding
// and achievement evaluation on the result.
func (j *SyncBonusesJob) refreshStudent(ctx context.Context, log *logger.Logger, s *student.Student, stats *SyncStats) error {
	fresh, err := j.statsClient.GetStats(ctx, s.ID)
	if err != nil {
		// The in-memory snapshot is the fallback when the platform
		// is unavailable.
		snapshot, ok := j.statsCache.Get(s.ID)
		if !ok {
			return fmt.Errorf("fetch statistics: %w", err)
		}
		fresh = snapshot
	}

	// Missing metrics read as zero downstream, so an incomplete snapshot
	// is worth a warning but not a skip.
	if err := fresh.Validate(); err != nil {
		log.Warn("incomplete statistics",
			logger.StudentID(int64(s.ID)),
			logger.Err(err),
		)
	}

	s.RefreshStatistics(fresh)
	if err := j.studentRepo.Update(ctx, s); err != nil {
		return fmt.Errorf("save student: %w", err)
	}

	if j.recorder != nil {
		if err := j.recorder.Set(ctx, s.ID, fresh, j.config.SnapshotTTL); err != nil {
			log.Warn("failed to record snapshot",
				logger.StudentID(int64(s.ID)),
				logger.Err(err),
			)
		}
	}

	awardResult, err := j.award.Handle(ctx, command.AwardChallengesCommand{
		StudentID: s.ID,
		Stats:     fresh,
	})
	if err != nil {
		return fmt.Errorf("award challenges: %w", err)
	}
	stats.ChallengesAwarded += len(awardResult.Awarded)
	stats.PointsCredited += int(awardResult.PointsCredited)

	if _, err := j.achievements.Handle(ctx, command.RefreshAchievementsCommand{StudentID: s.ID}); err != nil {
		return fmt.Errorf("refresh achievements: %w", err)
	}

	return nil
}
