package billing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/feeschedule"
	"github.com/campusledger/campusledger/internal/observability"
	"github.com/campusledger/campusledger/internal/shared"
)

// ServiceConfig tunes engine policy.
type ServiceConfig struct {
	StreamFeePolicy StreamFeePolicy
}

// Service implements the tuition billing and ledger reconciliation
// engine: charge generation, carry-forward, payment recording,
// installment plans and balance calculation.
type Service struct {
	repo     RepositoryPort
	students StudentDirectoryPort
	fees     FeeSchedulePort
	calendar CalendarPort
	audit    *shared.AuditLogger
	cache    CacheInvalidator
	metrics  *observability.Metrics
	logger   *slog.Logger
	policy   StreamFeePolicy
}

// NewService builds Service instance. audit, cache and metrics may be
// nil; the engine then runs without those side channels.
func NewService(repo RepositoryPort, students StudentDirectoryPort, fees FeeSchedulePort, cal CalendarPort, audit *shared.AuditLogger, cache CacheInvalidator, metrics *observability.Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	policy := cfg.StreamFeePolicy
	if policy == "" {
		policy = PolicyAdditive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		students: students,
		fees:     fees,
		calendar: cal,
		audit:    audit,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		policy:   policy,
	}
}

// GenerateCharges expands the active fee schedule for the period into
// one current-term charge row per (student, purpose). Matching entries
// are summed per purpose before writing, so repeated runs stay
// idempotent and reporting sees one row per purpose. Zero active
// entries is a no-op, not an error. Per-student failures are collected
// and the batch continues.
func (s *Service) GenerateCharges(ctx context.Context, period calendar.Period) (shared.BatchResult, error) {
	var result shared.BatchResult

	if err := s.calendar.Validate(ctx, period); err != nil {
		return result, err
	}

	entries, err := s.fees.ListActiveForPeriod(ctx, period)
	if err != nil {
		return result, err
	}
	if len(entries) == 0 {
		s.logger.Info("no active fee entries for period, nothing to generate",
			slog.String("session_id", period.SessionID), slog.String("term_id", period.TermID))
		return result, nil
	}

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return result, err
	}

	for _, student := range students {
		expected := ComputeExpectedForStudent(student, entries, s.policy)
		if len(expected) == 0 {
			// No entry matched this student's class/stream.
			continue
		}
		// Deterministic write order keeps concurrent runs convergent.
		purposes := make([]string, 0, len(expected))
		for purpose := range expected {
			purposes = append(purposes, purpose)
		}
		sort.Strings(purposes)

		for _, purpose := range purposes {
			changed, err := s.repo.UpsertCharge(ctx, ChargeUpsert{
				StudentID:   student.ID,
				SessionID:   period.SessionID,
				TermID:      period.TermID,
				Purpose:     purpose,
				Amount:      expected[purpose].String(),
				CarriedOver: false,
				Description: DescriptionCurrentTerm,
			})
			if err != nil {
				s.logger.Warn("charge upsert failed, skipping student purpose",
					slog.String("student_id", student.ID), slog.String("purpose", purpose), slog.Any("error", err))
				result.AddError(student.ID, purpose, err)
				continue
			}
			if changed {
				result.UpdatedCount++
				if s.metrics != nil {
					s.metrics.ChargesGenerated.Inc()
				}
			}
		}
	}

	s.invalidate(ctx)
	s.record(ctx, "billing.generate_charges", period, map[string]any{
		"updated": result.UpdatedCount,
		"errors":  len(result.Errors),
	})
	return result, nil
}

// canonicalPurpose is shared by the write paths.
func canonicalPurpose(p string) string {
	return feeschedule.CanonicalPurpose(p)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, period calendar.Period, meta map[string]any) {
	if s.audit == nil {
		return
	}
	caller := shared.CallerFromContext(ctx)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["session_id"] = period.SessionID
	meta["term_id"] = period.TermID
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.ID,
		Action:   action,
		Entity:   "billing_period",
		EntityID: period.SessionID + "/" + period.TermID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
