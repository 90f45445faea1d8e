package feeschedule

import (
	"context"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

// RepositoryPort defines data access methods for the fee schedule.
type RepositoryPort interface {
	// UpsertEntry deactivates any active entry with the same identity
	// and inserts the new amount as a fresh row.
	UpsertEntry(ctx context.Context, input UpsertEntryInput) (*Entry, error)
	Deactivate(ctx context.Context, id string) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	ListActiveForPeriod(ctx context.Context, period calendar.Period) ([]Entry, error)
	ListForPeriod(ctx context.Context, period calendar.Period) ([]Entry, error)
}

// Service handles fee schedule business logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// Upsert records a new fee amount, superseding any active entry with
// the same (class level, stream, session, term, purpose) identity.
func (s *Service) Upsert(ctx context.Context, input UpsertEntryInput) (*Entry, error) {
	if input.ClassLevel == "" {
		return nil, shared.NewValidationError("class_level", "required")
	}
	if input.SessionID == "" || input.TermID == "" {
		return nil, shared.NewValidationError("period", "session_id and term_id required")
	}
	if input.Purpose == "" {
		return nil, shared.NewValidationError("purpose", "required")
	}
	if input.Amount.IsNegative() {
		return nil, shared.NewValidationError("amount", "must not be negative")
	}

	input.ClassLevel = CanonicalClassLevel(input.ClassLevel)
	input.Stream = CanonicalStream(input.Stream)
	input.Purpose = CanonicalPurpose(input.Purpose)

	entry, err := s.repo.UpsertEntry(ctx, input)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		caller := shared.CallerFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  caller.ID,
			Action:   "feeschedule.upsert",
			Entity:   "fee_schedule_entry",
			EntityID: entry.ID,
			Meta: map[string]any{
				"class_level": entry.ClassLevel,
				"stream":      entry.Stream,
				"purpose":     entry.Purpose,
				"amount":      entry.Amount.String(),
			},
		})
	}
	return entry, nil
}

// Deactivate retires an entry without deleting it.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return shared.NewValidationError("id", "required")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		caller := shared.CallerFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  caller.ID,
			Action:   "feeschedule.deactivate",
			Entity:   "fee_schedule_entry",
			EntityID: id,
		})
	}
	return nil
}

// ListActiveForPeriod returns the active entries for one period.
func (s *Service) ListActiveForPeriod(ctx context.Context, period calendar.Period) ([]Entry, error) {
	if period.SessionID == "" || period.TermID == "" {
		return nil, shared.NewValidationError("period", "session_id and term_id required")
	}
	return s.repo.ListActiveForPeriod(ctx, period)
}

// ListForPeriod returns all entries (including superseded versions).
func (s *Service) ListForPeriod(ctx context.Context, period calendar.Period) ([]Entry, error) {
	if period.SessionID == "" || period.TermID == "" {
		return nil, shared.NewValidationError("period", "session_id and term_id required")
	}
	return s.repo.ListForPeriod(ctx, period)
}
