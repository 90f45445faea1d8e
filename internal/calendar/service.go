package calendar

import (
	"context"
	"fmt"

	"github.com/campusledger/campusledger/internal/shared"
)

// RepositoryPort defines data access methods for the academic calendar.
type RepositoryPort interface {
	ResolvePeriod(ctx context.Context, sessionName, termName string) (Period, error)
	// ListPeriods returns every known period in chronological order:
	// session start date first, then term position within the session.
	ListPeriods(ctx context.Context) ([]Period, error)
	CurrentPeriod(ctx context.Context) (Period, error)
	PeriodExists(ctx context.Context, p Period) (bool, error)
}

// Service exposes calendar lookups to the billing engine.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve maps human-readable session/term names to stable identifiers.
func (s *Service) Resolve(ctx context.Context, sessionName, termName string) (Period, error) {
	if sessionName == "" {
		return Period{}, shared.NewValidationError("session", "required")
	}
	if termName == "" {
		return Period{}, shared.NewValidationError("term", "required")
	}
	return s.repo.ResolvePeriod(ctx, sessionName, termName)
}

// CurrentPeriod returns the period flagged current. Engine operations
// always take an explicit period; this exists for caller convenience.
func (s *Service) CurrentPeriod(ctx context.Context) (Period, error) {
	return s.repo.CurrentPeriod(ctx)
}

// Validate confirms the period resolves to a known session/term pair.
func (s *Service) Validate(ctx context.Context, p Period) error {
	if p.SessionID == "" {
		return shared.NewValidationError("session_id", "required")
	}
	if p.TermID == "" {
		return shared.NewValidationError("term_id", "required")
	}
	ok, err := s.repo.PeriodExists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewNotFoundError("period", fmt.Sprintf("%s/%s", p.SessionID, p.TermID))
	}
	return nil
}

// PriorPeriod returns the period immediately preceding p in the
// calendar's chronological order. Returns shared.ErrNotFound when p is
// the earliest known period.
func (s *Service) PriorPeriod(ctx context.Context, p Period) (Period, error) {
	periods, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return Period{}, err
	}
	for i, candidate := range periods {
		if candidate == p {
			if i == 0 {
				return Period{}, shared.NewNotFoundError("prior period", fmt.Sprintf("%s/%s", p.SessionID, p.TermID))
			}
			return periods[i-1], nil
		}
	}
	return Period{}, shared.NewNotFoundError("period", fmt.Sprintf("%s/%s", p.SessionID, p.TermID))
}
