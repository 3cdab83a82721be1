// Package audit records the append-only security event and access log
// trail. Entries are stamped by the recorder so callers cannot backdate
// or forward-date the trail.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/internal/repository"
	apperrors "github.com/nortover/accountsvc/pkg/errors"
)

// Recorder validates and timestamps audit entries before persisting them.
type Recorder struct {
	repo repository.AuditRepository
	now  func() time.Time
}

// NewRecorder creates a Recorder backed by the given repository.
func NewRecorder(repo repository.AuditRepository) *Recorder {
	return &Recorder{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SecurityEvent appends a security event for the account. The timestamp is
// assigned here, always UTC.
func (r *Recorder) SecurityEvent(ctx context.Context, e *domain.SecurityEvent) error {
	if !domain.IsValidSecurityEventKind(e.Kind) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown security event kind %q", e.Kind))
	}
	if e.AccountID == 0 {
		return apperrors.InvalidInput("security event requires an account id")
	}

	e.OccurredAt = r.now()
	if err := r.repo.AppendSecurityEvent(ctx, e); err != nil {
		return fmt.Errorf("record security event: %w", err)
	}
	return nil
}

// Access appends an access log entry for the account. The timestamp is
// assigned here, always UTC.
func (r *Recorder) Access(ctx context.Context, l *domain.AccessLog) error {
	if !domain.IsValidAccessKind(l.Kind) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown access kind %q", l.Kind))
	}
	if l.AccountID == 0 {
		return apperrors.InvalidInput("access log entry requires an account id")
	}

	l.OccurredAt = r.now()
	if err := r.repo.AppendAccessLog(ctx, l); err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	return nil
}

// SecurityEvents lists the account's security events newest first.
func (r *Recorder) SecurityEvents(ctx context.Context, accountID int64, limit, offset int) ([]domain.SecurityEvent, int, error) {
	return r.repo.ListSecurityEvents(ctx, accountID, limit, offset)
}

// AccessLogs lists the account's access log entries newest first.
func (r *Recorder) AccessLogs(ctx context.Context, accountID int64, limit, offset int) ([]domain.AccessLog, int, error) {
	return r.repo.ListAccessLogs(ctx, accountID, limit, offset)
}
