package postgres

import (
	"context"
	"fmt"

	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/pkg/database"
)

// AuditRepository implements repository.AuditRepository using PostgreSQL.
// Both tables are append-only; no update or delete paths exist.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendSecurityEvent stores a security event and fills in its generated id.
func (r *AuditRepository) AppendSecurityEvent(ctx context.Context, e *domain.SecurityEvent) (err error) {
	query := `
		INSERT INTO security_events (account_id, kind, description, ip_address, device, location, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "AppendSecurityEvent", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		e.AccountID,
		e.Kind,
		e.Description,
		e.IPAddress,
		e.Device,
		e.Location,
		e.OccurredAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append security event: %w", err)
	}

	return nil
}

// AppendAccessLog stores an access log entry and fills in its generated id.
func (r *AuditRepository) AppendAccessLog(ctx context.Context, l *domain.AccessLog) (err error) {
	query := `
		INSERT INTO access_logs (account_id, kind, resource, ip_address, device, user_agent, location, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "AppendAccessLog", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		l.AccountID,
		l.Kind,
		l.Resource,
		l.IPAddress,
		l.Device,
		l.UserAgent,
		l.Location,
		l.OccurredAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}

	return nil
}

// ListSecurityEvents returns the account's security events newest first,
// together with the total count.
func (r *AuditRepository) ListSecurityEvents(ctx context.Context, accountID int64, limit, offset int) (events []domain.SecurityEvent, total int, err error) {
	countQuery := `SELECT COUNT(*) FROM security_events WHERE account_id = $1`
	listQuery := `
		SELECT id, account_id, kind, description, ip_address, device, location, occurred_at
		FROM security_events
		WHERE account_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListSecurityEvents", listQuery)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count security events: %w", err)
	}

	rows, err := r.db.Query(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	events = make([]domain.SecurityEvent, 0, limit)
	for rows.Next() {
		var e domain.SecurityEvent
		if err = rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Description, &e.IPAddress, &e.Device, &e.Location, &e.OccurredAt); err != nil {
			return nil, 0, fmt.Errorf("scan security event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate security events: %w", err)
	}

	return events, total, nil
}

// ListAccessLogs returns the account's access log entries newest first,
// together with the total count.
func (r *AuditRepository) ListAccessLogs(ctx context.Context, accountID int64, limit, offset int) (logs []domain.AccessLog, total int, err error) {
	countQuery := `SELECT COUNT(*) FROM access_logs WHERE account_id = $1`
	listQuery := `
		SELECT id, account_id, kind, resource, ip_address, device, user_agent, location, occurred_at
		FROM access_logs
		WHERE account_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListAccessLogs", listQuery)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access logs: %w", err)
	}

	rows, err := r.db.Query(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()

	logs = make([]domain.AccessLog, 0, limit)
	for rows.Next() {
		var l domain.AccessLog
		if err = rows.Scan(&l.ID, &l.AccountID, &l.Kind, &l.Resource, &l.IPAddress, &l.Device, &l.UserAgent, &l.Location, &l.OccurredAt); err != nil {
			return nil, 0, fmt.Errorf("scan access log: %w", err)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate access logs: %w", err)
	}

	return logs, total, nil
}
