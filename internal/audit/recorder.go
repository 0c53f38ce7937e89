// Package audit persists persona fallback events so operators can find
// tenants that are silently served a substituted archetype.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FallbackEvent records one degraded resolution. It never carries tenant
// business data.
type FallbackEvent struct {
	ID                 uuid.UUID `json:"id"`
	TenantID           string    `json:"tenant_id,omitempty"`
	Channel            string    `json:"channel"`
	RequestedArchetype string    `json:"requested_archetype,omitempty"`
	ResolvedArchetype  string    `json:"resolved_archetype"`
	Source             string    `json:"source"`
	Reason             string    `json:"reason"`
	CreatedAt          time.Time `json:"created_at"`
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Recorder writes fallback events to persona_fallback_events.
type Recorder struct {
	pool rowQuerier
	now  func() time.Time
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	if pool == nil {
		panic("audit: pgx pool required")
	}
	return &Recorder{pool: pool, now: time.Now}
}

func newRecorderWithExec(exec rowQuerier) *Recorder {
	if exec == nil {
		panic("audit: exec required")
	}
	return &Recorder{pool: exec, now: time.Now}
}

// RecordFallback inserts evt, assigning an id and timestamp when unset.
func (r *Recorder) RecordFallback(ctx context.Context, evt FallbackEvent) error {
	if strings.TrimSpace(evt.ResolvedArchetype) == "" {
		return errors.New("audit: resolved archetype required")
	}
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = r.now().UTC()
	}
	query := `
		INSERT INTO persona_fallback_events
			(id, tenant_id, channel, requested_archetype, resolved_archetype, source, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.pool.Exec(ctx, query, evt.ID, evt.TenantID, evt.Channel, evt.RequestedArchetype,
		evt.ResolvedArchetype, evt.Source, evt.Reason, evt.CreatedAt); err != nil {
		return fmt.Errorf("audit: insert fallback: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, optionally for one tenant.
func (r *Recorder) ListRecent(ctx context.Context, tenantID string, limit int) ([]FallbackEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT id, tenant_id, channel, requested_archetype, resolved_archetype, source, reason, created_at
		FROM persona_fallback_events
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, strings.TrimSpace(tenantID), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list fallbacks: %w", err)
	}
	defer rows.Close()

	var out []FallbackEvent
	for rows.Next() {
		var evt FallbackEvent
		if err := rows.Scan(&evt.ID, &evt.TenantID, &evt.Channel, &evt.RequestedArchetype,
			&evt.ResolvedArchetype, &evt.Source, &evt.Reason, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan fallback: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list fallbacks: %w", err)
	}
	return out, nil
}
