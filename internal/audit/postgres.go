package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRepository reads audit_logs rows written by shared.AuditLogger.
type PGRepository struct {
	db Querier
}

// NewRepository constructs a PGRepository.
func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

const windowSQL = `SELECT occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC
LIMIT $6 OFFSET $7`

// Window implements Repository.
func (r *PGRepository) Window(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	var limit pgtype.Int4
	if params.Limit > 0 {
		limit = pgtype.Int4{Int32: int32(params.Limit), Valid: true}
	}
	rows, err := r.db.Query(ctx, windowSQL,
		toPgTime(params.From),
		toPgTime(params.To),
		optionalText(params.Actor),
		optionalText(params.Entity),
		optionalText(params.Action),
		limit,
		int64(params.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query window: %w", err)
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var (
			at  pgtype.Timestamptz
			row TimelineRow
		)
		if err := rows.Scan(&at, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, fmt.Errorf("audit: scan window: %w", err)
		}
		if at.Valid {
			row.At = at.Time
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
