package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// CHLeadsRepository stores lead events in ClickHouse for reporting.
type CHLeadsRepository interface {
	InsertBatch(ctx context.Context, events []model.LeadEvent) error
	ListRecent(ctx context.Context, mode string, limit, offset int) ([]model.LeadEvent, error)
}

type chLeadsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHLeadsRepository(ch *sqlx.DB) CHLeadsRepository {
	return &chLeadsRepository{ch: ch}
}

type chLeadRow struct {
	ID          string    `db:"id"`
	Company     string    `db:"company"`
	Email       string    `db:"email"`
	Modes       []string  `db:"freight_modes"`
	Spend       string    `db:"approximate_spend"`
	EmailStatus string    `db:"email_status"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r chLeadRow) event() model.LeadEvent {
	return model.LeadEvent{
		ID:          r.ID,
		Company:     r.Company,
		Email:       r.Email,
		Modes:       r.Modes,
		Spend:       r.Spend,
		EmailStatus: model.EmailStatus(r.EmailStatus),
		CreatedAt:   r.CreatedAt,
	}
}

// InsertBatch sends all events as one ClickHouse block.
func (r *chLeadsRepository) InsertBatch(ctx context.Context, events []model.LeadEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leadgw.leads
		    (id, company, email, freight_modes, approximate_spend, email_status, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		modes := e.Modes
		if modes == nil {
			modes = []string{}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Company, e.Email, modes, e.Spend, e.EmailStatus.String(), e.CreatedAt); err != nil {
			return fmt.Errorf("append %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// ClampPage normalizes admin paging input.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func listQuery(mode string, limit, offset int) (string, []any) {
	q := `
		SELECT id, company, email, freight_modes, approximate_spend, email_status, created_at
		FROM leadgw.leads FINAL
	`
	var args []any
	if mode != "" {
		q += " WHERE has(freight_modes, ?)"
		args = append(args, mode)
	}
	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	return q, args
}

func (r *chLeadsRepository) ListRecent(ctx context.Context, mode string, limit, offset int) ([]model.LeadEvent, error) {
	limit, offset = ClampPage(limit, offset)
	q, args := listQuery(mode, limit, offset)

	var rows []chLeadRow
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}

	out := make([]model.LeadEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.event())
	}
	return out, nil
}
