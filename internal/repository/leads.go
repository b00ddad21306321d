package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	LeadAggregate   = "lead"
	LeadsKafkaTopic = "leads.received"
)

// LeadsRepository persists accepted inquiries in MySQL.
type LeadsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, l model.Lead) error
}

type LeadsRepositoryImpl struct {
	db *sqlx.DB
}

func NewLeadsRepository(db *sqlx.DB) *LeadsRepositoryImpl {
	return &LeadsRepositoryImpl{db: db}
}

func (r *LeadsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, l model.Lead) error {
	const q = `
		INSERT INTO leads
		    (id, name, company, email, role, phone, freight_modes, approximate_spend,
		     message, client_ip, email_status, message_id, created_at)
		VALUES
		    (:id, :name, :company, :email, :role, :phone, :freight_modes, :approximate_spend,
		     :message, :client_ip, :email_status, :message_id, :created_at)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, l)
		return err
	})
}

// LeadRecorder writes the lead row and its outbox event in one transaction.
type LeadRecorder struct {
	db     *sqlx.DB
	leads  LeadsRepository
	outbox OutboxRepository
	topic  string
}

func NewLeadRecorder(db *sqlx.DB, leads LeadsRepository, outbox OutboxRepository, topic string) *LeadRecorder {
	if topic == "" {
		topic = LeadsKafkaTopic
	}
	return &LeadRecorder{db: db, leads: leads, outbox: outbox, topic: topic}
}

// OutboxEventFor builds the outbox row published for l.
func OutboxEventFor(l model.Lead, modes []string, topic string) (model.OutboxEvent, error) {
	payload, err := json.Marshal(model.EventFromLead(l, modes))
	if err != nil {
		return model.OutboxEvent{}, fmt.Errorf("marshal lead event: %w", err)
	}
	return model.OutboxEvent{
		Aggregate:   LeadAggregate,
		AggregateID: l.ID,
		Topic:       topic,
		Payload:     payload,
		CreatedAt:   l.CreatedAt,
	}, nil
}

func (r *LeadRecorder) Record(ctx context.Context, l model.Lead, modes []string) error {
	ev, err := OutboxEventFor(l, modes, r.topic)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.leads.Insert(ctx, tx, l); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	if err := r.outbox.Insert(ctx, tx, ev); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return tx.Commit()
}
