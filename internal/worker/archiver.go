package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/lead-intake/internal/kafka"
	"github.com/jmehdipour/lead-intake/internal/metrics"
	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/jmehdipour/lead-intake/internal/repository"
	"go.uber.org/zap"
)

var (
	errEmptyID   = errors.New("lead event without id")
	errBadStatus = errors.New("lead event with unknown email status")
)

// Archiver:
// - fetches lead events published from the MySQL outbox,
// - batches them by size/time into ClickHouse,
// - commits Kafka offsets only after the batch is stored.
type Archiver struct {
	Reader kafka.Reader
	Store  repository.CHLeadsRepository
	Log    *zap.Logger

	BatchSize int           // max events per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewArchiver(r kafka.Reader, store repository.CHLeadsRepository, log *zap.Logger) *Archiver {
	return &Archiver{
		Reader:    r,
		Store:     store,
		Log:       log,
		BatchSize: 200,
		BatchWait: 2 * time.Second,
	}
}

// decodeEvent accepts the payload as JSON or as a JSON string holding it,
// which is how the outbox SMT emits it without expand.json.payload.
func decodeEvent(value []byte) (model.LeadEvent, error) {
	var ev model.LeadEvent
	if len(value) > 0 && value[0] == '"' {
		var inner string
		if err := json.Unmarshal(value, &inner); err != nil {
			return ev, err
		}
		value = []byte(inner)
	}
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, err
	}
	if ev.ID == "" {
		return ev, errEmptyID
	}
	if !ev.EmailStatus.Valid() {
		return ev, fmt.Errorf("%w %q", errBadStatus, ev.EmailStatus)
	}
	return ev, nil
}

// Run blocks until ctx is cancelled, then flushes what is buffered.
func (a *Archiver) Run(ctx context.Context) error {
	if a.Reader == nil || a.Store == nil {
		return errors.New("archiver: reader and store are required")
	}
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	if a.BatchSize <= 0 {
		a.BatchSize = 200
	}
	if a.BatchWait <= 0 {
		a.BatchWait = 2 * time.Second
	}

	msgCh := make(chan kafka.Message, a.BatchSize)
	go a.fetch(ctx, msgCh)

	tick := time.NewTicker(a.BatchWait)
	defer tick.Stop()

	var (
		events  []model.LeadEvent
		pending []kafka.Message // offsets to commit after the next flush
	)

	flush := func(ctx context.Context) bool {
		if len(pending) == 0 {
			return true
		}
		if err := a.Store.InsertBatch(ctx, events); err != nil {
			metrics.LeadsArchivedTotal.WithLabelValues("analytics_failed").Add(float64(len(events)))
			a.Log.Error("clickhouse batch insert", zap.Error(err), zap.Int("events", len(events)))
			return false
		}
		if err := a.Reader.Commit(ctx, pending...); err != nil {
			// at-least-once: rows may be re-inserted, ReplacingMergeTree folds them
			a.Log.Warn("kafka commit", zap.Error(err))
		}
		metrics.LeadsArchivedTotal.WithLabelValues("analytics").Add(float64(len(events)))
		a.Log.Info("archived leads", zap.Int("events", len(events)), zap.Int("messages", len(pending)))
		events, pending = events[:0], pending[:0]
		return true
	}

	in := msgCh
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(fctx)
			cancel()
			return nil

		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, m)
			ev, err := decodeEvent(m.Value)
			if err != nil {
				metrics.LeadsArchivedTotal.WithLabelValues("poison").Inc()
				a.Log.Warn("skip lead event", zap.Error(err), zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition))
			} else {
				events = append(events, ev)
			}
			if len(pending) >= a.BatchSize && !flush(ctx) {
				// stop reading until a retry on the ticker succeeds
				in = nil
			}

		case <-tick.C:
			if flush(ctx) && in == nil {
				in = msgCh
			}
		}
	}
}

func (a *Archiver) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := a.Reader.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.Log.Warn("kafka fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}
