package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jmehdipour/lead-intake/internal/metrics"
	"github.com/jmehdipour/lead-intake/internal/model"
	"go.uber.org/zap"
)

const (
	ErrFailed = "acs_failed"
	ErrSend   = "acs_error"

	maxDetails = 500
)

var ErrBreakerOpen = errors.New("acs: circuit open, provider recently failing")

// SendResult is the outcome of one dispatch attempt.
type SendResult struct {
	OK        bool
	MessageID string
	Error     string
	Details   string
}

// Dispatcher sends exactly once per call through the provider, guarded by a breaker.
type Dispatcher struct {
	provider Provider
	br       *Breaker
	log      *zap.Logger
}

func NewDispatcher(p Provider, br *Breaker, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{provider: p, br: br, log: log}
}

func (d *Dispatcher) Send(ctx context.Context, msg model.EmailMessage) SendResult {
	start := time.Now()
	res := d.send(ctx, msg)

	label := "ok"
	if !res.OK {
		label = res.Error
	}
	metrics.EmailDispatchSeconds.WithLabelValues(label).Observe(time.Since(start).Seconds())

	return res
}

func (d *Dispatcher) send(ctx context.Context, msg model.EmailMessage) SendResult {
	if d.br != nil && !d.br.TryAcquire() {
		d.log.Warn("email dispatch skipped", zap.Error(ErrBreakerOpen))
		return SendResult{Error: ErrSend, Details: ErrBreakerOpen.Error()}
	}

	// a provider panic counts as a failure so a half-open probe is released
	settled := false
	defer func() {
		if !settled {
			d.onFailure()
		}
	}()

	op, err := d.provider.Send(ctx, msg)
	settled = true
	if err != nil {
		d.onFailure()
		d.log.Error("email dispatch error", zap.Error(err), zap.String("operation_id", op.ID))
		return SendResult{Error: ErrSend, MessageID: op.ID, Details: Truncate(err.Error(), maxDetails)}
	}

	// the provider answered; a rejected message says nothing about its health
	if d.br != nil {
		d.br.OnSuccess()
	}

	if op.Status != StatusSucceeded {
		details := fmt.Sprintf("status=%s", op.Status)
		if op.Error != "" {
			details += " " + op.Error
		}
		d.log.Error("email dispatch failed",
			zap.String("operation_id", op.ID),
			zap.String("status", op.Status),
			zap.String("error", op.Error),
		)
		return SendResult{Error: ErrFailed, MessageID: op.ID, Details: Truncate(details, maxDetails)}
	}

	return SendResult{OK: true, MessageID: op.ID}
}

func (d *Dispatcher) onFailure() {
	if d.br != nil {
		d.br.OnFailure()
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
