package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/lead-intake/internal/mailer"
	"github.com/jmehdipour/lead-intake/internal/metrics"
	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	"github.com/jmehdipour/lead-intake/internal/turnstile"
	"github.com/jmehdipour/lead-intake/internal/util"
	"go.uber.org/zap"
)

type Verifier interface {
	Verify(ctx context.Context, token, ip string) turnstile.Result
}

type Sender interface {
	Send(ctx context.Context, msg model.EmailMessage) mailer.SendResult
}

// Recorder archives accepted leads. Failures never change the response.
type Recorder interface {
	Record(ctx context.Context, lead model.Lead, modes []string) error
}

type Deps struct {
	Limiter  ratelimit.Limiter
	Verifier Verifier
	Sender   Sender
	Recorder Recorder // optional
	Env      Env
	Log      *zap.Logger
	Now      func() time.Time
}

// Service runs the contact intake pipeline. It is shared by every host adapter.
type Service struct {
	limiter  ratelimit.Limiter
	verifier Verifier
	sender   Sender
	recorder Recorder
	env      Env
	log      *zap.Logger
	now      func() time.Time

	recordTimeout time.Duration
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		limiter:       d.Limiter,
		verifier:      d.Verifier,
		sender:        d.Sender,
		recorder:      d.Recorder,
		env:           d.Env,
		log:           d.Log,
		now:           d.Now,
		recordTimeout: 3 * time.Second,
	}
}

// Handle runs one request through method check, rate limit, parsing,
// honeypot, validation, turnstile, config guard and email dispatch, stopping
// at the first failure.
func (s *Service) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("contact intake panic", zap.Any("panic", r), zap.Stack("stack"))
			resp = s.finish(CodeInternal, failure(http.StatusInternalServerError, CodeInternal))
		}
	}()

	switch strings.ToUpper(req.Method) {
	case http.MethodOptions:
		return s.finish("preflight", preflight())
	case http.MethodPost:
	default:
		return s.finish(CodeMethodNotAllowed, methodNotAllowed())
	}

	// a client disconnect never aborts an accepted submission; the provider
	// client bounds the send with its own timeout
	ctx = context.WithoutCancel(ctx)

	ip := ClientIP(req.Header, req.RemoteAddr)
	log := s.log.With(zap.String("ip", ip))

	if s.limiter != nil {
		dec, err := s.limiter.Check(ctx, ip)
		switch {
		case err != nil:
			// fail open, as with a missing limiter
			log.Warn("rate limit check failed", zap.Error(err))
		case !dec.Allowed:
			log.Info("rate limited", zap.Time("reset_at", dec.ResetAt))
			return s.finish(CodeRateLimited, rateLimited(dec.ResetAt, s.now()))
		}
	}

	raw, ok := parseObject(req.Body)
	if !ok {
		return s.finish(CodeInvalidJSON, failure(http.StatusBadRequest, CodeInvalidJSON))
	}

	if Honeypot(raw) {
		log.Info("honeypot tripped")
		return s.finish("honeypot", okResponse(http.StatusAccepted))
	}

	in, fields := Validate(raw)
	if len(fields) > 0 {
		return s.finish(CodeValidationFailed, failure(http.StatusBadRequest, CodeValidationFailed, "fields", fields))
	}

	if s.verifier != nil {
		if vr := s.verifier.Verify(ctx, in.TurnstileToken, ip); !vr.OK {
			return s.finish(vr.Error, failure(http.StatusBadRequest, vr.Error))
		}
	}

	if missing := s.env.Missing(); len(missing) > 0 {
		log.Error("contact email not configured", zap.Strings("missing", missing))
		return s.finish(CodeMissingEnv, failure(http.StatusInternalServerError, CodeMissingEnv, "missing", missing))
	}

	msg, err := mailer.Compose(in, ip, s.env.subjectPrefix(), s.env.Sender, s.env.ToEmail)
	if err != nil {
		log.Error("compose email", zap.Error(err))
		return s.finish(CodeInternal, failure(http.StatusInternalServerError, CodeInternal))
	}

	res := s.sender.Send(ctx, msg)
	s.record(ctx, log, in, ip, res)

	if !res.OK {
		log.Error("contact email not sent",
			zap.String("error", res.Error),
			zap.String("details", res.Details),
			zap.String("message_id", res.MessageID),
		)
		return s.finish(res.Error, failure(http.StatusBadGateway, res.Error, "details", res.Details))
	}

	log.Info("contact inquiry delivered", zap.String("message_id", res.MessageID), zap.String("company", in.Company))
	return s.finish("ok", okResponse(http.StatusOK))
}

func (s *Service) record(ctx context.Context, log *zap.Logger, in model.Inquiry, ip string, res mailer.SendResult) {
	if s.recorder == nil {
		return
	}

	status := model.EmailSent
	if !res.OK {
		status = model.EmailFailed
	}
	now := s.now()
	lead := model.NewLead(util.NewID(now), in, ip, status, res.MessageID, now)

	ctx, cancel := context.WithTimeout(ctx, s.recordTimeout)
	defer cancel()

	if err := s.recorder.Record(ctx, lead, in.FreightModes); err != nil {
		metrics.LeadsArchivedTotal.WithLabelValues("record_failed").Inc()
		log.Error("record lead", zap.Error(err), zap.String("lead_id", lead.ID))
		return
	}
	metrics.LeadsArchivedTotal.WithLabelValues("recorded").Inc()
}

func (s *Service) finish(outcome string, r Response) Response {
	metrics.IntakeRequestsTotal.WithLabelValues(outcome).Inc()
	return r
}

// parseObject accepts only a JSON object body.
func parseObject(body []byte) (map[string]any, bool) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}
