package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/digkill/CapCalWeb/internal/backend"
	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/internal/validation"
)

// Messages shown after a submission.
const (
	MsgSent        = "Message sent successfully!"
	MsgFailed      = "Something went wrong. Please try again."
	MsgUnreachable = "Failed to send. Please try again later."
	MsgRateLimited = "Too many messages. Please try again in a minute."
)

// Metric outcomes.
const (
	OutcomeSent        = "sent"
	OutcomeFailed      = "failed"
	OutcomeUnreachable = "unreachable"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
)

var ErrRateLimited = errors.New("contact rate limit exceeded")

var fieldMessages = validation.Messages{
	"name":    "Please enter your name",
	"email":   "Please enter a valid email address",
	"message": "Please enter a message",
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid contact message: " + validation.First(e.Fields, "name", "email", "message")
}

type Mailer interface {
	SendEmail(ctx context.Context, req backend.SendEmailRequest) error
}

type Notifier interface {
	ContactReceived(msg models.ContactMessage)
}

type Observer interface {
	ContactSubmitted(outcome string)
}

type Config struct {
	To            string
	From          string
	Subject       string
	RatePerMinute float64
	RateBurst     int
}

type Service struct {
	mailer   Mailer
	notifier Notifier
	observer Observer
	validate *validator.Validate
	limiter  *clientLimiter
	cfg      Config
	log      *slog.Logger
}

// NewService accepts nil notifier and observer.
func NewService(mailer Mailer, notifier Notifier, observer Observer, cfg Config, log *slog.Logger) *Service {
	return &Service{
		mailer:   mailer,
		notifier: notifier,
		observer: observer,
		validate: validation.New(),
		limiter:  newClientLimiter(cfg.RatePerMinute, cfg.RateBurst),
		cfg:      cfg,
		log:      log,
	}
}

// Submit validates msg, applies the per-client limit and forwards it to the
// email function. clientKey is usually the client IP.
func (s *Service) Submit(ctx context.Context, clientKey string, msg models.ContactMessage) error {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)

	if err := s.validate.Struct(msg); err != nil {
		s.observe(OutcomeInvalid)
		if fields := validation.Fields(err, fieldMessages); fields != nil {
			return &ValidationError{Fields: fields}
		}
		return fmt.Errorf("validate contact message: %w", err)
	}
	if !s.limiter.Allow(clientKey) {
		s.observe(OutcomeRateLimited)
		s.log.Warn("contact rate limited", "client", clientKey)
		return ErrRateLimited
	}

	err := s.mailer.SendEmail(ctx, backend.SendEmailRequest{
		To:       s.cfg.To,
		Subject:  s.cfg.Subject,
		Message:  Body(msg),
		From:     s.cfg.From,
		FromName: msg.Name,
	})
	if err != nil {
		outcome := OutcomeUnreachable
		if backend.IsStatusError(err) {
			outcome = OutcomeFailed
		}
		s.observe(outcome)
		s.log.Error("send contact message", "outcome", outcome, "err", err)
		return err
	}

	s.observe(OutcomeSent)
	s.log.Info("contact message sent", "from", msg.Email)
	if s.notifier != nil {
		s.notifier.ContactReceived(msg)
	}
	return nil
}

// Body is the email text the marketing inbox receives.
func Body(msg models.ContactMessage) string {
	return "User Email : " + msg.Email + "\n" + " User Message: " + msg.Message
}

// UserMessage maps a Submit result to the text shown to the visitor.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return MsgSent
	case errors.As(err, &verr):
		return validation.First(verr.Fields, "name", "email", "message")
	case errors.Is(err, ErrRateLimited):
		return MsgRateLimited
	case backend.IsStatusError(err):
		return MsgFailed
	default:
		return MsgUnreachable
	}
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ContactSubmitted(outcome)
	}
}
