package promoter

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

const (
	DefaultPageSize   = 20
	msgSaveFailed     = "Failed to save promoter"
	msgSaveFailedBody = "Failed to save promoter: "
	msgListFailed     = "Failed to load promoters"
	msgUnavailable    = "Network error occurred. Please try again."
)

var formMessages = validation.Messages{
	"name":      "Name is required",
	"email":     "Please enter a valid email",
	"code":      "Referral code is required",
	"platforms": "Select at least one platform",
}

// Form is the create-promoter input.
type Form struct {
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email" validate:"required,simpleemail"`
	Code      string   `json:"code" validate:"required"`
	Platforms []string `json:"platforms" validate:"min=1,dive,platform"`
}

func (f Form) normalized() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Code = strings.TrimSpace(f.Code)
	platforms := make([]string, 0, len(f.Platforms))
	for _, p := range f.Platforms {
		if p = strings.TrimSpace(p); p != "" {
			platforms = append(platforms, p)
		}
	}
	f.Platforms = platforms
	return f
}

// HasPlatform is used by the form template to keep checkboxes ticked.
func (f Form) HasPlatform(name string) bool {
	for _, p := range f.Platforms {
		if p == name {
			return true
		}
	}
	return false
}

// ValidationError lists the form fields that failed, keyed by json name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid promoter: " + validation.First(e.Fields, "name", "email", "code", "platforms")
}

type Query struct {
	Page     int
	PageSize int
	Search   string
	Status   models.PromoterStatus
}

func (q Query) normalized(defaultSize int) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultSize
	}
	q.Search = strings.TrimSpace(q.Search)
	switch q.Status {
	case models.PromoterStatusActive, models.PromoterStatusInactive, models.PromoterStatusAll:
	default:
		q.Status = models.PromoterStatusActive
	}
	return q
}

type Registry interface {
	ListPromoters(ctx context.Context, params backend.ListPromotersParams) (*models.PromoterPage, error)
	SavePromoter(ctx context.Context, req backend.SavePromoterRequest) error
}

type Notifier interface {
	PromoterCreated(p models.Promoter)
}

type Config struct {
	BaseURL    string
	CodePrefix string
	PageSize   int
}

type Service struct {
	registry Registry
	notifier Notifier
	validate *validator.Validate
	cfg      Config
	log      *slog.Logger
}

// NewService accepts a nil notifier.
func NewService(registry Registry, notifier Notifier, cfg Config, log *slog.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Service{
		registry: registry,
		notifier: notifier,
		validate: validation.New(),
		cfg:      cfg,
		log:      log,
	}
}

func (s *Service) PageSize() int {
	return s.cfg.PageSize
}

// Normalize applies paging and status defaults to q.
func (s *Service) Normalize(q Query) Query {
	return q.normalized(s.cfg.PageSize)
}

func (s *Service) List(ctx context.Context, q Query) (*models.PromoterPage, error) {
	q = s.Normalize(q)
	page, err := s.registry.ListPromoters(ctx, backend.ListPromotersParams{
		Page:   q.Page,
		Limit:  q.PageSize,
		Status: string(q.Status),
		Search: q.Search,
	})
	if err != nil {
		s.log.Error("list promoters", "page", q.Page, "status", q.Status, "err", err)
		return nil, err
	}
	return page, nil
}

// PromoLink concatenates the configured invite base URL and the code.
func (s *Service) PromoLink(code string) string {
	return s.cfg.BaseURL + code
}

func (s *Service) GenerateCode() (string, error) {
	return GenerateCode(s.cfg.CodePrefix)
}

// Validate checks the form without any network call.
func (s *Service) Validate(f Form) (Form, error) {
	f = f.normalized()
	if err := s.validate.Struct(f); err != nil {
		if fields := validation.Fields(err, formMessages); fields != nil {
			return f, &ValidationError{Fields: fields}
		}
		return f, fmt.Errorf("validate promoter: %w", err)
	}
	return f, nil
}

func (s *Service) Create(ctx context.Context, f Form) (*models.Promoter, error) {
	f, err := s.Validate(f)
	if err != nil {
		return nil, err
	}

	p := models.Promoter{
		Name:      f.Name,
		Email:     f.Email,
		Platforms: f.Platforms,
		Code:      f.Code,
		PromoLink: s.PromoLink(f.Code),
		Status:    models.PromoterStatusActive,
	}
	err = s.registry.SavePromoter(ctx, backend.SavePromoterRequest{
		Name:      p.Name,
		Email:     p.Email,
		Platforms: p.Platforms,
		Code:      p.Code,
		PromoLink: p.PromoLink,
	})
	if err != nil {
		s.log.Error("save promoter", "code", p.Code, "err", err)
		return nil, err
	}

	s.log.Info("promoter created", "code", p.Code, "platforms", len(p.Platforms))
	if s.notifier != nil {
		s.notifier.PromoterCreated(p)
	}
	return &p, nil
}

// UserMessage turns a List or Create failure into the text shown on the page.
// Non-2xx save responses surface their body.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return validation.First(verr.Fields, "name", "email", "code", "platforms")
	}
	if msg, ok := backend.RejectionMessage(err); ok {
		return msg
	}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) && statusErr.Endpoint == backend.EndpointSavePromoter {
		if body := strings.TrimSpace(statusErr.Body); body != "" {
			return msgSaveFailedBody + body
		}
		return msgSaveFailed
	}
	if statusErr != nil {
		return msgListFailed
	}
	return msgUnavailable
}
