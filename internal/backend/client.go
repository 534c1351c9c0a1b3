package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/digkill/CapCalWeb/internal/config"
	"github.com/digkill/CapCalWeb/internal/fetch"
	"github.com/digkill/CapCalWeb/internal/models"
)

const (
	EndpointSaveAppInstall = "saveAppInstall"
	EndpointUsageReport    = "getUsageReport"
	EndpointSendEmail      = "sendEmailToUser"
	EndpointLogin          = "loginWithPassword"
	EndpointListPromoters  = "listPromoters"
	EndpointSavePromoter   = "savePromoter"
)

// ErrRejected is matched by every RejectedError.
var ErrRejected = errors.New("request rejected")

// RejectedError is a 2xx answer with success=false. Message is the remote
// explanation and is safe to show to the user.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return ErrRejected.Error() + ": " + e.Message
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// RejectionMessage returns the remote message when err is a rejection.
func RejectionMessage(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message, true
	}
	return "", false
}

// StatusError is the typed non-2xx failure shared with the fetch layer.
type StatusError = fetch.StatusError

// Endpoints holds the absolute URL of every collaborator call.
type Endpoints struct {
	SaveAppInstall string
	UsageReport    string
	SendEmail      string
	Login          string
	ListPromoters  string
	SavePromoter   string
}

func EndpointsFromConfig(cfg config.Config) Endpoints {
	return Endpoints{
		SaveAppInstall: cfg.SaveAppInstallURL,
		UsageReport:    cfg.UsageReportURL,
		SendEmail:      cfg.FunctionURL(cfg.SendEmailPath),
		Login:          cfg.FunctionURL(cfg.LoginPath),
		ListPromoters:  cfg.FunctionURL(cfg.ListPromotersPath),
		SavePromoter:   cfg.FunctionURL(cfg.SavePromoterPath),
	}
}

// Client talks to the remote cloud functions. Every response is parsed into an
// explicit result type here so callers never see raw JSON.
type Client struct {
	endpoints Endpoints
	fetch     *fetch.Client
	log       *slog.Logger
}

func NewClient(endpoints Endpoints, fetcher *fetch.Client, log *slog.Logger) *Client {
	return &Client{endpoints: endpoints, fetch: fetcher, log: log}
}

// IsStatusError reports whether err carries a non-2xx answer.
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

func (c *Client) SaveAppInstall(ctx context.Context, event models.AttributionEvent) error {
	_, err := c.fetch.Do(ctx, fetch.Request{
		Endpoint: EndpointSaveAppInstall,
		Method:   http.MethodPost,
		URL:      c.endpoints.SaveAppInstall,
		Body:     event,
		Once:     true,
	})
	if err != nil {
		return fmt.Errorf("save app install: %w", err)
	}
	return nil
}

type UsageReportRequest struct {
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	IncludeCosts string `json:"includeCosts"`
}

// UsageReport returns the decoded report together with the raw body.
func (c *Client) UsageReport(ctx context.Context, req UsageReportRequest) (*models.UsageReport, []byte, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{
		Endpoint: EndpointUsageReport,
		Method:   http.MethodPost,
		URL:      c.endpoints.UsageReport,
		Body:     req,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("usage report: %w", err)
	}
	report, err := decodeUsageReport(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return report, resp.Body, nil
}

type SendEmailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
}

func (c *Client) SendEmail(ctx context.Context, req SendEmailRequest) error {
	_, err := c.fetch.Do(ctx, fetch.Request{
		Endpoint: EndpointSendEmail,
		Method:   http.MethodPost,
		URL:      c.endpoints.SendEmail,
		Body:     req,
		Once:     true,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

type LoginResult struct {
	DisplayName string
	IDToken     string
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
	IDToken string `json:"idToken"`
}

// LoginWithPassword verifies credentials remotely. A success=false answer is
// returned as an error wrapping ErrRejected with the remote message.
func (c *Client) LoginWithPassword(ctx context.Context, creds models.Credentials) (*LoginResult, error) {
	var resp loginResponse
	err := c.fetch.DoJSON(ctx, fetch.Request{
		Endpoint: EndpointLogin,
		Method:   http.MethodPost,
		URL:      c.endpoints.Login,
		Body:     creds,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !resp.Success {
		return nil, rejected(resp.Message, "invalid email or password")
	}
	return &LoginResult{DisplayName: resp.User.DisplayName, IDToken: resp.IDToken}, nil
}

type ListPromotersParams struct {
	Page   int    `url:"page"`
	Limit  int    `url:"limit"`
	Status string `url:"status,omitempty"`
	Search string `url:"search,omitempty"`
}

type listPromotersResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Promotors  []models.Promoter `json:"promotors"`
	Pagination models.Pagination `json:"pagination"`
}

func (c *Client) ListPromoters(ctx context.Context, params ListPromotersParams) (*models.PromoterPage, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("encode promoter query: %w", err)
	}

	var resp listPromotersResponse
	err = c.fetch.DoJSON(ctx, fetch.Request{
		Endpoint: EndpointListPromoters,
		Method:   http.MethodGet,
		URL:      c.endpoints.ListPromoters,
		Query:    values,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("list promoters: %w", err)
	}
	if !resp.Success {
		return nil, rejected(resp.Message, "promoter list unavailable")
	}
	promoters := resp.Promotors
	if promoters == nil {
		promoters = []models.Promoter{}
	}
	return &models.PromoterPage{Promoters: promoters, Pagination: resp.Pagination}, nil
}

type SavePromoterRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Platforms []string `json:"platforms"`
	Code      string   `json:"code"`
	PromoLink string   `json:"promoLink"`
}

func (c *Client) SavePromoter(ctx context.Context, req SavePromoterRequest) error {
	_, err := c.fetch.Do(ctx, fetch.Request{
		Endpoint: EndpointSavePromoter,
		Method:   http.MethodPost,
		URL:      c.endpoints.SavePromoter,
		Body:     req,
		Once:     true,
	})
	if err != nil {
		return fmt.Errorf("save promoter: %w", err)
	}
	return nil
}

func rejected(message, fallback string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fallback
	}
	return &RejectedError{Message: message}
}
