package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/CapCalWeb/internal/backend"
	"github.com/digkill/CapCalWeb/internal/models"
)

// User-facing load failures.
const (
	MsgFetchFailed  = "Failed to fetch dashboard data"
	MsgNetworkError = "Network error occurred"
)

var ErrArchiveDisabled = errors.New("report archive is disabled")

// LoadError carries the message shown on the page and the underlying cause.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type ReportSource interface {
	UsageReport(ctx context.Context, req backend.UsageReportRequest) (*models.UsageReport, []byte, error)
}

type Archiver interface {
	UploadReport(ctx context.Context, data []byte, label string) (string, error)
}

// Loader fetches a fresh report for every call; nothing is cached.
type Loader struct {
	source   ReportSource
	archiver Archiver
	log      *slog.Logger
}

// NewLoader accepts a nil archiver when archiving is turned off.
func NewLoader(source ReportSource, archiver Archiver, log *slog.Logger) *Loader {
	return &Loader{source: source, archiver: archiver, log: log}
}

func (l *Loader) Load(ctx context.Context, rng Range) (*View, error) {
	report, raw, err := l.fetch(ctx, rng)
	if err != nil {
		return nil, err
	}
	return NewView(rng, report, raw), nil
}

func (l *Loader) ArchiveEnabled() bool {
	return l.archiver != nil
}

// Archive stores the raw report for rng and returns its object URL.
func (l *Loader) Archive(ctx context.Context, rng Range) (string, error) {
	if l.archiver == nil {
		return "", ErrArchiveDisabled
	}
	_, raw, err := l.fetch(ctx, rng)
	if err != nil {
		return "", err
	}
	location, err := l.archiver.UploadReport(ctx, raw, rng.Label())
	if err != nil {
		return "", fmt.Errorf("archive usage report: %w", err)
	}
	l.log.Info("usage report archived", "range", rng.Label(), "location", location)
	return location, nil
}

func (l *Loader) fetch(ctx context.Context, rng Range) (*models.UsageReport, []byte, error) {
	report, raw, err := l.source.UsageReport(ctx, rng.Request())
	if err == nil {
		return report, raw, nil
	}
	l.log.Error("fetch dashboard data", "range", rng.Label(), "err", err)
	if backend.IsStatusError(err) {
		return nil, nil, &LoadError{Message: MsgFetchFailed, Err: err}
	}
	return nil, nil, &LoadError{Message: MsgNetworkError, Err: err}
}
