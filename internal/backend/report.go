package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/digkill/CapCalWeb/internal/fetch"
	"github.com/digkill/CapCalWeb/internal/models"
)

// decodeUsageReport accepts any JSON object; missing fields stay zero.
func decodeUsageReport(body []byte) (*models.UsageReport, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("decode usage report: expected json object (body=%s)", fetch.TruncateBody(body))
	}
	var report models.UsageReport
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, fmt.Errorf("decode usage report: %w (body=%s)", err, fetch.TruncateBody(body))
	}
	if report.DailyUsage == nil {
		report.DailyUsage = []models.DailyUsage{}
	}
	return &report, nil
}
