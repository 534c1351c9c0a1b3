package dashboard

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/digkill/CapCalWeb/internal/models"
)

const notAvailable = "N/A"

type OperationCard struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Count string `json:"count"`
	Cost  string `json:"cost"`
}

type CostLine struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

type Efficiency struct {
	ReadWriteRatio  string `json:"readWriteRatio"`
	CostPer1KReads  string `json:"costPer1kReads"`
	CostPer1KWrites string `json:"costPer1kWrites"`
}

// DayPoint is one entry of the per-day chart series.
type DayPoint struct {
	Label         string  `json:"label"`
	Date          string  `json:"date"`
	Reads         float64 `json:"reads"`
	Writes        float64 `json:"writes"`
	Deletes       float64 `json:"deletes"`
	Requests      float64 `json:"requests"`
	TotalCost     float64 `json:"totalCost"`
	FirestoreCost float64 `json:"firestoreCost"`
	OpenAICost    float64 `json:"openaiCost"`
	// BarPercent scales TotalCost against the most expensive day.
	BarPercent float64 `json:"barPercent"`
}

// View is everything the dashboard page renders for one range.
type View struct {
	StartDate  string              `json:"startDate"`
	EndDate    string              `json:"endDate"`
	Operations []OperationCard     `json:"operations"`
	TotalCost  string              `json:"totalCost"`
	Costs      []CostLine          `json:"costs"`
	Efficiency Efficiency          `json:"efficiency"`
	Days       []DayPoint          `json:"days"`
	Report     *models.UsageReport `json:"report"`
	RawJSON    string              `json:"-"`
}

// NewView derives the display model. Absent fields are zero and render as
// zero or N/A, never as errors.
func NewView(rng Range, report *models.UsageReport, raw []byte) *View {
	if report == nil {
		report = &models.UsageReport{}
	}
	ops := report.Operations
	costs := report.Billing.Actual.TotalCosts

	total := report.Billing.Actual.TotalCost
	if total == 0 {
		total = costs.ReadCost + costs.WriteCost + costs.DeleteCost
	}

	return &View{
		StartDate: rng.Start.Format(dateLayout),
		EndDate:   rng.LastDay().Format(dateLayout),
		Operations: []OperationCard{
			{Key: "reads", Title: "Read Operations", Count: FormatNumber(ops.Read), Cost: FormatCurrency(costs.ReadCost)},
			{Key: "writes", Title: "Write Operations", Count: FormatNumber(ops.Write), Cost: FormatCurrency(costs.WriteCost)},
			{Key: "deletes", Title: "Delete Operations", Count: FormatNumber(ops.Delete), Cost: FormatCurrency(costs.DeleteCost)},
			{Key: "requests", Title: "Total Requests", Count: FormatNumber(ops.Request), Cost: FormatCurrency(total)},
		},
		TotalCost: FormatCurrency(total),
		Costs: []CostLine{
			{Label: "Reads", Amount: FormatCurrency(costs.ReadCost)},
			{Label: "Writes", Amount: FormatCurrency(costs.WriteCost)},
			{Label: "Deletes", Amount: FormatCurrency(costs.DeleteCost)},
			{Label: "Cloud Function Invocations", Amount: FormatCurrency(costs.CloudFunctionInvocationCost)},
			{Label: "OpenAI", Amount: FormatCurrency(costs.OpenAICost)},
		},
		Efficiency: efficiency(ops, costs),
		Days:       series(report.DailyUsage),
		Report:     report,
		RawJSON:    prettyJSON(raw),
	}
}

func efficiency(ops models.Operations, costs models.CostBreakdown) Efficiency {
	e := Efficiency{ReadWriteRatio: notAvailable, CostPer1KReads: notAvailable, CostPer1KWrites: notAvailable}
	if ops.Read != 0 && ops.Write != 0 {
		e.ReadWriteRatio = strconv.FormatFloat(ops.Read/ops.Write, 'f', 2, 64)
	}
	if ops.Read != 0 {
		e.CostPer1KReads = FormatCurrency(costs.ReadCost / (ops.Read / 1000))
	}
	if ops.Write != 0 {
		e.CostPer1KWrites = FormatCurrency(costs.WriteCost / (ops.Write / 1000))
	}
	return e
}

func series(days []models.DailyUsage) []DayPoint {
	points := make([]DayPoint, 0, len(days))
	var peak float64
	for _, day := range days {
		p := DayPoint{
			Label:         dayLabel(day.Date),
			Date:          day.Date,
			Reads:         truncate2(day.Operations.Read),
			Writes:        truncate2(day.Operations.Write),
			Deletes:       truncate2(day.Operations.Delete),
			Requests:      truncate2(day.Operations.Request),
			TotalCost:     truncate2(day.Costs.TotalDayCost),
			FirestoreCost: truncate2(day.Costs.TotalFirestoreCost),
			OpenAICost:    truncate2(day.Costs.OpenAICost),
		}
		if p.TotalCost > peak {
			peak = p.TotalCost
		}
		points = append(points, p)
	}
	if peak > 0 {
		for i := range points {
			points[i].BarPercent = truncate2(points[i].TotalCost / peak * 100)
		}
	}
	return points
}

// dayLabel renders YYYY-MM-DD (optionally with a time part) as "Jan 2".
func dayLabel(date string) string {
	if len(date) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, date[:len(dateLayout)]); err == nil {
			return t.Format("Jan 2")
		}
	}
	return date
}

func prettyJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
