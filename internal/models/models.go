package models

import "time"

type Session struct {
	ID              string
	IsAuthenticated bool
	UserName        string
	UserEmail       string
	AuthToken       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type IPAddresses struct {
	PublicIP string `json:"publicIp"`
	LocalIP  string `json:"localIp"`
}

type AttributionEvent struct {
	RefererID   string      `json:"refererId"`
	DeviceName  string      `json:"deviceName"`
	IPAddresses IPAddresses `json:"ipAddresses"`
}

type TimeRange struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type Operations struct {
	Read    float64 `json:"read"`
	Write   float64 `json:"write"`
	Delete  float64 `json:"delete"`
	Request float64 `json:"request"`
}

type CostBreakdown struct {
	ReadCost                    float64 `json:"readCost"`
	WriteCost                   float64 `json:"writeCost"`
	DeleteCost                  float64 `json:"deleteCost"`
	CloudFunctionInvocationCost float64 `json:"cloudFunctionInvocationCost"`
	OpenAICost                  float64 `json:"openaiCost"`
}

type ActualBilling struct {
	TotalCost  float64       `json:"totalCost"`
	TotalCosts CostBreakdown `json:"totalCosts"`
}

type Billing struct {
	Actual ActualBilling `json:"actual"`
}

type DayCosts struct {
	TotalDayCost       float64 `json:"totalDayCost"`
	TotalFirestoreCost float64 `json:"totalFirestoreCost"`
	OpenAICost         float64 `json:"openaiCost"`
}

type DailyUsage struct {
	Date       string     `json:"date"`
	Operations Operations `json:"operations"`
	Costs      DayCosts   `json:"costs"`
}

type UsageReport struct {
	TimeRange  TimeRange    `json:"timeRange"`
	Operations Operations   `json:"operations"`
	Billing    Billing      `json:"billing"`
	DailyUsage []DailyUsage `json:"dailyUsage"`
}

type PromoterStatus string

const (
	PromoterStatusActive   PromoterStatus = "active"
	PromoterStatusInactive PromoterStatus = "inactive"
	PromoterStatusAll      PromoterStatus = "all"
)

type Promoter struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Platforms   []string       `json:"platforms"`
	Code        string         `json:"code"`
	PromoLink   string         `json:"promoLink"`
	PromoClicks int64          `json:"promoClicks"`
	Installs    int64          `json:"installs"`
	Subscribers int64          `json:"subscribers"`
	Status      PromoterStatus `json:"status,omitempty"`
}

type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

type PromoterPage struct {
	Promoters  []Promoter `json:"promoters"`
	Pagination Pagination `json:"pagination"`
}

type ContactMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
