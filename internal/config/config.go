package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	SessionStoreMySQL  = "mysql"
	SessionStoreMemory = "memory"

	LoginModeDemo   = "demo"
	LoginModeRemote = "remote"
)

// Config aggregates runtime configuration for the web server and its collaborators.
type Config struct {
	Environment string `envconfig:"ENV" default:"production"`
	ListenAddr  string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	PublicURL   string `envconfig:"PUBLIC_URL" default:"https://capcalai.com"`

	SaveAppInstallURL string `envconfig:"SAVE_APP_INSTALL_URL" default:"https://saveappinstall-zbhi5gq6gq-uc.a.run.app"`
	UsageReportURL    string `envconfig:"USAGE_REPORT_URL" default:"https://getfirestoreusage-zbhi5gq6gq-uc.a.run.app"`
	FunctionsBaseURL  string `envconfig:"FUNCTIONS_BASE_URL" default:"https://us-central1-calorie-tracker-app-87bcb.cloudfunctions.net"`
	SendEmailPath     string `envconfig:"SEND_EMAIL_PATH" default:"/sendEmailToUser"`
	LoginPath         string `envconfig:"LOGIN_PATH" default:"/loginWithPassword"`
	ListPromotersPath string `envconfig:"LIST_PROMOTERS_PATH" default:"/listPromoters"`
	SavePromoterPath  string `envconfig:"SAVE_PROMOTER_PATH" default:"/savePromoter"`

	HTTPTimeoutSeconds int `envconfig:"HTTP_TIMEOUT_SECONDS" default:"15"`
	RetryAttempts      int `envconfig:"HTTP_RETRY_ATTEMPTS" default:"3"`
	RetryDelayMillis   int `envconfig:"HTTP_RETRY_DELAY_MS" default:"250"`

	AppID            string   `envconfig:"APP_ID" default:"com.mafooly.caloriai"`
	AndroidPackage   string   `envconfig:"ANDROID_PACKAGE" default:"com.mafooly.caloriai"`
	IOSAppID         string   `envconfig:"IOS_APP_ID" default:"6747341703"`
	IPLookupServices []string `envconfig:"IP_LOOKUP_SERVICES" default:"https://api.ipify.org?format=json,http://ip-api.com/json,https://ipapi.co/json"`
	IPLookupFallback bool     `envconfig:"IP_LOOKUP_FALLBACK" default:"false"`
	LocalIPDiscovery bool     `envconfig:"LOCAL_IP_DISCOVERY" default:"false"`
	LocalIPStub      string   `envconfig:"LOCAL_IP_STUB" default:"123456789"`

	AttributionTimeoutMillis int `envconfig:"ATTRIBUTION_TIMEOUT_MS" default:"4000"`

	PromoBaseURL      string `envconfig:"PROMO_BASE_URL" default:"https://capcalai.com/com.mafooly.caloriai/invite/"`
	PromoCodePrefix   string `envconfig:"PROMO_CODE_PREFIX" default:"PROMO"`
	PromotersPageSize int    `envconfig:"PROMOTERS_PAGE_SIZE" default:"20"`

	ContactTo            string  `envconfig:"CONTACT_TO" default:"marketing@capcalai.com"`
	ContactFrom          string  `envconfig:"CONTACT_FROM" default:"marketing@capcalai.com"`
	ContactSubject       string  `envconfig:"CONTACT_SUBJECT" default:"New Support Request from CapCal AI"`
	ContactRatePerMinute float64 `envconfig:"CONTACT_RATE_PER_MINUTE" default:"6"`
	ContactRateBurst     int     `envconfig:"CONTACT_RATE_BURST" default:"3"`

	LoginMode string `envconfig:"LOGIN_MODE" default:"demo"`

	SessionStore      string `envconfig:"SESSION_STORE" default:"mysql"`
	SessionCookieName string `envconfig:"SESSION_COOKIE_NAME" default:"capcal_session"`
	SessionMaxAgeDays int    `envconfig:"SESSION_MAX_AGE_DAYS" default:"30"`
	SecureCookies     bool   `envconfig:"SECURE_COOKIES" default:"true"`
	CSRFKey           string `envconfig:"CSRF_KEY"`
	MySQLDSN          string `envconfig:"MYSQL_DSN"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"https://capcalai.com"`
	TrustProxyHeaders  bool     `envconfig:"TRUST_PROXY_HEADERS" default:"true"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `envconfig:"TELEGRAM_NOTIFY_CHAT_ID"`

	ReportArchiveEnabled bool   `envconfig:"REPORT_ARCHIVE_ENABLED" default:"false"`
	S3Endpoint           string `envconfig:"S3_ENDPOINT"`
	S3Region             string `envconfig:"S3_REGION"`
	S3AccessKey          string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey          string `envconfig:"S3_SECRET_KEY"`
	S3Bucket             string `envconfig:"S3_BUCKET"`
	S3PublicBaseURL      string `envconfig:"S3_PUBLIC_BASE_URL"`
	S3UsePathStyle       bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	S3Prefix             string `envconfig:"S3_PREFIX" default:"usage-reports"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from an optional env file and the environment.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c Config) Validate() error {
	var missing []string
	if c.SessionStore == SessionStoreMySQL && c.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if c.TelegramChatID != 0 && c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.ReportArchiveEnabled {
		if c.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if c.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if c.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if c.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if c.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	switch c.SessionStore {
	case SessionStoreMySQL, SessionStoreMemory:
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}
	switch c.LoginMode {
	case LoginModeDemo, LoginModeRemote:
	default:
		return fmt.Errorf("unsupported LOGIN_MODE %q", c.LoginMode)
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return fmt.Errorf("CSRF_KEY must be exactly 32 bytes, got %d", len(c.CSRFKey))
	}
	if c.PromotersPageSize <= 0 {
		return fmt.Errorf("PROMOTERS_PAGE_SIZE must be positive")
	}
	if c.AttributionTimeoutMillis <= 0 {
		return fmt.Errorf("ATTRIBUTION_TIMEOUT_MS must be positive")
	}
	return nil
}

// RequestTimeout is the per-attempt timeout for collaborator calls.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// RetryDelay is the initial delay between collaborator call attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// AttributionTimeout bounds the work done for one invite visit before the
// redirect is written.
func (c Config) AttributionTimeout() time.Duration {
	return time.Duration(c.AttributionTimeoutMillis) * time.Millisecond
}

// LookupServices returns the public IP lookup services, or nil unless
// IP_LOOKUP_FALLBACK is set. Called from the server they report the egress
// address of this host, so they only make sense behind a NAT shared with
// visitors.
func (c Config) LookupServices() []string {
	if !c.IPLookupFallback {
		return nil
	}
	return c.IPLookupServices
}

// SessionMaxAge is the lifetime of the session cookie.
func (c Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeDays) * 24 * time.Hour
}

// FunctionURL joins a cloud function path onto the functions base URL.
func (c Config) FunctionURL(path string) string {
	return strings.TrimRight(c.FunctionsBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Config) normalize() {
	c.SaveAppInstallURL = normalizeBaseURL(c.SaveAppInstallURL)
	c.UsageReportURL = normalizeBaseURL(c.UsageReportURL)
	c.FunctionsBaseURL = normalizeBaseURL(c.FunctionsBaseURL)
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.LoginMode = strings.ToLower(strings.TrimSpace(c.LoginMode))
	c.AppID = strings.Trim(strings.TrimSpace(c.AppID), "/")
	c.PromoCodePrefix = strings.ToUpper(strings.TrimSpace(c.PromoCodePrefix))

	services := c.IPLookupServices[:0]
	for _, s := range c.IPLookupServices {
		if s = strings.TrimSpace(s); s != "" {
			services = append(services, s)
		}
	}
	c.IPLookupServices = services
}

// normalizeBaseURL defaults a missing scheme to https and drops trailing slashes.
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		host, path, _ := strings.Cut(parsed.Path, "/")
		parsed.Host = host
		parsed.Path = ""
		if path != "" {
			parsed.Path = "/" + path
		}
	}

	return strings.TrimRight(parsed.String(), "/")
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		// Real environment variables win over the file.
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
