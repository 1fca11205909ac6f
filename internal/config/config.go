// Package config loads runtime settings from the environment (and a .env file
// for local development).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Delivery providers.
const (
	ProviderCloud  = "cloud"
	ProviderTwilio = "twilio"
	ProviderLog    = "log"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is built once in main and passed to every component.
type Config struct {
	Port        string
	Environment string

	WhatsApp WhatsAppConfig
	Twilio   TwilioConfig
	Database DatabaseConfig
	Router   RouterConfig
	Learner  LearnerConfig
	Services ServicesConfig

	DeliveryProvider string
	TemplatesFile    string
}

// WhatsAppConfig holds Cloud API credentials.
type WhatsAppConfig struct {
	AppSecret         string
	VerifyToken       string
	AccessToken       string
	PhoneNumberID     string
	GraphURL          string
	DisableValidation bool
}

type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	WhatsAppFrom  string
	PublicBaseURL string
}

type DatabaseConfig struct {
	Driver                 string
	User                   string
	Password               string
	Name                   string
	Host                   string
	InstanceConnectionName string
	SQLitePath             string
}

// RouterConfig carries the thresholds of the request path.
type RouterConfig struct {
	ClarifyThreshold      float64
	SessionWindow         time.Duration
	MemoryBoostConfidence float64
	MaxQuickReplies       int
	MinMessageInterval    time.Duration
	MaxMessageLength      int
	ClaimLease            time.Duration
	TransactionTTL        time.Duration
	ClassifierModel       string
	ClassifierTimeout     time.Duration
	GeminiAPIKey          string
}

type LearnerConfig struct {
	Window    time.Duration
	Threshold int
	Interval  time.Duration
	Workers   int
}

// ServicesConfig points at fulfillment collaborators.
type ServicesConfig struct {
	QRServiceURL       string
	QRServiceToken     string
	SearchServiceURL   string
	FulfillmentTimeout time.Duration
	JanitorInterval    time.Duration
}

// Default returns a Config populated with defaults only.
func Default() Config {
	return Config{
		Port:        "8080",
		Environment: "production",
		WhatsApp: WhatsAppConfig{
			GraphURL: "https://graph.facebook.com/v20.0",
		},
		Database: DatabaseConfig{
			Driver:     DriverPostgres,
			User:       "postgres",
			Name:       "easymo",
			Host:       "localhost",
			SQLitePath: "easymo.db",
		},
		Router: RouterConfig{
			ClarifyThreshold:      0.4,
			SessionWindow:         24 * time.Hour,
			MemoryBoostConfidence: 0.8,
			MaxQuickReplies:       3,
			MinMessageInterval:    10 * time.Second,
			MaxMessageLength:      2000,
			ClaimLease:            2 * time.Minute,
			TransactionTTL:        time.Hour,
			ClassifierModel:       "gemini-2.0-flash",
			ClassifierTimeout:     4 * time.Second,
		},
		Learner: LearnerConfig{
			Window:    7 * 24 * time.Hour,
			Threshold: 3,
			Interval:  time.Hour,
			Workers:   4,
		},
		Services: ServicesConfig{
			FulfillmentTimeout: 5 * time.Second,
			JanitorInterval:    10 * time.Minute,
		},
		DeliveryProvider: ProviderLog,
	}
}

// Load reads .env (when present) and the environment on top of Default.
func Load() (Config, error) {
	// Cloud deployments inject the environment directly
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			_ = godotenv.Load("environments/.env.development")
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	p := parser{getenv: getenv}

	p.str("PORT", &cfg.Port)
	p.str("ENVIRONMENT", &cfg.Environment)

	p.str("WHATSAPP_APP_SECRET", &cfg.WhatsApp.AppSecret)
	p.str("WHATSAPP_VERIFY_TOKEN", &cfg.WhatsApp.VerifyToken)
	p.str("WHATSAPP_ACCESS_TOKEN", &cfg.WhatsApp.AccessToken)
	p.str("WHATSAPP_PHONE_ID", &cfg.WhatsApp.PhoneNumberID)
	p.str("WHATSAPP_GRAPH_URL", &cfg.WhatsApp.GraphURL)
	p.boolean("DISABLE_WEBHOOK_VALIDATION", &cfg.WhatsApp.DisableValidation)

	p.str("TWILIO_ACCOUNT_SID", &cfg.Twilio.AccountSID)
	p.str("TWILIO_AUTH_TOKEN", &cfg.Twilio.AuthToken)
	p.str("TWILIO_WHATSAPP_FROM", &cfg.Twilio.WhatsAppFrom)
	p.str("PUBLIC_BASE_URL", &cfg.Twilio.PublicBaseURL)

	p.str("DB_DRIVER", &cfg.Database.Driver)
	p.str("DB_USER", &cfg.Database.User)
	p.str("DB_PASS", &cfg.Database.Password)
	p.str("DB_NAME", &cfg.Database.Name)
	p.str("DB_HOST", &cfg.Database.Host)
	p.str("INSTANCE_CONNECTION_NAME", &cfg.Database.InstanceConnectionName)
	p.str("SQLITE_PATH", &cfg.Database.SQLitePath)

	p.float("CLARIFY_THRESHOLD", &cfg.Router.ClarifyThreshold)
	p.duration("SESSION_WINDOW", &cfg.Router.SessionWindow)
	p.float("MEMORY_BOOST_CONFIDENCE", &cfg.Router.MemoryBoostConfidence)
	p.integer("MAX_QUICK_REPLIES", &cfg.Router.MaxQuickReplies)
	p.duration("MIN_MESSAGE_INTERVAL", &cfg.Router.MinMessageInterval)
	p.integer("MAX_MESSAGE_LENGTH", &cfg.Router.MaxMessageLength)
	p.duration("INBOUND_CLAIM_LEASE", &cfg.Router.ClaimLease)
	p.duration("TRANSACTION_TTL", &cfg.Router.TransactionTTL)
	p.str("CLASSIFIER_MODEL", &cfg.Router.ClassifierModel)
	p.duration("CLASSIFIER_TIMEOUT", &cfg.Router.ClassifierTimeout)
	p.str("GEMINI_API_KEY", &cfg.Router.GeminiAPIKey)

	p.duration("LEARNER_WINDOW", &cfg.Learner.Window)
	p.integer("LEARNER_THRESHOLD", &cfg.Learner.Threshold)
	p.duration("LEARNER_INTERVAL", &cfg.Learner.Interval)
	p.integer("LEARNER_WORKERS", &cfg.Learner.Workers)

	p.str("QR_SERVICE_URL", &cfg.Services.QRServiceURL)
	p.str("QR_SERVICE_TOKEN", &cfg.Services.QRServiceToken)
	p.str("SEARCH_SERVICE_URL", &cfg.Services.SearchServiceURL)
	p.duration("FULFILLMENT_TIMEOUT", &cfg.Services.FulfillmentTimeout)
	p.duration("JANITOR_INTERVAL", &cfg.Services.JanitorInterval)

	p.str("DELIVERY_PROVIDER", &cfg.DeliveryProvider)
	p.str("TEMPLATES_FILE", &cfg.TemplatesFile)

	if len(p.errs) > 0 {
		return cfg, errors.Join(p.errs...)
	}
	return cfg, cfg.Validate()
}

// IsDevelopment reports whether development-only routes and relaxed checks apply.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate checks ranges and required combinations.
func (c Config) Validate() error {
	var errs []error
	if c.Router.ClarifyThreshold < 0 || c.Router.ClarifyThreshold > 1 {
		errs = append(errs, fmt.Errorf("CLARIFY_THRESHOLD must be within [0,1], got %v", c.Router.ClarifyThreshold))
	}
	if c.Router.MemoryBoostConfidence < 0 || c.Router.MemoryBoostConfidence > 1 {
		errs = append(errs, fmt.Errorf("MEMORY_BOOST_CONFIDENCE must be within [0,1], got %v", c.Router.MemoryBoostConfidence))
	}
	if c.Router.MaxQuickReplies <= 0 {
		errs = append(errs, fmt.Errorf("MAX_QUICK_REPLIES must be positive"))
	}
	if c.Router.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.Router.ClaimLease <= 0 {
		errs = append(errs, fmt.Errorf("INBOUND_CLAIM_LEASE must be positive"))
	}
	if c.Learner.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("LEARNER_THRESHOLD must be positive"))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}
	switch c.DeliveryProvider {
	case ProviderLog:
	case ProviderCloud:
		if c.WhatsApp.AccessToken == "" || c.WhatsApp.PhoneNumberID == "" {
			errs = append(errs, fmt.Errorf("cloud delivery requires WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_ID"))
		}
	case ProviderTwilio:
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.WhatsAppFrom == "" {
			errs = append(errs, fmt.Errorf("twilio delivery requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DELIVERY_PROVIDER %q", c.DeliveryProvider))
	}
	return errors.Join(errs...)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) lookup(key string) (string, bool) {
	v := strings.TrimSpace(p.getenv(key))
	return v, v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) boolean(key string, dst *bool) {
	if v, ok := p.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (p *parser) integer(key string, dst *int) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (p *parser) float(key string, dst *float64) {
	if v, ok := p.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	if v, ok := p.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
