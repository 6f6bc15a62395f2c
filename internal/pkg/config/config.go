package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/wandernook/wandernook/internal/pkg/env"
)

const (
	PlanMonthlyAutopay = "monthly-autopay"
	PlanAnnualAutopay  = "annual-autopay"
)

// Config is built once at startup and handed to every component.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Razorpay RazorpayConfig
	Shopify  ShopifyConfig
	Plans    map[string]PlanMapping
	Mail     MailConfig
	Admin    AdminConfig
	Invoice  InvoiceConfig
	Archive  ArchiveConfig
	Captcha  CaptchaConfig
	Jobs     JobsConfig
	Metrics  MetricsConfig
	Leads    LeadsConfig
}

type AppConfig struct {
	Env     string
	Host    string
	Port    string
	SiteURL string
}

func (a AppConfig) IsDev() bool {
	return a.Env == "dev"
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

type ShopifyConfig struct {
	Domain           string
	AdminAccessToken string
	WebhookSecret    string
	APIVersion       string
}

// PlanMapping links an internal plan id to the external gateway plan and the
// commerce variant sold for it.
type PlanMapping struct {
	RazorpayPlanID   string
	ShopifyVariantID string
}

type MailConfig struct {
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPass      string
	SMTPSecure    bool
	ResendAPIKey  string
	ResendBaseURL string
	From          string
}

type AdminConfig struct {
	Password   string
	CronSecret string
	SessionTTL time.Duration
}

type InvoiceConfig struct {
	Company     CompanyProfile
	BrandLogo   string
	StampLogo   string
	PublicDir   string
	Timezone    string
	PDFFontPath string
	PDFCacheTTL time.Duration
}

// CompanyProfile is the issuer block printed on every invoice.
type CompanyProfile struct {
	CompanyName       string
	TradeName         string
	AddressLines      []string
	Email             string
	Phone             string
	GSTNumber         string
	BankName          string
	BankBranch        string
	BankAccountNumber string
	BankAccountType   string
	BankIFSC          string
}

type ArchiveConfig struct {
	Enabled         bool
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
}

type CaptchaConfig struct {
	HCaptchaSecret string
}

type JobsConfig struct {
	Workers int
}

// LeadsConfig drives the sample issue form. SubmitURL is the spreadsheet
// endpoint the contact form is forwarded to.
type LeadsConfig struct {
	SampleDownloadPath string
	SubmitURL          string
	DownloadHosts      []string
}

type MetricsConfig struct {
	User     string
	Password string
}

// Load reads the process environment (and the .env file loaded by
// env.SetupEnvFile) into a Config.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Env:     env.GetEnv("APP_ENV", "prod"),
			Host:    env.GetEnv("APP_HOST", "localhost"),
			Port:    env.GetEnv("APP_PORT", "4000"),
			SiteURL: NormalizeSiteURL(env.FirstEnv("", "NEXT_PUBLIC_SITE_URL", "SITE_URL")),
		},
		Database: DatabaseConfig{
			User:     env.GetEnv("DB_USER", "wandernook"),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			Name:     env.GetEnv("DB_NAME", "wandernook"),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		Razorpay: RazorpayConfig{
			KeyID:         env.GetEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     env.GetEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: env.GetEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			BaseURL:       env.GetEnv("RAZORPAY_API_BASE_URL", "https://api.razorpay.com/v1"),
		},
		Shopify: ShopifyConfig{
			Domain:           env.FirstEnv("", "SHOPIFY_DOMAIN", "NEXT_PUBLIC_SHOPIFY_DOMAIN"),
			AdminAccessToken: env.GetEnv("SHOPIFY_ADMIN_ACCESS_TOKEN", ""),
			WebhookSecret:    env.GetEnv("SHOPIFY_WEBHOOK_SECRET", ""),
			APIVersion:       env.FirstEnv("2025-07", "SHOPIFY_ADMIN_API_VERSION"),
		},
		Plans: map[string]PlanMapping{
			PlanMonthlyAutopay: {
				RazorpayPlanID:   env.FirstEnv("", "RAZORPAY_MONTHLY_PLAN_ID", "RAZORPAY_PLAN_ID_MONTHLY"),
				ShopifyVariantID: env.FirstEnv("", "SHOPIFY_MONTHLY_VARIANT_ID", "NEXT_PUBLIC_MONTHLY_VARIANT_ID"),
			},
			PlanAnnualAutopay: {
				RazorpayPlanID:   env.FirstEnv("", "RAZORPAY_ANNUAL_PLAN_ID", "RAZORPAY_PLAN_ID_ANNUAL"),
				ShopifyVariantID: env.FirstEnv("", "SHOPIFY_ANNUAL_VARIANT_ID", "NEXT_PUBLIC_ANNUAL_VARIANT_ID"),
			},
		},
		Mail: MailConfig{
			SMTPHost:      env.GetEnv("SMTP_HOST", ""),
			SMTPPort:      env.GetEnv("SMTP_PORT", ""),
			SMTPUser:      env.GetEnv("SMTP_USER", ""),
			SMTPPass:      env.GetEnv("SMTP_PASS", ""),
			SMTPSecure:    strings.EqualFold(env.GetEnv("SMTP_SECURE", ""), "true"),
			ResendAPIKey:  env.GetEnv("RESEND_API_KEY", ""),
			ResendBaseURL: env.GetEnv("RESEND_API_BASE_URL", "https://api.resend.com"),
			From:          env.FirstEnv("support@wondernook.in", "MAIL_FROM", "RESEND_FROM_EMAIL"),
		},
		Admin: AdminConfig{
			Password:   env.GetEnv("ADMIN_PASSWORD", ""),
			CronSecret: env.GetEnv("CRON_SECRET", ""),
			SessionTTL: 8 * time.Hour,
		},
		Invoice: InvoiceConfig{
			Company:     LoadCompanyProfile(),
			BrandLogo:   env.FirstEnv("/wander-logo.png", "INVOICE_BRAND_LOGO_URL", "INVOICE_SECONDARY_LOGO_URL"),
			StampLogo:   env.FirstEnv("/wander-stamps-logo.png", "INVOICE_STAMP_LOGO_URL", "INVOICE_PRIMARY_LOGO_URL"),
			PublicDir:   env.GetEnv("PUBLIC_DIR", "./public"),
			Timezone:    env.GetEnv("INVOICE_TIMEZONE", "Asia/Kolkata"),
			PDFFontPath: env.GetEnv("INVOICE_PDF_FONT_PATH", ""),
			PDFCacheTTL: time.Hour,
		},
		Archive: ArchiveConfig{
			Enabled:         strings.EqualFold(env.GetEnv("S3_ARCHIVE_ENABLED", "false"), "true"),
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "ap-south-1"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},
		Captcha: CaptchaConfig{
			HCaptchaSecret: env.GetEnv("HCAPTCHA_SECRET", ""),
		},
		Jobs: JobsConfig{
			Workers: atoiDefault(env.GetEnv("JOB_WORKERS", ""), 2),
		},
		Metrics: MetricsConfig{
			User:     env.GetEnv("METRICS_USER", ""),
			Password: env.GetEnv("METRICS_PASSWORD", ""),
		},
		Leads: LeadsConfig{
			SampleDownloadPath: env.GetEnv("SAMPLE_ISSUE_PATH", "/pdf/Wander Nook Launch Issue.pdf"),
			SubmitURL:          env.GetEnv("LEADS_SUBMIT_URL", ""),
			DownloadHosts:      splitList(env.GetEnv("SAMPLE_DOWNLOAD_HOSTS", "")),
		},
	}
}

// LoadCompanyProfile returns the invoice issuer profile with the registered
// business details as defaults.
func LoadCompanyProfile() CompanyProfile {
	lines := splitLines(env.GetEnv("INVOICE_COMPANY_ADDRESS_LINES", ""))
	if len(lines) == 0 {
		lines = []string{
			"2nd Floor, New Building",
			"Shastri Hall, Nana Chowk",
			"Grant Road (W), Mumbai 400007",
		}
	}
	return CompanyProfile{
		CompanyName:       env.GetEnv("INVOICE_COMPANY_NAME", "Wander Stamps"),
		TradeName:         env.GetEnv("INVOICE_TRADE_NAME", "Wander Stamps"),
		AddressLines:      lines,
		Email:             env.GetEnv("INVOICE_COMPANY_EMAIL", "support@wondernook.in"),
		Phone:             env.GetEnv("INVOICE_COMPANY_PHONE", "+91 98200 67074"),
		GSTNumber:         env.GetEnv("INVOICE_GST_NUMBER", "27FQTPS4280J2ZU"),
		BankName:          env.GetEnv("INVOICE_BANK_NAME", "ICICI Bank"),
		BankBranch:        env.GetEnv("INVOICE_BANK_BRANCH", "Nana Chowk"),
		BankAccountNumber: env.GetEnv("INVOICE_BANK_ACCOUNT_NUMBER", "121605000810"),
		BankAccountType:   env.GetEnv("INVOICE_BANK_ACCOUNT_TYPE", "Current"),
		BankIFSC:          env.GetEnv("INVOICE_BANK_IFSC", "ICIC0001216"),
	}
}

// NormalizeSiteURL prepends https:// when no scheme is given and trims
// trailing slashes. An empty value yields the local dev URL.
func NormalizeSiteURL(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "http://localhost:3000"
	}
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		v = "https://" + v
	}
	return strings.TrimRight(v, "/")
}

func splitLines(v string) []string {
	// .env files usually carry "\n" escapes rather than real newlines
	v = strings.ReplaceAll(v, `\n`, "\n")
	var out []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func atoiDefault(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
