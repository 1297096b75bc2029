package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Lending
		Audit
		Tasks
		Maintenance
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
		ReadOnly                 bool // Reject writes (stock-taking, migrations)
	}
	Database struct {
		Path string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		JWTSecret       string
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Lending struct {
		LoanPeriod      time.Duration // Default loan length (default: 14 days)
		RenewalPeriod   time.Duration // Extension granted per renewal (default: 14 days)
		MaxActiveLoans  int           // Non-terminal loans a user may hold (default: 5)
		MaxRenewals     int           // Renewals allowed per loan (default: 3)
		FinePerDay      int           // Fine units charged per started overdue day (default: 1)
		LostItemFee     int           // Flat fee added when a loan is marked lost
		ConflictRetries int           // Attempts on optimistic-lock conflicts before giving up
	}
	Audit struct {
		RetentionDays int // Days to keep audit events (default: 90)
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Maintenance struct {
		Enabled               bool
		AuditCleanupSchedule  string // Cron format: "30 3 * * *" = daily at 03:30
		OverdueNoticeSchedule string // Cron format: "0 8 * * *" = daily at 08:00
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("read_only", false)

	// Auth defaults
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")  // 24 hours
	v.SetDefault("auth_jwt_secret", "")           // Auto-generated if empty
	v.SetDefault("auth_token_expiry", "24h")      // Bearer token lifetime
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration

	// Lending policy defaults
	v.SetDefault("lending_loan_period", "336h")    // 14 days
	v.SetDefault("lending_renewal_period", "336h") // 14 days
	v.SetDefault("lending_max_active_loans", 5)
	v.SetDefault("lending_max_renewals", 3)
	v.SetDefault("lending_fine_per_day", 1)
	v.SetDefault("lending_lost_item_fee", 0)
	v.SetDefault("lending_conflict_retries", 3)

	v.SetDefault("audit_retention_days", 90)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("maintenance_enabled", true)
	v.SetDefault("maintenance_audit_cleanup_schedule", "30 3 * * *")
	v.SetDefault("maintenance_overdue_notice_schedule", "0 8 * * *")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			ReadOnly:                 v.GetBool("READ_ONLY"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			JWTSecret:        v.GetString("AUTH_JWT_SECRET"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Lending: Lending{
			LoanPeriod:      v.GetDuration("LENDING_LOAN_PERIOD"),
			RenewalPeriod:   v.GetDuration("LENDING_RENEWAL_PERIOD"),
			MaxActiveLoans:  v.GetInt("LENDING_MAX_ACTIVE_LOANS"),
			MaxRenewals:     v.GetInt("LENDING_MAX_RENEWALS"),
			FinePerDay:      v.GetInt("LENDING_FINE_PER_DAY"),
			LostItemFee:     v.GetInt("LENDING_LOST_ITEM_FEE"),
			ConflictRetries: v.GetInt("LENDING_CONFLICT_RETRIES"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Maintenance: Maintenance{
			Enabled:               v.GetBool("MAINTENANCE_ENABLED"),
			AuditCleanupSchedule:  v.GetString("MAINTENANCE_AUDIT_CLEANUP_SCHEDULE"),
			OverdueNoticeSchedule: v.GetString("MAINTENANCE_OVERDUE_NOTICE_SCHEDULE"),
		},
	}
}

// DefaultLending returns the lending policy used when no environment
// overrides are present.
func DefaultLending() Lending {
	return Lending{
		LoanPeriod:      14 * 24 * time.Hour,
		RenewalPeriod:   14 * 24 * time.Hour,
		MaxActiveLoans:  5,
		MaxRenewals:     3,
		FinePerDay:      1,
		ConflictRetries: 3,
	}
}
