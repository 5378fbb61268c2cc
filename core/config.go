package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridAPIKey            string
		PasswordResetTimeoutDelta time.Duration

		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Storage   StorageConfig
		Scheduler SchedulerConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr         string
		Password     string
		DB           int
		Prefix       string
		DashboardTTL time.Duration
	}

	StorageConfig struct {
		Endpoint        string
		AccessKeyID     string
		SecretAccessKey string
		Bucket          string
		Region          string
		UseSSL          bool
		URLExpiry       time.Duration
	}

	SchedulerConfig struct {
		Enabled     bool
		OverdueSpec string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// SetDefaultFromEmail is used by tests that build a Config by hand.
func (c *Config) SetDefaultFromEmail(addr string) {
	c.defaultFromEmail = addr
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` and the environment.
func NewConfig() *Config {
	conf := viper.New()

	// money is rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", env == "DEV")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "SistemaGEM")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "k2v#9dp!q0-7z(w)lg4h^$cejm8s@b1e6rn+t3o_xa5yu*fi")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "SistemaGEM <noreply@localhost>")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	conf.SetDefault("serverHost", "0.0.0.0:8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("shutdownTimeout", 5*time.Second)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", 5432)
	conf.SetDefault("dbName", "sistemagem")
	conf.SetDefault("dbUser", "sistemagem")
	conf.SetDefault("dbPassword", "sistemagem")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("redisAddr", "localhost:6379")
	conf.SetDefault("redisPassword", "")
	conf.SetDefault("redisDB", 0)
	conf.SetDefault("redisPrefix", "sistemagem:")
	conf.SetDefault("dashboardCacheTTL", 5*time.Minute)

	conf.SetDefault("storageEndpoint", "localhost:9000")
	conf.SetDefault("storageAccessKey", "minio")
	conf.SetDefault("storageSecretKey", "minio123")
	conf.SetDefault("storageBucket", "reportes")
	conf.SetDefault("storageRegion", "us-east-1")
	conf.SetDefault("storageUseSSL", false)
	conf.SetDefault("storageURLExpiry", time.Hour)

	conf.SetDefault("schedulerEnabled", true)
	conf.SetDefault("overdueSpec", "@daily")

	conf.SetEnvPrefix(env)
	conf.AutomaticEnv()

	return &Config{
		AppName:                   conf.GetString("appName"),
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           conf.GetString("frontendBaseURL"),
		RollbarToken:              conf.GetString("rollbarToken"),
		SendgridAPIKey:            conf.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			ShutdownTimeout:           conf.GetDuration("shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetInt("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Addr:         conf.GetString("redisAddr"),
			Password:     conf.GetString("redisPassword"),
			DB:           conf.GetInt("redisDB"),
			Prefix:       conf.GetString("redisPrefix"),
			DashboardTTL: conf.GetDuration("dashboardCacheTTL"),
		},
		Storage: StorageConfig{
			Endpoint:        conf.GetString("storageEndpoint"),
			AccessKeyID:     conf.GetString("storageAccessKey"),
			SecretAccessKey: conf.GetString("storageSecretKey"),
			Bucket:          conf.GetString("storageBucket"),
			Region:          conf.GetString("storageRegion"),
			UseSSL:          conf.GetBool("storageUseSSL"),
			URLExpiry:       conf.GetDuration("storageURLExpiry"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     conf.GetBool("schedulerEnabled"),
			OverdueSpec: conf.GetString("overdueSpec"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests; nothing is read from the environment.
func NewTestConfig() *Config {
	decimal.MarshalJSONWithoutQuotes = true
	return &Config{
		AppName:                   "SistemaGEM",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "noreply@localhost",
		Server: ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Redis:     RedisConfig{DashboardTTL: time.Minute},
		Storage:   StorageConfig{Bucket: "reportes", URLExpiry: time.Hour},
		Scheduler: SchedulerConfig{OverdueSpec: "@daily"},
	}
}
