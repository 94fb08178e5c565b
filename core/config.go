package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		WorkDir      string
		RollbarToken string

		Server   ServerConfig
		Backend  BackendConfig
		Payment  PaymentConfig
		Checkout CheckoutConfig
		Database DatabaseConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		CookieName      string
		CookieSecure    bool
		ShutdownTimeout time.Duration
		ViewTTL         time.Duration
		SessionCacheTTL time.Duration
		DefaultPageSize int
	}

	BackendConfig struct {
		BaseURL string
		Timeout time.Duration
		// ServiceToken authenticates background jobs such as the checkout sweeper.
		ServiceToken string
	}

	PaymentConfig struct {
		Provider      string // "proxy" | "stripe"
		Currency      string
		StripeKey     string
		StripePubKey  string
		ReturnBaseURL string
	}

	CheckoutConfig struct {
		AbandonAfter  time.Duration
		SweepInterval time.Duration
	}

	EmailConfig struct {
		SendgridAPIKey string // emails are printed to stdout when empty
		SendgridHost   string
		FromAddress    string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from defaults, `config/.env.<env>` when present, then the environment;
// env keys are prefixed with the env name, e.g. `PROD_BACKEND_BASEURL`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetDefault("build", "dev")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Masomo")
	v.SetDefault("workDir", Getwd())
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.cookieName", "masomo_token")
	v.SetDefault("server.cookieSecure", env == "PROD" || env == "QA")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.viewTTL", 30*time.Minute)
	v.SetDefault("server.sessionCacheTTL", 5*time.Minute)
	v.SetDefault("server.defaultPageSize", 25)

	v.SetDefault("backend.baseURL", "http://localhost:8000/api")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.serviceToken", "")

	v.SetDefault("payment.provider", "proxy")
	v.SetDefault("payment.currency", "usd")
	v.SetDefault("payment.stripeKey", "")
	v.SetDefault("payment.stripePubKey", "")
	v.SetDefault("payment.returnBaseURL", "http://localhost:8080")

	v.SetDefault("checkout.abandonAfter", 2*time.Hour)
	v.SetDefault("checkout.sweepInterval", 10*time.Minute)

	v.SetDefault("email.sendgridAPIKey", "")
	v.SetDefault("email.sendgridHost", "https://api.sendgrid.com")
	v.SetDefault("email.fromAddress", "noreply@masomo.cd")

	v.SetDefault("database.engine", "postgres") // postgres | inmem
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo_portal")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env != "PROD")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(v.GetString("workDir"), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	return conf
}
