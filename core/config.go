package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
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

	IdentityConfig struct {
		SigningKey    string // HS256 key of the identity provider's session JWT template
		Issuer        string
		WebhookSecret string // whsec_...
	}

	AIConfig struct {
		BaseURL    string
		APIKey     string
		Model      string
		Timeout    time.Duration
		Retries    int
		MaxHistory int
	}

	StorageConfig struct {
		Dir           string
		PublicPath    string
		BaseURL       string
		MaxUploadSize int64
	}

	WorkerConfig struct {
		Concurrency int
		QueueSize   int
		Retries     int
		Backoff     time.Duration
	}

	Config struct {
		AppName         string
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Identity IdentityConfig
		AI       AIConfig
		Storage  StorageConfig
		Worker   WorkerConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file
// and ENV-prefixed environment variables (eg: DEV_DATABASE_HOST).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "TaskSphere")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "b1x!4kq9w*zr$e-8u@0m)c2d#h7n^s5f+l3y(p6j&t=g")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "TaskSphere <noreply@localhost>")

	v.SetDefault("server_host", ":8000")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_readTimeout", 10*time.Second)
	v.SetDefault("server_writeTimeout", 60*time.Second)
	v.SetDefault("server_shutdownTimeout", 10*time.Second)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "tasksphere")
	v.SetDefault("database_user", "tasksphere")
	v.SetDefault("database_password", "tasksphere")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", true)

	v.SetDefault("identity_signingKey", "")
	v.SetDefault("identity_issuer", "")
	v.SetDefault("identity_webhookSecret", "")

	v.SetDefault("ai_baseURL", "https://api.groq.com/openai/v1")
	v.SetDefault("ai_apiKey", "")
	v.SetDefault("ai_model", "llama-3.1-8b-instant")
	v.SetDefault("ai_timeout", 20*time.Second)
	v.SetDefault("ai_retries", 1)
	v.SetDefault("ai_maxHistory", 20)

	v.SetDefault("storage_dir", "uploads")
	v.SetDefault("storage_publicPath", "/media")
	v.SetDefault("storage_baseURL", "http://localhost:8000/media")
	v.SetDefault("storage_maxUploadSize", int64(10<<20))

	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("worker_queueSize", 256)
	v.SetDefault("worker_retries", 2)
	v.SetDefault("worker_backoff", 500*time.Millisecond)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debugHost"),
			ReadTimeout:     v.GetDuration("server_readTimeout"),
			WriteTimeout:    v.GetDuration("server_writeTimeout"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Identity: IdentityConfig{
			SigningKey:    v.GetString("identity_signingKey"),
			Issuer:        v.GetString("identity_issuer"),
			WebhookSecret: v.GetString("identity_webhookSecret"),
		},
		AI: AIConfig{
			BaseURL:    v.GetString("ai_baseURL"),
			APIKey:     v.GetString("ai_apiKey"),
			Model:      v.GetString("ai_model"),
			Timeout:    v.GetDuration("ai_timeout"),
			Retries:    v.GetInt("ai_retries"),
			MaxHistory: v.GetInt("ai_maxHistory"),
		},
		Storage: StorageConfig{
			Dir:           v.GetString("storage_dir"),
			PublicPath:    v.GetString("storage_publicPath"),
			BaseURL:       v.GetString("storage_baseURL"),
			MaxUploadSize: v.GetInt64("storage_maxUploadSize"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker_concurrency"),
			QueueSize:   v.GetInt("worker_queueSize"),
			Retries:     v.GetInt("worker_retries"),
			Backoff:     v.GetDuration("worker_backoff"),
		},
	}
	if conf.Identity.SigningKey == "" {
		conf.Identity.SigningKey = conf.SecretKey
	}
	return conf
}
