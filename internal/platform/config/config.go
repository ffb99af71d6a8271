package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	platformstrings "resqnet/pkg/platform/strings"
)

// Server captures process level configuration. Every field can be set through a
// RESQNET_-prefixed environment variable, e.g. RESQNET_DATABASE_URL.
type Server struct {
	Addr            string
	LogLevel        string
	ShutdownTimeout time.Duration
	// DemoMode swaps Postgres, S3, SMTP and Kafka for in-memory adapters.
	DemoMode bool

	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	DatabaseURL string
	TxTimeout   time.Duration

	Redis     RedisConfig
	Blob      BlobConfig
	SMTP      SMTPConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig

	OTPTTL          time.Duration
	MaxDocumentSize int64
}

// RedisConfig configures the optional Redis connection used for rate limiting.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BlobConfig configures the S3-compatible document bucket.
type BlobConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
}

// SMTPConfig configures outbound email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// KafkaConfig configures the audit stream. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// RateLimitConfig bounds the public OTP endpoints.
type RateLimitConfig struct {
	Disabled       bool
	RequestsPerIP  int
	RequestsPerKey int
	Window         time.Duration
}

// FromEnv builds the Server config from environment variables so main stays lean.
func FromEnv() Server {
	v := viper.New()
	v.SetEnvPrefix("RESQNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return Server{
		Addr:            v.GetString("addr"),
		LogLevel:        v.GetString("log_level"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		DemoMode:        v.GetBool("demo_mode"),
		JWTSigningKey:   v.GetString("jwt_signing_key"),
		JWTIssuer:       v.GetString("jwt_issuer"),
		TokenTTL:        v.GetDuration("token_ttl"),
		DatabaseURL:     v.GetString("database_url"),
		TxTimeout:       v.GetDuration("tx_timeout"),
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Blob: BlobConfig{
			Endpoint:      v.GetString("blob.endpoint"),
			Region:        v.GetString("blob.region"),
			Bucket:        v.GetString("blob.bucket"),
			AccessKey:     v.GetString("blob.access_key"),
			SecretKey:     v.GetString("blob.secret_key"),
			PublicBaseURL: v.GetString("blob.public_base_url"),
			UsePathStyle:  v.GetBool("blob.use_path_style"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
		Kafka: KafkaConfig{
			Brokers:  platformstrings.SplitTrim(v.GetString("kafka.brokers"), ","),
			Topic:    v.GetString("kafka.topic"),
			ClientID: v.GetString("kafka.client_id"),
		},
		RateLimit: RateLimitConfig{
			Disabled:       v.GetBool("ratelimit.disabled"),
			RequestsPerIP:  v.GetInt("ratelimit.requests_per_ip"),
			RequestsPerKey: v.GetInt("ratelimit.requests_per_key"),
			Window:         v.GetDuration("ratelimit.window"),
		},
		OTPTTL:          v.GetDuration("otp_ttl"),
		MaxDocumentSize: v.GetInt64("max_document_size"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("demo_mode", false)
	// Development default; production deployments must override it.
	v.SetDefault("jwt_signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("jwt_issuer", "resqnet")
	v.SetDefault("token_ttl", time.Hour)
	v.SetDefault("database_url", "")
	v.SetDefault("tx_timeout", 5*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.bucket", "agency-docs")
	v.SetDefault("blob.access_key", "")
	v.SetDefault("blob.secret_key", "")
	v.SetDefault("blob.public_base_url", "")
	v.SetDefault("blob.use_path_style", true)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@resqnet.local")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "resqnet.audit")
	v.SetDefault("kafka.client_id", "resqnet")

	v.SetDefault("ratelimit.disabled", false)
	v.SetDefault("ratelimit.requests_per_ip", 30)
	v.SetDefault("ratelimit.requests_per_key", 5)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("otp_ttl", 10*time.Minute)
	v.SetDefault("max_document_size", int64(10<<20))
}
