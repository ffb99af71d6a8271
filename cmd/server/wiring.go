package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	adminhandler "resqnet/internal/admin/handler"
	adminmetrics "resqnet/internal/admin/metrics"
	adminservice "resqnet/internal/admin/service"
	agencyhandler "resqnet/internal/agency/handler"
	agencymetrics "resqnet/internal/agency/metrics"
	agencyservice "resqnet/internal/agency/service"
	agencystore "resqnet/internal/agency/store"
	"resqnet/internal/agency/uniqueness"
	authhandler "resqnet/internal/auth/handler"
	authmetrics "resqnet/internal/auth/metrics"
	authservice "resqnet/internal/auth/service"
	"resqnet/internal/auth/store/account"
	"resqnet/internal/auth/store/profile"
	"resqnet/internal/auth/store/roster"
	"resqnet/internal/documents"
	jwttoken "resqnet/internal/jwt_token"
	"resqnet/internal/platform/blob"
	"resqnet/internal/platform/config"
	"resqnet/internal/platform/mail"
	"resqnet/internal/platform/postgres"
	platformredis "resqnet/internal/platform/redis"
	"resqnet/internal/ratelimit/limiter"
	rlmetrics "resqnet/internal/ratelimit/metrics"
	rlmiddleware "resqnet/internal/ratelimit/middleware"
	rlmodels "resqnet/internal/ratelimit/models"
	rlstore "resqnet/internal/ratelimit/store"
	httptransport "resqnet/internal/transport/http"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/audit/publisher"
	auditkafka "resqnet/pkg/platform/audit/store/kafka"
	auditmemory "resqnet/pkg/platform/audit/store/memory"
	auditpostgres "resqnet/pkg/platform/audit/store/postgres"
	"resqnet/pkg/platform/tx"
)

type applicationStore interface {
	agencyservice.Store
	uniqueness.Store
	adminservice.Applications
}

// infra holds every external connection and the adapters built on them.
type infra struct {
	db         *sql.DB
	redis      *platformredis.Client
	kafka      *kgo.Client
	txr        authservice.TxRunner
	mailer     authservice.Mailer
	blobs      documents.BlobStore
	auditStore audit.Store
	accounts   authservice.Accounts
	profiles   authservice.Profiles
	roster     authservice.Roster
	apps       applicationStore
	closers    []func()
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.DemoMode {
		log.Warn("demo mode: using in-memory stores, blobs, mail and audit")
		in.txr = tx.NopRunner{}
		in.mailer = mail.NewRecorder()
		in.blobs = blob.NewMemoryStore("http://localhost"+cfg.Addr+"/blobs", cfg.Blob.Bucket)
		in.auditStore = auditmemory.NewInMemoryStore()
		in.accounts = account.NewInMemory()
		in.profiles = profile.NewInMemory()
		in.roster = roster.NewInMemory()
		in.apps = agencystore.NewInMemory()
	} else if err := in.connect(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		in.redis = rc
		in.closers = append(in.closers, func() { _ = rc.Close() })
	}
	return in, nil
}

func (in *infra) connect(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("RESQNET_DATABASE_URL is required outside demo mode")
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	in.db = db
	in.closers = append(in.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	in.txr = tx.NewRunner(db, cfg.TxTimeout)
	in.accounts = account.NewPostgres(db)
	in.profiles = profile.NewPostgres(db)
	in.roster = roster.NewPostgres(db)
	in.apps = agencystore.NewPostgres(db)

	sender, err := mail.NewSMTPSender(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("configure smtp: %w", err)
	}
	in.mailer = sender

	s3Client, err := blob.NewS3Client(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("configure blob store: %w", err)
	}
	in.blobs = blob.NewS3Store(s3Client, cfg.Blob.Bucket, cfg.Blob.PublicBaseURL)

	in.auditStore = auditpostgres.New(db)
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := auditkafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		in.kafka = client
		in.closers = append(in.closers, client.Close)
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := auditkafka.EnsureTopic(topicCtx, client, cfg.Kafka.Topic, 3, -1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		in.auditStore = auditkafka.New(client, cfg.Kafka.Topic)
	}
	return nil
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Ping
	}
	return checks
}

// Close releases connections in reverse order of opening.
func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}

func buildModules(cfg config.Server, in *infra, reg prometheus.Registerer, log *slog.Logger) []httptransport.Module {
	auditor := publisher.NewPublisher(in.auditStore, publisher.WithLogger(log))
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	authSvc := authservice.New(in.accounts, in.profiles, in.roster, in.mailer, jwtService,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditor),
		authservice.WithMetrics(authmetrics.New(reg)),
		authservice.WithTxRunner(in.txr),
		authservice.WithOTPTTL(cfg.OTPTTL),
		authservice.WithTokenTTL(cfg.TokenTTL),
	)

	docs := documents.New(in.blobs,
		documents.WithLogger(log),
		documents.WithMaxSize(cfg.MaxDocumentSize),
	)
	agencySvc := agencyservice.New(in.apps, uniqueness.New(in.apps), docs,
		agencyservice.WithLogger(log),
		agencyservice.WithAuditPublisher(auditor),
		agencyservice.WithMetrics(agencymetrics.New(reg)),
	)

	adminSvc := adminservice.New(in.apps, in.profiles, in.mailer,
		adminservice.WithLogger(log),
		adminservice.WithAuditPublisher(auditor),
		adminservice.WithMetrics(adminmetrics.New(reg)),
	)

	return []httptransport.Module{
		authhandler.New(authSvc, log, validator,
			authhandler.WithOTPLimiter(buildOTPLimiter(cfg, in, reg, auditor, log).Limit),
		),
		agencyhandler.New(agencySvc, log, validator, cfg.MaxDocumentSize),
		adminhandler.New(adminSvc, log, validator),
	}
}

// buildOTPLimiter counts in Redis when it is configured, falling back to
// per-process buckets while Redis is failing. Without Redis only the
// in-memory buckets are used.
func buildOTPLimiter(cfg config.Server, in *infra, reg prometheus.Registerer, auditor *publisher.Publisher, log *slog.Logger) *rlmiddleware.Middleware {
	m := rlmetrics.New(reg)
	var l *limiter.Limiter
	if in.redis != nil {
		l = limiter.New(rlstore.NewRedis(in.redis.Client),
			limiter.WithFallback(rlstore.NewMemory()),
			limiter.WithLogger(log),
			limiter.WithMetrics(m),
		)
	} else {
		l = limiter.New(rlstore.NewMemory(), limiter.WithLogger(log), limiter.WithMetrics(m))
	}
	return rlmiddleware.New(l, log,
		rlmodels.Limit{Requests: cfg.RateLimit.RequestsPerIP, Window: cfg.RateLimit.Window},
		rlmodels.Limit{Requests: cfg.RateLimit.RequestsPerKey, Window: cfg.RateLimit.Window},
		rlmiddleware.WithDisabled(cfg.RateLimit.Disabled),
		rlmiddleware.WithMetrics(m),
		rlmiddleware.WithAuditPublisher(auditor),
	)
}
