package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	driverPostgres = "pgx"
	driverMongo    = "mongo"

	defaultConfigPath = "./config/config.yaml"
	pingTimeout       = 5 * time.Second
)

func (a *App) initConfig() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.NewViper(path)
	if err != nil {
		return err
	}
	if tz := cfg.GetString("app.tz"); tz != "" {
		if err := os.Setenv("TZ", tz); err != nil {
			return fmt.Errorf("set TZ: %w", err)
		}
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
	return nil
}

func (a *App) initInstrument() error {
	c := a.config
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          c.GetBool("instrument.enabled"),
		ServiceName:      c.GetString("instrument.service_name"),
		ServiceVersion:   c.GetString("instrument.service_version"),
		Environment:      c.GetString("instrument.env"),
		OTLPEndpoint:     c.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       c.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: c.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  c.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       c.GetArray("instrument.log_mask_fields"),
		LogLevel:         c.GetString("instrument.log_level"),
	})
	if err != nil {
		return err
	}

	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
	return nil
}

func (a *App) initLibraries() error {
	v, err := validator.NewV10Validator()
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", a.config.GetInt64("app.node_id"), err)
	}

	a.validator = v
	a.uid = snow
	a.uuid = uid.NewUUID()
	a.clock = clock.New()
	a.otp = otp.NewNumeric(otp.DefaultDigits)
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	return nil
}

func (a *App) initDatabase() error {
	switch driver := strings.ToLower(strings.TrimSpace(a.config.GetString("database.driver"))); driver {
	case driverMongo:
		return a.initMongo()
	case driverPostgres, "":
		return a.initPostgres()
	default:
		return fmt.Errorf("unknown database.driver %q", driver)
	}
}

func (a *App) initPostgres() error {
	pc, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		return fmt.Errorf("parse database.url: %w", err)
	}
	pc.MaxConns = a.config.GetInt32("database.pool.max_conns")
	pc.MinConns = a.config.GetInt32("database.pool.min_conns")
	pc.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	pc.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	pc.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, pc)
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	a.onClose("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	a.pool = pool
	return nil
}

func (a *App) initMongo() error {
	opts := options.Client().
		ApplyURI(a.config.GetString("database.mongo.uri")).
		SetAppName(a.config.GetString("instrument.service_name"))
	if n := a.config.GetInt("database.mongo.max_pool_size"); n > 0 {
		opts.SetMaxPoolSize(uint64(n))
	}
	if d := a.config.GetSecond("database.mongo.timeout_seconds"); d > 0 {
		opts.SetTimeout(d)
	}

	client, err := mongo.Connect(a.ctx, opts)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	a.onClose("mongo", client.Disconnect)

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	a.mongoClient = client
	a.mongoDB = client.Database(a.config.GetString("database.mongo.database"))
	return nil
}

// initRedis is optional. Without redis.url the limiters and the purge lock
// stay in process memory.
func (a *App) initRedis() error {
	url := strings.TrimSpace(a.config.GetString("redis.url"))
	if url == "" {
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("parse redis.url: %w", err)
	}
	rdb := redis.NewClient(opt)
	a.onClose("redis", func(context.Context) error { return rdb.Close() })

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	a.redis = rdb
	return nil
}

func (a *App) initRateLimit() error {
	var err error
	if a.httpLimiter, err = a.newLimiter("app.server.rate_limit", "otpgate:http:"); err != nil {
		return err
	}
	a.issueLimiter, err = a.newLimiter("modules.otp.issue_rate", "otpgate:issue:")
	return err
}

// newLimiter returns nil when the rate at key is empty, which disables it.
func (a *App) newLimiter(key, prefix string) (*ratelimit.Limiter, error) {
	rate := strings.TrimSpace(a.config.GetString(key))
	if rate == "" {
		return nil, nil
	}

	store := ratelimit.NewMemoryStore(prefix)
	if a.redis != nil {
		rs, err := ratelimit.NewRedisStore(a.redis, prefix)
		if err != nil {
			return nil, fmt.Errorf("%s redis store: %w", key, err)
		}
		store = rs
	}

	l, err := ratelimit.New(store, rate)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", key, rate, err)
	}
	return l, nil
}

func (a *App) initMail() error {
	sender, err := mail.NewSMTP(mail.SMTPConfig{
		Host:        a.config.GetString("mail.host"),
		Port:        a.config.GetInt("mail.port"),
		Username:    a.config.GetString("mail.username"),
		Password:    a.config.GetString("mail.password"),
		From:        a.config.GetString("mail.from"),
		FromName:    a.config.GetString("mail.from_name_otp"),
		ImplicitTLS: a.config.GetBool("mail.implicit_tls"),
		Timeout:     a.config.GetSecond("mail.timeout_seconds"),
	})
	if err != nil {
		return err
	}

	a.mail = sender
	a.onClose("mail", func(context.Context) error { return sender.Close() })
	return nil
}

func (a *App) initMessaging() error {
	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
			ProducerConfig:       a.nsqProducerConfig(),
			ConsumerConfig:       a.nsqConsumerConfig(),
		},
		NATS: messaging.NATSConfig{
			URL:     a.config.GetString("messaging.nats.url"),
			Options: a.natsOptions(),
		},
	})
	if err != nil {
		return fmt.Errorf("driver %q: %w", driver, err)
	}

	a.messaging = client
	a.onClose("messaging", func(context.Context) error { return client.Close() })
	return nil
}

func (a *App) nsqProducerConfig() *nsq.Config {
	cfg := nsq.NewConfig()
	if v := a.config.GetSecond("messaging.nsq.producer_config.dial_timeout_seconds"); v > 0 {
		cfg.DialTimeout = v
	}
	if v := a.config.GetSecond("messaging.nsq.producer_config.write_timeout_seconds"); v > 0 {
		cfg.WriteTimeout = v
	}
	return cfg
}

func (a *App) nsqConsumerConfig() *nsq.Config {
	const prefix = "messaging.nsq.consumer_config."
	cfg := nsq.NewConfig()
	if v := a.config.GetInt(prefix + "max_in_flight"); v > 0 {
		cfg.MaxInFlight = v
	}
	if v := a.config.GetUint16(prefix + "max_attempts"); v > 0 {
		cfg.MaxAttempts = v
	}
	for key, dst := range map[string]*time.Duration{
		"lookupd_poll_interval_seconds": &cfg.LookupdPollInterval,
		"default_requeue_delay_seconds": &cfg.DefaultRequeueDelay,
		"max_requeue_delay_seconds":     &cfg.MaxRequeueDelay,
	} {
		if v := a.config.GetSecond(prefix + key); v > 0 {
			*dst = v
		}
	}
	return cfg
}

func (a *App) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(a.config.GetString("instrument.service_name")),
		nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
	}
	if v := a.config.GetInt("messaging.nats.max_reconnects"); v != 0 {
		opts = append(opts, nats.MaxReconnects(v))
	}
	if v := a.config.GetSecond("messaging.nats.timeout_seconds"); v > 0 {
		opts = append(opts, nats.Timeout(v))
	}
	if v := a.config.GetSecond("messaging.nats.reconnect_wait_seconds"); v > 0 {
		opts = append(opts, nats.ReconnectWait(v))
	}
	return opts
}

// initScheduler prefers the redis lock so only one replica purges at a time.
func (a *App) initScheduler() error {
	if a.redis != nil {
		a.locker = lock.NewRedis(a.redis, "otpgate:lock:")
	} else {
		a.locker = lock.NewLocal()
	}

	a.scheduler = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return nil
}

func (a *App) initHTTPServer() error {
	addr := a.config.GetString("app.server.http.address")
	if addr == "" {
		return errors.New("app.server.http.address is empty")
	}

	a.router = router.NewRouter(router.Config{
		Config:      a.config,
		UUID:        a.uuid,
		Instrument:  a.ins,
		RateLimiter: a.httpLimiter,
	})

	withCORS := cors.New(cors.Options{
		AllowedOrigins:   a.config.GetArray("app.server.cors"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           withCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
	return nil
}
