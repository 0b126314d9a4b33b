package db

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgbulk/internal/retry"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// tokenWarnThreshold triggers a warning when a fresh token is about to expire.
const tokenWarnThreshold = 5 * time.Minute

// Connector opens verified pgx pools with retry on transient failures.
// Close releases the Cloud SQL dialer, if one was opened, after every pool
// it produced has been closed.
type Connector struct {
	config *pgbulk.ConnectionConfig
	logger pgbulk.Logger
	retry  *retry.Executor

	// tokens supplies the password per attempt for cloud IAM auth.
	tokens TokenProvider

	// instance is the Cloud SQL connection name; when set, connections are
	// dialed through cloudsqlconn instead of TCP.
	instance string

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

var _ pgbulk.Connector = (*Connector)(nil)

// NewConnector picks the authentication flow for config.AuthMethod.
func NewConnector(config *pgbulk.ConnectionConfig, logger pgbulk.Logger) (*Connector, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config is nil: %w", pgbulk.ErrInvalidOptions)
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	c := &Connector{
		config: config,
		logger: logger,
		retry: retry.NewExecutor(
			retry.NewClassifier(),
			retry.NewExponential(pgbulk.DefaultRetryMaxAttempts,
				retry.WithInitialDelay(pgbulk.DefaultRetryInitialDelay),
				retry.WithMaxDelay(pgbulk.DefaultRetryMaxDelay),
			),
		).WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Info("Connection attempt %d failed, retrying in %v: %v", attempt+1, delay.Round(time.Millisecond), err)
		}),
	}

	switch config.AuthMethod {
	case pgbulk.AuthMethodStandard:
	case pgbulk.AuthMethodAWSIAM:
		endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)
		p, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pgbulk.ErrInvalidOptions, err)
		}
		c.tokens = p
	case pgbulk.AuthMethodAzureEntraID:
		p, err := NewAzureTokenProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pgbulk.ErrInvalidOptions, err)
		}
		c.tokens = p
	case pgbulk.AuthMethodGoogleIAM:
		if config.GoogleInstance == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", pgbulk.ErrInvalidOptions)
		}
		if config.Username == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username (-U): %w", pgbulk.ErrInvalidOptions)
		}
		c.instance = config.GoogleInstance
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, pgbulk.ErrUnsupportedAuthMethod)
	}
	return c, nil
}

// WithTokenProvider replaces the password source. Tests use it to stub
// cloud credentials.
func (c *Connector) WithTokenProvider(p TokenProvider) *Connector {
	c.tokens = p
	return c
}

// Connect returns a pool whose first connection has answered a ping.
func (c *Connector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return retry.Do(ctx, c.retry, c.connectOnce)
}

func (c *Connector) connectOnce(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := c.poolConfig(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, explainConnectionError(err, c.config)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, explainConnectionError(err, c.config)
	}

	c.logger.Verbose("Connected to %s:%d/%s as %s (%s)", c.config.Host, c.config.Port, c.config.Database, c.config.Username, c.config.AuthMethod)
	return pool, nil
}

func (c *Connector) poolConfig(ctx context.Context) (*pgxpool.Config, error) {
	cfg := *c.config

	if c.tokens != nil {
		token, expires, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", pgbulk.ErrConnectionFailed, c.tokens, err)
		}
		if left := time.Until(expires); left < tokenWarnThreshold {
			c.logger.Info("Warning: %s token expires in %v", c.tokens, left.Round(time.Second))
		}
		cfg.Password = token
	}

	connStr := BuildConnectionString(&cfg)
	if c.instance != "" {
		// The dialer handles TLS and IAM login; the DSN only names the session.
		connStr = fmt.Sprintf("user=%s dbname=%s sslmode=disable", cfg.Username, cfg.Database)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", pgbulk.ErrInvalidOptions, err)
	}
	configurePool(poolConfig, c.logger)

	if c.instance != "" {
		dialer, err := c.cloudSQLDialer(ctx)
		if err != nil {
			return nil, err
		}
		instance := c.instance
		poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.Dial(ctx, instance)
		}
	}
	return poolConfig, nil
}

func (c *Connector) cloudSQLDialer(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer != nil {
		return c.dialer, nil
	}
	d, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Cloud SQL dialer: %w", pgbulk.ErrConnectionFailed, err)
	}
	c.dialer = d
	return d, nil
}

// Close releases the Cloud SQL dialer. It is a no-op for other auth methods.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer == nil {
		return nil
	}
	err := c.dialer.Close()
	c.dialer = nil
	return err
}
