package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/pgbulk/internal/config"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ConnFlags are the libpq-style CLI flags (-h, -p, -U, -d, --sslmode).
// There is deliberately no password flag: use $PGPASSWORD, ~/.pgpass or a
// connection string.
type ConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty reports whether no server flag was given. Database is left out
// because -d may retarget a connection string.
func (f *ConnFlags) IsEmpty() bool {
	return f.Host == "" && f.Port == 0 && f.Username == "" && f.SSLMode == ""
}

// AuthFlags select and parameterize cloud authentication.
type AuthFlags struct {
	Method         string
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// EnvVars holds the environment a connection may be resolved from.
// See https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string

	AWS_REGION          string
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnectionParams merges every connection source. The server comes
// from the first of:
//
//  1. --connection
//  2. $DATABASE_URL, when no server flag is set
//  3. each of host, port, user, database and sslmode taken separately from
//     its flag, then its PG* variable, then pgbulk.yaml, then a default
//
// -d overrides the database of a connection string. Giving --connection
// together with server flags is an error.
func ResolveConnectionParams(
	connString string,
	flags *ConnFlags,
	auth *AuthFlags,
	env *EnvVars,
	project *config.ProjectConfig,
) (*pgbulk.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if auth == nil {
		auth = &AuthFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var pc config.ConnectionConfig
	if project != nil {
		pc = project.Connection
	}

	if connString != "" && !flags.IsEmpty() {
		return nil, fmt.Errorf("cannot combine --connection with -h, -p, -U or --sslmode; "+
			"use either a connection string or individual flags: %w", pgbulk.ErrInvalidOptions)
	}

	var (
		cfg *pgbulk.ConnectionConfig
		err error
	)
	switch {
	case connString != "":
		cfg, err = fromConnectionString(connString, env)
	case flags.IsEmpty() && env.DATABASE_URL != "":
		cfg, err = fromConnectionString(env.DATABASE_URL, env)
	default:
		cfg, err = fromParams(flags, env, pc)
	}
	if err != nil {
		return nil, err
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("no database given (use -d, $PGDATABASE or connection.database in %s): %w",
			config.ConfigFileName, pgbulk.ErrInvalidOptions)
	}

	if err := applyAuth(cfg, auth, env, pc); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromConnectionString(connStr string, env *EnvVars) (*pgbulk.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, err
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = firstNonEmpty(env.PGSSLMODE, "prefer")
	}
	if cfg.Password == "" {
		cfg.Password = env.PGPASSWORD
	}
	return cfg, nil
}

func fromParams(flags *ConnFlags, env *EnvVars, pc config.ConnectionConfig) (*pgbulk.ConnectionConfig, error) {
	cfg := &pgbulk.ConnectionConfig{
		Host:             firstNonEmpty(flags.Host, env.PGHOST, pc.Host, "localhost"),
		Username:         firstNonEmpty(flags.Username, env.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME")),
		Password:         env.PGPASSWORD,
		Database:         firstNonEmpty(env.PGDATABASE, pc.Database),
		SSLMode:          firstNonEmpty(flags.SSLMode, env.PGSSLMODE, pc.SSLMode, "prefer"),
		AuthMethod:       pgbulk.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value %q: must be an integer: %w", env.PGPORT, pgbulk.ErrInvalidOptions)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = 5432
	}
	return cfg, nil
}

// applyAuth picks the auth method: flag, then pgbulk.yaml, then Azure if
// AZURE_* variables are present. Secrets only ever come from the environment.
func applyAuth(cfg *pgbulk.ConnectionConfig, auth *AuthFlags, env *EnvVars, pc config.ConnectionConfig) error {
	tenant := firstNonEmpty(auth.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
	client := firstNonEmpty(auth.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)

	name := firstNonEmpty(auth.Method, pc.AuthMethod)
	method, err := pgbulk.ParseAuthMethod(name)
	if err != nil {
		return err
	}
	if name == "" && (env.AZURE_TENANT_ID != "" || env.AZURE_CLIENT_ID != "" || auth.AzureTenantID != "" || auth.AzureClientID != "") {
		method = pgbulk.AuthMethodAzureEntraID
	}

	cfg.AuthMethod = method
	switch method {
	case pgbulk.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(auth.AWSRegion, env.AWS_REGION, pc.AWSRegion)
	case pgbulk.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(auth.GoogleInstance, pc.GoogleInstance)
	case pgbulk.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenant
		cfg.AzureClientID = client
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
