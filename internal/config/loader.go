package config

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"sheetpipe/internal/failure"
)

// Warehouse describes the Redshift (Postgres wire protocol) endpoint.
type Warehouse struct {
	Host           string        `env:"WAREHOUSE_HOST,required,notEmpty"`
	Port           int           `env:"WAREHOUSE_PORT" envDefault:"5439"`
	Database       string        `env:"WAREHOUSE_DATABASE,required,notEmpty"`
	User           string        `env:"WAREHOUSE_USER,required,notEmpty"`
	Password       string        `env:"WAREHOUSE_PASSWORD"`
	PasswordParam  string        `env:"WAREHOUSE_PASSWORD_PARAM"`
	SSLMode        string        `env:"WAREHOUSE_SSLMODE" envDefault:"require"`
	ConnectTimeout time.Duration `env:"WAREHOUSE_CONNECT_TIMEOUT" envDefault:"10s"`
}

// ConnString builds a postgres URL for the given password.
func (w Warehouse) ConnString(password string) string {
	q := url.Values{}
	q.Set("sslmode", w.SSLMode)
	if w.ConnectTimeout > 0 {
		// connect_timeout is whole seconds and 0 disables it.
		q.Set("connect_timeout", strconv.Itoa(int(math.Ceil(w.ConnectTimeout.Seconds()))))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(w.User, password),
		Host:     net.JoinHostPort(w.Host, strconv.Itoa(w.Port)),
		Path:     "/" + w.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// LoaderConfig configures the S3-to-Redshift function.
type LoaderConfig struct {
	Common
	Warehouse Warehouse

	Procedure string        `env:"LOADER_PROCEDURE" envDefault:"s3_csv_import"`
	Bucket    string        `env:"EXPORT_BUCKET"`
	Key       string        `env:"EXPORT_KEY"`
	ClaimTTL  time.Duration `env:"LEDGER_CLAIM_TTL" envDefault:"15m"`
}

var procedureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Loader parses and validates the loader configuration.
func Loader(envs ...string) (*LoaderConfig, error) {
	c, err := parse[LoaderConfig](envs...)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *LoaderConfig) Validate() error {
	w := c.Warehouse
	switch {
	case w.Password == "" && w.PasswordParam == "":
		return failure.Newf(failure.KindConfig, "validate", "one of WAREHOUSE_PASSWORD or WAREHOUSE_PASSWORD_PARAM is required")
	case w.Password != "" && w.PasswordParam != "":
		return failure.Newf(failure.KindConfig, "validate", "WAREHOUSE_PASSWORD and WAREHOUSE_PASSWORD_PARAM are mutually exclusive")
	}
	if w.Port < 1 || w.Port > 65535 {
		return failure.Newf(failure.KindConfig, "validate", "WAREHOUSE_PORT out of range: %d", w.Port)
	}
	if !procedureName.MatchString(c.Procedure) {
		return failure.Newf(failure.KindConfig, "validate", "LOADER_PROCEDURE is not a plain identifier: %q", c.Procedure)
	}
	if c.LedgerEnabled() && (c.Bucket == "" || c.Key == "") {
		return failure.Newf(failure.KindConfig, "validate", "EXPORT_BUCKET and EXPORT_KEY are required when PIPELINE_TABLE is set")
	}
	if c.ClaimTTL <= 0 {
		return failure.Newf(failure.KindConfig, "validate", "LEDGER_CLAIM_TTL must be positive")
	}
	return nil
}

// Statement is the fixed script run against the warehouse.
func (c *LoaderConfig) Statement() string {
	return fmt.Sprintf("CALL %s();", c.Procedure)
}
