//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on nabbar-golib/database/gorm's Config/Validate/pool-tuning
// style, adapted to wrap database/sql + github.com/go-sql-driver/mysql
// directly rather than gorm: the native-password handshake and packet
// framing this component exists to ground are the driver's job, not an
// ORM's.
//

// Package sqlclient is a thin MySQL client built on database/sql and
// github.com/go-sql-driver/mysql. It owns connection-pool tuning,
// parameter escaping for call sites that build SQL as text instead of
// using placeholders, and a minimal typed row-decoding hook.
package sqlclient

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/90s-run/reactor/afd"
)

// Config configures a [Client].
type Config struct {
	// Net is the driver network, e.g. "tcp" or "unix".
	Net string

	// Addr is the host:port (or socket path, for Net "unix") to dial.
	Addr string

	// User and Passwd authenticate via MySQL's native-password method.
	User   string
	Passwd string

	// DBName selects the default schema.
	DBName string

	// ParseTime asks the driver to decode DATE/DATETIME columns as
	// time.Time instead of []byte.
	ParseTime bool

	// Params carries extra driver DSN parameters (e.g. "charset",
	// "collation", "tls").
	Params map[string]string

	// MaxOpenConns bounds the pool; 0 means unbounded.
	MaxOpenConns int

	// MaxIdleConns bounds idle connections kept around between uses.
	MaxIdleConns int

	// ConnMaxLifetime closes a connection once it has been open this
	// long, even if idle; 0 means no limit.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime closes a connection once it has sat idle this
	// long; 0 means no limit.
	ConnMaxIdleTime time.Duration

	// ErrClassifier classifies driver errors for structured logging.
	ErrClassifier afd.ErrClassifier

	// Logger is the SLogger to use.
	Logger afd.SLogger

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time
}

// NewConfig returns a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Net:           "tcp",
		MaxOpenConns:  16,
		MaxIdleConns:  4,
		ErrClassifier: afd.DefaultErrClassifier,
		Logger:        afd.DefaultSLogger(),
		TimeNow:       time.Now,
	}
}

// Validate reports whether c is well-formed enough to open.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("sqlclient: config: Addr is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("sqlclient: config: DBName is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return fmt.Errorf("sqlclient: config: MaxIdleConns (%d) exceeds MaxOpenConns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// DSN renders c as a go-sql-driver/mysql data source name.
func (c *Config) DSN() string {
	drv := mysql.NewConfig()
	drv.Net = c.Net
	drv.Addr = c.Addr
	drv.User = c.User
	drv.Passwd = c.Passwd
	drv.DBName = c.DBName
	drv.ParseTime = c.ParseTime
	drv.Params = c.Params
	return drv.FormatDSN()
}
