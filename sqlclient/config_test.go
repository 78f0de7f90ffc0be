// SPDX-License-Identifier: GPL-3.0-or-later

package sqlclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateRequiresAddrAndDBName(t *testing.T) {
	cfg := NewConfig()
	require.Error(t, cfg.Validate())

	cfg.Addr = "127.0.0.1:3306"
	require.Error(t, cfg.Validate())

	cfg.DBName = "app"
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsIdleExceedingOpen(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:3306"
	cfg.DBName = "app"
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 5

	assert.Error(t, cfg.Validate())
}

func TestConfigDSNIncludesCredentialsAndSchema(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "db.internal:3306"
	cfg.DBName = "app"
	cfg.User = "svc"
	cfg.Passwd = "s3cr3t"
	cfg.ParseTime = true

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "svc:s3cr3t@tcp(db.internal:3306)/app")
	assert.Contains(t, dsn, "parseTime=true")
}
