package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersystem/internal/pkg/bootstrap"
)

func TestDSN(t *testing.T) {
	dsn := DSN(bootstrap.MySQLConfig{
		Host:     "db",
		Port:     3306,
		User:     "orders",
		Password: "p@ss:word",
		Database: "ordersystem",
	})

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "orders", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "ordersystem", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}
