package database

import (
	"context"
	"testing"

	"github.com/Spare-Link/storefront/config"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresUser:     "storefront",
		PostgresPassword: "secret",
		PostgresDB:       "quotes",
		PostgresSSLMode:  "disable",
	}
	assert.Equal(t,
		"host=db user=storefront password=secret dbname=quotes port=5432 sslmode=disable TimeZone=UTC",
		DSN(cfg),
	)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
