package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10.0, cfg.Dispatch.RadiusKm)
	assert.False(t, cfg.App.IsProduction())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("DISPATCH_RADIUS_KM", "4.5")
	t.Setenv("PORT", "9090")

	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "file::memory:", cfg.DB.DSN)
	assert.Equal(t, 4.5, cfg.Dispatch.RadiusKm)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := FromViper(NewViper())
	assert.ErrorContains(t, err, "jwt_secret")

	t.Setenv("JWT_SECRET", "s3cr3t")
	cfg, err := FromViper(NewViper())
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
}

func TestUnsupportedDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	_, err := FromViper(NewViper())
	assert.Error(t, err)
}
