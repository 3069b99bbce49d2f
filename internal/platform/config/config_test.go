package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "crowdstage", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.DBPingTimeout)
	assert.Equal(t, 10, cfg.GuardVelocityThreshold)
	assert.Equal(t, time.Minute, cfg.GuardVelocityWindow)
	assert.InDelta(t, 0.5, cfg.GuardMinBotScore, 1e-9)
	assert.InDelta(t, 0.7, cfg.GuardFlagThreshold, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.GuardSharingWindow)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.True(t, cfg.EnableOutboxRelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "crowdstage-staging")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_PING_TIMEOUT", "15s")
	t.Setenv("GUARD_VELOCITY_THRESHOLD", "25")
	t.Setenv("GUARD_FLAG_THRESHOLD", "0.9")
	t.Setenv("GUARD_SHARING_WINDOW", "12h")
	t.Setenv("ENABLE_OUTBOX_RELAY", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "crowdstage-staging", cfg.ServiceName)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 15*time.Second, cfg.DBPingTimeout)
	assert.Equal(t, 25, cfg.GuardVelocityThreshold)
	assert.InDelta(t, 0.9, cfg.GuardFlagThreshold, 1e-9)
	assert.Equal(t, 12*time.Hour, cfg.GuardSharingWindow)
	assert.False(t, cfg.EnableOutboxRelay)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("GUARD_VELOCITY_THRESHOLD", "not-a-number")
	t.Setenv("GUARD_VELOCITY_WINDOW", "soon")
	t.Setenv("ENABLE_OUTBOX_RELAY", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.GuardVelocityThreshold)
	assert.Equal(t, time.Minute, cfg.GuardVelocityWindow)
	assert.True(t, cfg.EnableOutboxRelay)
}

func TestEnvBoolParsing(t *testing.T) {
	t.Setenv("FLAG", "yes")
	assert.True(t, envBool("FLAG", false))
	t.Setenv("FLAG", "0")
	assert.False(t, envBool("FLAG", true))
	t.Setenv("FLAG", "")
	assert.True(t, envBool("FLAG", true))
}
