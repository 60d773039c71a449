package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: 8080
store:
  driver: memory
jwt:
  secret: "0123456789abcdef0123456789abcdef"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Ledger.RetryInitialInterval())
	assert.Equal(t, 6, cfg.Membership.CodeLength)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "0 0 2 * * *", cfg.Scheduler.ReconcileLedgers)
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EVENTS_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LEDGER_APPROVAL_THRESHOLD_CENTS", "50000")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "bizops.events", cfg.Events.Topic)
	assert.Equal(t, int64(50000), cfg.Ledger.ApprovalThresholdCents)
}

func TestValidate(t *testing.T) {
	t.Run("Postgres requires host", func(t *testing.T) {
		_, err := Parse([]byte(`
server: {port: 8080}
store: {driver: postgres}
jwt: {secret: "0123456789abcdef0123456789abcdef"}
`))
		assert.ErrorContains(t, err, "database host is required")
	})

	t.Run("Short JWT secret", func(t *testing.T) {
		_, err := Parse([]byte(`
server: {port: 8080}
store: {driver: memory}
jwt: {secret: "short"}
`))
		assert.ErrorContains(t, err, "at least 32 characters")
	})

	t.Run("Unknown events driver", func(t *testing.T) {
		_, err := Parse([]byte(minimalYAML + "events: {driver: nats}\n"))
		assert.ErrorContains(t, err, "unknown events driver")
	})
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("healthz"))
	assert.Equal(t, SecurityPublic, GetSecurityLevel("/grpc.health.v1.Health/Check"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("recordTransaction"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("somethingNew"))
}
