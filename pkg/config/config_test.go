package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require.NoError(t, Load())

	assert.Equal(t, ":7080", GlobalConfig.Addr)
	assert.Equal(t, "sqlite", GlobalConfig.DBDriver)
	assert.Equal(t, "/api", GlobalConfig.APIPrefix)
	assert.Equal(t, 7, GlobalConfig.SessionExpireDays)
	assert.Empty(t, GlobalConfig.SyncSchedule)
	assert.False(t, GlobalConfig.NLU.Configured())
}

func TestLoadExplicitValues(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("NLU_BASE_URL", "https://nlu.example.com")
	t.Setenv("NLU_API_KEY", "key")
	t.Setenv("NLU_PROJECT_ID", "proj")

	require.NoError(t, Load())
	assert.Equal(t, ":9090", GlobalConfig.Addr)
	assert.True(t, GlobalConfig.NLU.Configured())
}

func TestLoadExplicitZeroKept(t *testing.T) {
	// An explicit 0 is a value, not "unset".
	t.Setenv("SESSION_EXPIRE_DAYS", "0")
	t.Setenv("LOG_MAX_BACKUPS", "0")

	require.NoError(t, Load())
	assert.Equal(t, 0, GlobalConfig.SessionExpireDays)
	assert.Equal(t, 0, GlobalConfig.Log.MaxBackups)
}
