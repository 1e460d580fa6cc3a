package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OPERATOR_PASSWORD", "test-password")
}

func TestLoad(t *testing.T) {
	t.Run("substitutes placeholders for missing gateway settings", func(t *testing.T) {
		setRequiredEnv(t)

		cfg := Load()
		require.NotNil(t, cfg)
		assert.True(t, cfg.HimKosh.Placeholder)
		assert.Equal(t, PlaceholderMerchantCode, cfg.HimKosh.MerchantCode)
		assert.Equal(t, PlaceholderDDO, cfg.HimKosh.DefaultDDO)
		assert.Equal(t, PlaceholderHead2, cfg.HimKosh.Head2)
	})

	t.Run("real gateway settings clear the placeholder flag", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HIMKOSH_MERCHANT_CODE", "HPTSM01")
		t.Setenv("HIMKOSH_DEPT_ID", "TSM")
		t.Setenv("HIMKOSH_SERVICE_CODE", "HST")
		t.Setenv("HIMKOSH_DEFAULT_DDO", "SML00-001")
		t.Setenv("HIMKOSH_HEAD1", "1452-80-800")

		cfg := Load()
		assert.False(t, cfg.HimKosh.Placeholder)
		assert.Equal(t, "HPTSM01", cfg.HimKosh.MerchantCode)
	})

	t.Run("iv mode defaults to key", func(t *testing.T) {
		setRequiredEnv(t)
		cfg := Load()
		assert.Equal(t, "key", cfg.HimKosh.IVMode)
	})

	t.Run("test mode flag parses", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HIMKOSH_TEST_MODE", "true")
		cfg := Load()
		assert.True(t, cfg.HimKosh.TestMode)
	})
}
