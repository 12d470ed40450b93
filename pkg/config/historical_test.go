package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/dgpud/dgpud/api/v1"
)

// TestConfigMigration covers P10: loading each historical schema
// fixture must yield the same Config as loading the equivalent
// current-schema fixture.
func TestConfigMigration(t *testing.T) {
	v300 := []byte(`{
		"gfx_mode": "Hybrid",
		"vfio_enable": true,
		"vfio_save": false,
		"no_logind": false,
		"logout_timeout_s": 120
	}`)
	v405 := []byte(`{
		"api_version": "4.0.5",
		"gfx_mode": "Hybrid",
		"vfio_enable": true,
		"vfio_save": false,
		"always_reboot": false,
		"no_logind": false,
		"logout_timeout_s": 120,
		"hotplug_type": "Std"
	}`)
	current := []byte(`{
		"api_version": "5.0.0",
		"mode": "Hybrid",
		"vfio_enable": true,
		"vfio_save": false,
		"always_reboot": false,
		"no_logind": false,
		"logout_timeout_s": 120,
		"hotplug_type": "Std"
	}`)

	want, err := ParseAndMigrate(current)
	require.NoError(t, err)

	got300, err := ParseAndMigrate(v300)
	require.NoError(t, err)
	assert.Equal(t, want.Mode, got300.Mode)
	assert.Equal(t, want.VfioEnable, got300.VfioEnable)
	assert.Equal(t, want.HotplugType, got300.HotplugType)
	assert.Equal(t, want.LogoutTimeoutS, got300.LogoutTimeoutS)

	got405, err := ParseAndMigrate(v405)
	require.NoError(t, err)
	assert.Equal(t, want, got405)

	v500 := []byte(`{
		"mode": "Hybrid",
		"vfio_enable": true,
		"vfio_save": false,
		"always_reboot": false,
		"no_logind": false,
		"logout_timeout_s": 120,
		"hotplug_type": "std"
	}`)
	got500, err := ParseAndMigrate(v500)
	require.NoError(t, err)
	assert.Equal(t, want, got500)
}

// TestParseAndMigrateNeverKeyedOnAPIVersion covers the original format
// never carrying api_version at all: a genuine 4.0.5 file has no such
// field, and must still be recognised by its gfx_mode+hotplug_type
// shape rather than falling through to the 3.0.0 decoder.
func TestParseAndMigrateNeverKeyedOnAPIVersion(t *testing.T) {
	v405NoAPIVersion := []byte(`{
		"gfx_mode": "Integrated",
		"vfio_enable": false,
		"always_reboot": true,
		"no_logind": true,
		"logout_timeout_s": 0,
		"hotplug_type": "Asus"
	}`)
	cfg, err := ParseAndMigrate(v405NoAPIVersion)
	require.NoError(t, err)
	assert.Equal(t, v1.GfxModeIntegrated, cfg.Mode)
	assert.Equal(t, v1.HotplugAsus, cfg.HotplugType)
	assert.True(t, cfg.AlwaysReboot)
}

func TestTryDecodeV500RejectsWhenAPIVersionPresent(t *testing.T) {
	_, ok := tryDecodeV500([]byte(`{"api_version":"5.0.0","mode":"Hybrid","vfio_save":false,"hotplug_type":"Std"}`))
	assert.False(t, ok)
}

func TestTryDecodeV500RejectsUnknownHotplugType(t *testing.T) {
	_, ok := tryDecodeV500([]byte(`{"mode":"Hybrid","vfio_save":false,"hotplug_type":"bogus"}`))
	assert.False(t, ok)
}

func TestTryDecodeV300RejectsNonV300Shape(t *testing.T) {
	_, ok := tryDecodeV300([]byte(`{"mode":"Hybrid","hotplug_type":"Std"}`))
	assert.False(t, ok)
}

func TestTryDecodeV405RejectsMissingHotplugType(t *testing.T) {
	_, ok := tryDecodeV405([]byte(`{"gfx_mode":"Hybrid"}`))
	assert.False(t, ok)
}

func TestParseAndMigrateCurrentSchema(t *testing.T) {
	raw := []byte(`{"api_version":"5.0.0","mode":"Vfio","vfio_enable":true,"hotplug_type":"None"}`)
	cfg, err := ParseAndMigrate(raw)
	require.NoError(t, err)
	assert.Equal(t, v1.GfxModeVfio, cfg.Mode)
	assert.Equal(t, v1.HotplugNone, cfg.HotplugType)
}
