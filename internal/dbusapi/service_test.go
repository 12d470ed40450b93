package dbusapi

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/acpi"
	"github.com/dgpud/dgpud/pkg/config"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/modprobe"
	"github.com/dgpud/dgpud/pkg/pcireg"

	"github.com/dgpud/dgpud/internal/controller"
	"github.com/dgpud/dgpud/internal/executor"
)

func newTestService(t *testing.T, mode v1.GfxMode, vfioEnable bool) *Service {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dgpud.conf")

	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(mode))
	require.NoError(t, err)
	cfg.VfioEnable = vfioEnable
	require.NoError(t, config.Save(cfg, cfgPath))

	reloaded, err := config.Load(context.Background(), cfgPath)
	require.NoError(t, err)

	a := &acpi.Adapter{PlatformPath: filepath.Join(dir, "acpi")}
	exec := executor.New(nil, a, nil, &modprobe.Writer{
		ModprobePath:  filepath.Join(dir, "dgpud.modprobe.conf"),
		VulkanICDPath: filepath.Join(dir, "nvidia_icd.json"),
	}, nil, nil)

	ctrl := controller.New(cfgPath, reloaded, pcireg.DeviceSet{{Address: "0000:01:00.0", IsDgpu: true, PCIID: "10de:1234"}}, v1.GfxVendorAmd, exec, nil, a, nil)
	return NewService("test-version", ctrl)
}

func TestServiceVersion(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)
	v, derr := s.Version()
	require.Nil(t, derr)
	assert.Equal(t, "test-version", v)
}

func TestServiceModeAndVendor(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)

	mode, derr := s.Mode()
	require.Nil(t, derr)
	assert.Equal(t, string(v1.GfxModeHybrid), mode)

	vendor, derr := s.Vendor()
	require.Nil(t, derr)
	assert.Equal(t, string(v1.GfxVendorAmd), vendor)
}

func TestServiceSupportedExcludesVfioWhenDisabled(t *testing.T) {
	s := newTestService(t, v1.GfxModeIntegrated, false)
	modes, derr := s.Supported()
	require.Nil(t, derr)
	assert.Contains(t, modes, string(v1.GfxModeIntegrated))
	assert.NotContains(t, modes, string(v1.GfxModeVfio))
}

func TestServicePowerOffWhenNoDgpuEnumerated(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dgpud.conf")
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeIntegrated))
	require.NoError(t, err)
	require.NoError(t, config.Save(cfg, cfgPath))
	reloaded, err := config.Load(context.Background(), cfgPath)
	require.NoError(t, err)

	a := &acpi.Adapter{PlatformPath: filepath.Join(dir, "acpi")}
	exec := executor.New(nil, a, nil, &modprobe.Writer{ModprobePath: filepath.Join(dir, "m.conf")}, nil, nil)
	ctrl := controller.New(cfgPath, reloaded, nil, v1.GfxVendorUnknown, exec, nil, a, nil)
	s := NewService("v", ctrl)

	power, derr := s.Power()
	require.Nil(t, derr)
	assert.Equal(t, string(v1.GfxPowerOff), power)
}

func TestServiceSetModeRejectsDisabledVfio(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)
	action, derr := s.SetMode(string(v1.GfxModeVfio))
	require.NotNil(t, derr)
	assert.Empty(t, action)
	assert.Contains(t, derr.Name, string(gfxerr.KindNotSupported))
}

func TestServiceSetModeInvalidModeName(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)
	action, derr := s.SetMode("NotAMode")
	require.NotNil(t, derr)
	assert.Empty(t, action)
	assert.Contains(t, derr.Name, string(gfxerr.KindParseMode))
}

func TestServiceSetModeReflexive(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)
	action, derr := s.SetMode(string(v1.GfxModeHybrid))
	require.Nil(t, derr)
	assert.Equal(t, string(v1.UserActionNothing), action)
}

func TestServiceConfigRoundTrip(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)

	raw, derr := s.Config()
	require.Nil(t, derr)
	var view v1.ConfigView
	require.NoError(t, json.Unmarshal([]byte(raw), &view))
	assert.Equal(t, v1.GfxModeHybrid, view.Mode)

	view.AlwaysReboot = true
	buf, err := json.Marshal(view)
	require.NoError(t, err)
	require.Nil(t, s.SetConfig(string(buf)))

	raw2, derr := s.Config()
	require.Nil(t, derr)
	var view2 v1.ConfigView
	require.NoError(t, json.Unmarshal([]byte(raw2), &view2))
	assert.True(t, view2.AlwaysReboot)
}

func TestServiceSetConfigRejectsInvalidJSON(t *testing.T) {
	s := newTestService(t, v1.GfxModeHybrid, false)
	derr := s.SetConfig("not json")
	require.NotNil(t, derr)
	assert.Contains(t, derr.Name, string(gfxerr.KindParseMode))
}
