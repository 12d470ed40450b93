package controller

import (
	"context"
	"os"
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

	"github.com/dgpud/dgpud/internal/executor"
)

func newTestController(t *testing.T, cfg *config.Config, vendor v1.GfxVendor) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dgpud.conf")
	require.NoError(t, config.Save(cfg, cfgPath))

	a := &acpi.Adapter{PlatformPath: filepath.Join(dir, "acpi")}
	require.NoError(t, os.MkdirAll(a.PlatformPath, 0o755))
	exec := executor.New(nil, a, nil, &modprobe.Writer{ModprobePath: filepath.Join(dir, "dgpud.modprobe.conf"), VulkanICDPath: filepath.Join(dir, "nvidia_icd.json")}, nil, nil)

	reloaded, err := config.Load(context.Background(), cfgPath)
	require.NoError(t, err)

	c := New(cfgPath, reloaded, pcireg.DeviceSet{{Address: "0000:01:00.0", IsDgpu: true, PCIID: "10de:1234"}}, vendor, exec, nil, a, nil)
	return c, cfgPath
}

// TestSetModeVfioGateRejectsWhenDisabled covers P4 / scenario 5.
func TestSetModeVfioGateRejectsWhenDisabled(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeHybrid))
	require.NoError(t, err)
	cfg.VfioEnable = false

	c, _ := newTestController(t, cfg, v1.GfxVendorNvidia)

	action, err := c.SetMode(context.Background(), v1.GfxModeVfio, nil)
	require.Error(t, err)
	assert.Empty(t, action)

	var gerr *gfxerr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, gfxerr.KindNotSupported, gerr.Kind)

	assert.Equal(t, v1.GfxModeHybrid, c.Mode(), "config.mode must be unchanged on a rejected request")
}

func TestSetModeAsusMuxExitReportsReboot(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeAsusMuxDgpu))
	require.NoError(t, err)

	c, _ := newTestController(t, cfg, v1.GfxVendorNvidia)

	action, err := c.SetMode(context.Background(), v1.GfxModeIntegrated, nil)
	require.NoError(t, err)
	assert.Equal(t, v1.UserActionReboot, action)
	assert.Equal(t, v1.UserActionReboot, c.PendingUserAction())
	assert.Equal(t, StateIdle, c.State())
}

func TestSetModeReflexiveIsUserActionReported(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeHybrid))
	require.NoError(t, err)

	c, cfgPath := newTestController(t, cfg, v1.GfxVendorNvidia)

	action, err := c.SetMode(context.Background(), v1.GfxModeHybrid, nil)
	require.NoError(t, err)
	assert.Equal(t, v1.UserActionNothing, action)
	assert.Equal(t, StateIdle, c.State())

	reloaded, err := config.Load(context.Background(), cfgPath)
	require.NoError(t, err)
	assert.Equal(t, v1.GfxModeHybrid, reloaded.Mode, "a UserAction verdict must not persist config")
}

// TestSetModePersistsModeBeforeExecution uses a Hybrid -> AsusMuxDgpu
// transition: its plan never touches the display manager or driver
// module loading, so it can run against the fake/temp-dir-backed
// primitives without reaching real sysfs or D-Bus.
func TestSetModePersistsModeBeforeExecution(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeHybrid))
	require.NoError(t, err)

	c, cfgPath := newTestController(t, cfg, v1.GfxVendorAmd)

	var events []executor.PlanEvent
	action, err := c.SetMode(context.Background(), v1.GfxModeAsusMuxDgpu, func(pe executor.PlanEvent) {
		events = append(events, pe)
	})
	require.NoError(t, err)
	assert.Equal(t, v1.UserActionNothing, action)
	assert.NotEmpty(t, events)

	reloaded, err := config.Load(context.Background(), cfgPath)
	require.NoError(t, err)
	assert.Equal(t, v1.GfxModeAsusMuxDgpu, reloaded.Mode)
}

func TestSupportedFiltersByVendorAndVfioEnable(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeIntegrated))
	require.NoError(t, err)
	cfg.VfioEnable = false

	c, _ := newTestController(t, cfg, v1.GfxVendorAmd)
	supported := c.Supported()

	assert.Contains(t, supported, v1.GfxModeIntegrated)
	assert.Contains(t, supported, v1.GfxModeHybrid)
	assert.NotContains(t, supported, v1.GfxModeNvidiaNoModeset, "amd vendor must not offer nvidia-only mode")
	assert.NotContains(t, supported, v1.GfxModeVfio, "vfio_enable=false must exclude Vfio")
}

func TestSetConfigLeavesModeUntouched(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeHybrid))
	require.NoError(t, err)

	c, cfgPath := newTestController(t, cfg, v1.GfxVendorNvidia)

	view := c.ConfigView()
	view.AlwaysReboot = true
	view.NoLogind = true
	require.NoError(t, c.SetConfig(view))

	assert.Equal(t, v1.GfxModeHybrid, c.Mode())
	assert.True(t, c.ConfigView().AlwaysReboot)

	reloaded, err := config.Load(context.Background(), cfgPath)
	require.NoError(t, err)
	assert.True(t, reloaded.AlwaysReboot)
	assert.Equal(t, v1.GfxModeHybrid, reloaded.Mode)
}

func TestBootPlanNoopForNone(t *testing.T) {
	cfg, err := config.DefaultConfig(context.Background(), config.WithMode(v1.GfxModeNone))
	require.NoError(t, err)

	c, _ := newTestController(t, cfg, v1.GfxVendorUnknown)
	require.NoError(t, c.Boot(context.Background()))
}
