package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	v1 "github.com/dgpud/dgpud/api/v1"
)

// TestPlanTotality covers P1: every (from, to, vendor, hotplug_type,
// no_logind, always_reboot) combination returns a well-formed result.
func TestPlanTotality(t *testing.T) {
	vendors := []v1.GfxVendor{v1.GfxVendorNvidia, v1.GfxVendorAmd, v1.GfxVendorIntel, v1.GfxVendorUnknown, v1.GfxVendorAsusDgpuDisabled}
	hotplugs := []v1.HotplugType{v1.HotplugStd, v1.HotplugAsus, v1.HotplugNone}

	for _, from := range v1.AllGfxModes {
		for _, to := range v1.AllGfxModes {
			for _, vendor := range vendors {
				for _, hp := range hotplugs {
					for _, noLogind := range []bool{false, true} {
						for _, alwaysReboot := range []bool{false, true} {
							p := Plan(from, to, vendor, Policy{NoLogind: noLogind, AlwaysReboot: alwaysReboot, HotplugType: hp})
							if p.IsUserAction() {
								assert.NotEmpty(t, p.UserAction)
								assert.Empty(t, p.Steps)
							} else {
								assert.NotEmpty(t, p.Steps, "from=%s to=%s vendor=%s produced empty steps", from, to, vendor)
							}
						}
					}
				}
			}
		}
	}
}

// TestPlanReflexivity covers P2.
func TestPlanReflexivity(t *testing.T) {
	for _, m := range v1.AllGfxModes {
		p := Plan(m, m, v1.GfxVendorNvidia, Policy{})
		assert.Equal(t, v1.UserActionPlan(v1.UserActionNothing), p)
	}
}

// TestPlanLogindGating covers P3.
func TestPlanLogindGating(t *testing.T) {
	gated := []v1.StagedAction{v1.WaitLogout, v1.StopDisplayManager, v1.StartDisplayManager}

	check := func(p v1.Plan) {
		for _, g := range gated {
			assert.NotContains(t, p.Steps, g)
		}
	}

	for _, from := range v1.AllGfxModes {
		for _, to := range v1.AllGfxModes {
			check(Plan(from, to, v1.GfxVendorNvidia, Policy{NoLogind: true}))
			check(Plan(from, to, v1.GfxVendorNvidia, Policy{AlwaysReboot: true}))
		}
	}
}

// TestPlanNvidiaOnlySteps covers P5.
func TestPlanNvidiaOnlySteps(t *testing.T) {
	nvidiaSteps := []v1.StagedAction{
		v1.KillNvidia,
		v1.EnableNvidiaPersistenced, v1.DisableNvidiaPersistenced,
		v1.EnableNvidiaPowerd, v1.DisableNvidiaPowerd,
	}

	for _, from := range v1.AllGfxModes {
		for _, to := range v1.AllGfxModes {
			for _, vendor := range []v1.GfxVendor{v1.GfxVendorAmd, v1.GfxVendorIntel, v1.GfxVendorUnknown} {
				p := Plan(from, to, vendor, Policy{})
				for _, s := range nvidiaSteps {
					assert.NotContains(t, p.Steps, s)
				}
			}
		}
	}
}

// TestPlanAsusMuxExit covers P6.
func TestPlanAsusMuxExit(t *testing.T) {
	for _, to := range v1.AllGfxModes {
		if to == v1.GfxModeAsusMuxDgpu {
			continue
		}
		p := Plan(v1.GfxModeAsusMuxDgpu, to, v1.GfxVendorNvidia, Policy{})
		assert.Equal(t, v1.StepsPlan(v1.AsusMuxIgpu), p)
	}
}

func TestScenarioHybridToIntegratedNvidiaLogindStd(t *testing.T) {
	p := Plan(v1.GfxModeHybrid, v1.GfxModeIntegrated, v1.GfxVendorNvidia, Policy{HotplugType: v1.HotplugStd})
	assert.Equal(t, v1.StepsPlan(
		v1.WaitLogout, v1.StopDisplayManager,
		v1.DisableNvidiaPersistenced, v1.DisableNvidiaPowerd,
		v1.KillNvidia, v1.UnloadGpuDrivers, v1.UnbindRemoveGpu,
		v1.WriteModprobeConf, v1.CheckVulkanIcd,
		v1.HotplugUnplug, v1.StartDisplayManager,
	), p)
}

func TestScenarioIntegratedToVfioNvidiaHotplugNone(t *testing.T) {
	p := Plan(v1.GfxModeIntegrated, v1.GfxModeVfio, v1.GfxVendorNvidia, Policy{HotplugType: v1.HotplugNone})
	assert.Equal(t, v1.StepsPlan(
		v1.WriteModprobeConf, v1.CheckVulkanIcd, v1.DevTreeManaged, v1.RescanPci,
		v1.DisableNvidiaPersistenced, v1.DisableNvidiaPowerd,
		v1.KillNvidia, v1.UnloadGpuDrivers, v1.UnbindGpu, v1.LoadVfioDrivers,
	), p)
}

func TestScenarioAsusEgpuToVfioAnyVendor(t *testing.T) {
	for _, vendor := range []v1.GfxVendor{v1.GfxVendorNvidia, v1.GfxVendorAmd, v1.GfxVendorUnknown} {
		p := Plan(v1.GfxModeAsusEgpu, v1.GfxModeVfio, vendor, Policy{})
		assert.Equal(t, v1.UserActionPlan(v1.UserActionSwitchToIntegrated), p)
	}
}

func TestScenarioAsusMuxDgpuToIntegrated(t *testing.T) {
	p := Plan(v1.GfxModeAsusMuxDgpu, v1.GfxModeIntegrated, v1.GfxVendorNvidia, Policy{})
	assert.Equal(t, v1.StepsPlan(v1.AsusMuxIgpu), p)
}

func TestScenarioIntegratedToHybridAmdLogindOff(t *testing.T) {
	p := Plan(v1.GfxModeIntegrated, v1.GfxModeHybrid, v1.GfxVendorAmd, Policy{NoLogind: true, HotplugType: v1.HotplugNone})
	assert.Equal(t, v1.StepsPlan(
		v1.WriteModprobeConf, v1.CheckVulkanIcd, v1.DevTreeManaged, v1.RescanPci,
		v1.LoadGpuDrivers, v1.NotNvidia, v1.NotNvidia,
	), p)
}

func TestPlanIntoOrOutOfNoneIsNothing(t *testing.T) {
	assert.Equal(t, v1.UserActionPlan(v1.UserActionNothing), Plan(v1.GfxModeHybrid, v1.GfxModeNone, v1.GfxVendorNvidia, Policy{}))
	assert.Equal(t, v1.UserActionPlan(v1.UserActionNothing), Plan(v1.GfxModeNone, v1.GfxModeHybrid, v1.GfxVendorNvidia, Policy{}))
}

func TestBootPlanTotality(t *testing.T) {
	for _, m := range v1.AllGfxModes {
		p := BootPlan(m, v1.GfxVendorNvidia, true)
		if m == v1.GfxModeNone {
			assert.True(t, p.IsUserAction())
			continue
		}
		assert.NotEmpty(t, p.Steps)
	}
}

func TestBootPlanVfioFallsBackWithoutSave(t *testing.T) {
	p := BootPlan(v1.GfxModeVfio, v1.GfxVendorNvidia, false)
	assert.NotContains(t, p.Steps, v1.LoadVfioDrivers)
}
