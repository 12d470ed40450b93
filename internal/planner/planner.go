// Package planner implements the Action Planner (C7): a pure, total
// function from (from-mode, to-mode, vendor, policy) to either an
// ordered Plan of StagedActions or a UserActionRequired verdict.
package planner

import (
	v1 "github.com/dgpud/dgpud/api/v1"
)

// Policy is the subset of the persisted Config the planner consults.
// It is its own type (rather than *config.Config) so this package has
// no dependency on config's persistence/migration concerns — it only
// needs the fields that shape a plan.
type Policy struct {
	NoLogind     bool
	AlwaysReboot bool
	HotplugType  v1.HotplugType
}

func killGpuUse(vendor v1.GfxVendor) v1.StagedAction {
	switch vendor {
	case v1.GfxVendorNvidia:
		return v1.KillNvidia
	case v1.GfxVendorAmd:
		return v1.KillAmd
	default:
		return v1.NotNvidia
	}
}

// nvidiaOnly resolves a vendor-conditional Nvidia step (persistenced/
// powerd enable/disable) to its no-op marker for any other vendor.
func nvidiaOnly(vendor v1.GfxVendor, real v1.StagedAction) v1.StagedAction {
	if vendor == v1.GfxVendorNvidia {
		return real
	}
	return v1.NotNvidia
}

func hotplugRemove(h v1.HotplugType) v1.StagedAction {
	switch h {
	case v1.HotplugStd:
		return v1.HotplugUnplug
	case v1.HotplugAsus:
		return v1.AsusDgpuDisable
	default:
		return v1.DevTreeManaged
	}
}

func hotplugAdd(h v1.HotplugType) v1.StagedAction {
	switch h {
	case v1.HotplugStd:
		return v1.HotplugPlug
	case v1.HotplugAsus:
		return v1.AsusDgpuEnable
	default:
		return v1.DevTreeManaged
	}
}

// builder accumulates steps and applies the logind-gating rule
// in-line: wait_logout/stop_display/start_display are omitted outright
// (not replaced by NoLogind) when !logind, matching the normative
// scenario in TestScenarioIntegratedToHybridAmdLogindOff.
type builder struct {
	steps  []v1.StagedAction
	logind bool
}

func (b *builder) add(s v1.StagedAction) *builder {
	b.steps = append(b.steps, s)
	return b
}

func (b *builder) addGated(s v1.StagedAction) *builder {
	if b.logind {
		b.steps = append(b.steps, s)
	}
	return b
}

// Plan is the pure, total planning function. from == to always yields
// UserAction(Nothing) (P2); so does either endpoint being None, except
// that an exit from AsusMuxDgpu (to None included) is [AsusMuxIgpu].
func Plan(from, to v1.GfxMode, vendor v1.GfxVendor, policy Policy) v1.Plan {
	if from == to {
		return v1.UserActionPlan(v1.UserActionNothing)
	}
	if from == v1.GfxModeAsusMuxDgpu {
		// P6: every exit from AsusMuxDgpu is this single step,
		// including to None; the MUX write only takes effect after
		// reboot, reported by the controller as
		// UserActionRequired(Reboot) once this step runs.
		return v1.StepsPlan(v1.AsusMuxIgpu)
	}
	if from == v1.GfxModeNone || to == v1.GfxModeNone {
		return v1.UserActionPlan(v1.UserActionNothing)
	}

	logind := !policy.NoLogind && !policy.AlwaysReboot
	b := &builder{logind: logind}

	switch from {
	case v1.GfxModeHybrid:
		switch to {
		case v1.GfxModeIntegrated:
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(hotplugRemove(policy.HotplugType)).
				addGated(v1.StartDisplayManager)
		case v1.GfxModeVfio:
			return v1.UserActionPlan(v1.UserActionSwitchToIntegrated)
		case v1.GfxModeAsusEgpu:
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.AsusEgpuEnable).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				addGated(v1.StartDisplayManager)
		case v1.GfxModeAsusMuxDgpu:
			b.add(v1.CheckVulkanIcd).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				add(v1.AsusMuxDgpuStep)
		default:
			return v1.UserActionPlan(v1.UserActionNothing)
		}

	case v1.GfxModeIntegrated:
		switch to {
		case v1.GfxModeHybrid:
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(hotplugAdd(policy.HotplugType)).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				addGated(v1.StartDisplayManager)
		case v1.GfxModeNvidiaNoModeset:
			b.add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd))
		case v1.GfxModeVfio:
			b.add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(hotplugAdd(policy.HotplugType)).
				add(v1.RescanPci).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindGpu).
				add(v1.LoadVfioDrivers)
		case v1.GfxModeAsusEgpu:
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.AsusEgpuEnable).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				addGated(v1.StartDisplayManager)
		case v1.GfxModeAsusMuxDgpu:
			b.add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(hotplugAdd(policy.HotplugType)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				add(v1.AsusMuxDgpuStep)
		default:
			return v1.UserActionPlan(v1.UserActionNothing)
		}

	case v1.GfxModeNvidiaNoModeset:
		switch to {
		case v1.GfxModeIntegrated:
			b.add(v1.SendDetachEvent).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd)
		case v1.GfxModeVfio:
			b.add(v1.SendDetachEvent).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.LoadVfioDrivers)
		default:
			return v1.UserActionPlan(v1.UserActionNothing)
		}

	case v1.GfxModeVfio:
		switch to {
		case v1.GfxModeHybrid, v1.GfxModeNvidiaNoModeset:
			b.add(killGpuUse(vendor)).
				add(v1.UnloadVfioDrivers).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers)
		case v1.GfxModeIntegrated:
			b.add(killGpuUse(vendor)).
				add(v1.UnloadVfioDrivers).
				add(v1.UnbindRemoveGpu)
		case v1.GfxModeAsusEgpu:
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(v1.UnloadVfioDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.AsusEgpuEnable).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				addGated(v1.StartDisplayManager)
		default:
			return v1.UserActionPlan(v1.UserActionNothing)
		}

	case v1.GfxModeAsusEgpu:
		switch to {
		case v1.GfxModeHybrid:
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(v1.AsusEgpuDisable).
				add(v1.AsusDgpuEnable).
				add(v1.RescanPci).
				add(v1.LoadGpuDrivers).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.EnableNvidiaPowerd)).
				addGated(v1.StartDisplayManager)
		case v1.GfxModeIntegrated:
			// WriteModprobeConf appears twice here, kept faithfully —
			// see SPEC_FULL.md §9's note on this cell.
			b.addGated(v1.WaitLogout).addGated(v1.StopDisplayManager).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPersistenced)).
				add(nvidiaOnly(vendor, v1.DisableNvidiaPowerd)).
				add(killGpuUse(vendor)).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.AsusEgpuDisable).
				add(v1.UnloadGpuDrivers).
				add(v1.UnbindRemoveGpu).
				add(v1.WriteModprobeConf).
				add(v1.CheckVulkanIcd).
				add(hotplugRemove(policy.HotplugType)).
				addGated(v1.StartDisplayManager)
		case v1.GfxModeVfio:
			return v1.UserActionPlan(v1.UserActionSwitchToIntegrated)
		case v1.GfxModeAsusMuxDgpu:
			return v1.UserActionPlan(v1.UserActionAsusEgpuDisable)
		default:
			return v1.UserActionPlan(v1.UserActionNothing)
		}

	default:
		return v1.UserActionPlan(v1.UserActionNothing)
	}

	if len(b.steps) == 0 {
		return v1.UserActionPlan(v1.UserActionNothing)
	}
	return v1.StepsPlan(b.steps...)
}
