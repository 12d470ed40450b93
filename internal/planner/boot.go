package planner

import v1 "github.com/dgpud/dgpud/api/v1"

// BootPlan is the shorter sequence run at daemon start to converge a
// fresh boot onto the persisted mode. It never waits on a session or
// display manager (§4.7): at boot there is nothing running yet to tear
// down, so it only covers "make the persisted mode actually true"
// (write the modprobe config, toggle the Vulkan ICD, and load/enable
// the vendor units modprobe's autoprobe doesn't cover on its own).
//
// vfioSave gates whether the vfio drivers are loaded at boot; when
// false, a persisted mode of Vfio gets the same steps as Integrated
// (no LoadVfioDrivers). The persisted mode stays Vfio, and the
// modprobe config written is the Vfio one, which blacklists nvidia.
func BootPlan(mode v1.GfxMode, vendor v1.GfxVendor, vfioSave bool) v1.Plan {
	switch mode {
	case v1.GfxModeHybrid, v1.GfxModeNvidiaNoModeset:
		return v1.StepsPlan(
			v1.WriteModprobeConf,
			v1.CheckVulkanIcd,
			nvidiaOnly(vendor, v1.EnableNvidiaPersistenced),
			nvidiaOnly(vendor, v1.EnableNvidiaPowerd),
		)
	case v1.GfxModeIntegrated:
		return v1.StepsPlan(v1.WriteModprobeConf, v1.CheckVulkanIcd)
	case v1.GfxModeVfio:
		if !vfioSave {
			return v1.StepsPlan(v1.WriteModprobeConf, v1.CheckVulkanIcd)
		}
		return v1.StepsPlan(v1.WriteModprobeConf, v1.CheckVulkanIcd, v1.LoadVfioDrivers)
	case v1.GfxModeAsusEgpu:
		return v1.StepsPlan(
			v1.WriteModprobeConf,
			v1.CheckVulkanIcd,
			v1.AsusEgpuEnable,
			nvidiaOnly(vendor, v1.EnableNvidiaPersistenced),
			nvidiaOnly(vendor, v1.EnableNvidiaPowerd),
		)
	case v1.GfxModeAsusMuxDgpu:
		return v1.StepsPlan(
			v1.CheckVulkanIcd,
			nvidiaOnly(vendor, v1.EnableNvidiaPersistenced),
			nvidiaOnly(vendor, v1.EnableNvidiaPowerd),
		)
	default:
		return v1.UserActionPlan(v1.UserActionNothing)
	}
}
