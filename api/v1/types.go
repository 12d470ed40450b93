// Package v1 defines the wire types shared between the dgpud daemon,
// its D-Bus surface, and the CLI client.
package v1

import (
	"fmt"
	"strings"
)

// GfxMode is the graphics mode the daemon can place the machine into.
type GfxMode string

const (
	GfxModeHybrid          GfxMode = "Hybrid"
	GfxModeIntegrated      GfxMode = "Integrated"
	GfxModeNvidiaNoModeset GfxMode = "NvidiaNoModeset"
	GfxModeVfio            GfxMode = "Vfio"
	GfxModeAsusEgpu        GfxMode = "AsusEgpu"
	GfxModeAsusMuxDgpu     GfxMode = "AsusMuxDgpu"
	GfxModeNone            GfxMode = "None"
)

// AllGfxModes lists every mode in a stable order, for exhaustive
// iteration (e.g. building the supported() response).
var AllGfxModes = []GfxMode{
	GfxModeHybrid,
	GfxModeIntegrated,
	GfxModeNvidiaNoModeset,
	GfxModeVfio,
	GfxModeAsusEgpu,
	GfxModeAsusMuxDgpu,
	GfxModeNone,
}

func (m GfxMode) Valid() bool {
	for _, v := range AllGfxModes {
		if v == m {
			return true
		}
	}
	return false
}

func ParseGfxMode(s string) (GfxMode, error) {
	m := GfxMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown gfx mode %q", s)
	}
	return m, nil
}

// GfxVendor identifies the PCI vendor driving the dGPU, or the special
// case where the dGPU is invisible because ASUS ACPI has disabled it.
type GfxVendor string

const (
	GfxVendorNvidia           GfxVendor = "Nvidia"
	GfxVendorAmd              GfxVendor = "Amd"
	GfxVendorIntel            GfxVendor = "Intel"
	GfxVendorUnknown          GfxVendor = "Unknown"
	GfxVendorAsusDgpuDisabled GfxVendor = "AsusDgpuDisabled"
)

// PCI vendor IDs, as reported in sysfs uevent/vendor files.
const (
	PCIVendorIDNvidia = "0x10de"
	PCIVendorIDAmd    = "0x1002"
	PCIVendorIDIntel  = "0x8086"
)

// GfxVendorFromPCIID maps a `0x....` PCI vendor id (any case) to a GfxVendor.
func GfxVendorFromPCIID(id string) GfxVendor {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case PCIVendorIDNvidia:
		return GfxVendorNvidia
	case PCIVendorIDAmd:
		return GfxVendorAmd
	case PCIVendorIDIntel:
		return GfxVendorIntel
	default:
		return GfxVendorUnknown
	}
}

// GfxPower is the dGPU's runtime power state.
type GfxPower string

const (
	GfxPowerActive          GfxPower = "active"
	GfxPowerSuspended       GfxPower = "suspended"
	GfxPowerOff             GfxPower = "off"
	GfxPowerAsusDisabled    GfxPower = "dgpu_disabled"
	GfxPowerAsusMuxDiscreet GfxPower = "asus_mux_discreet"
	GfxPowerUnknown         GfxPower = "unknown"
)

// ParseGfxPower parses the contents of a power/runtime_status sysfs node.
func ParseGfxPower(s string) GfxPower {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return GfxPowerActive
	case "suspended":
		return GfxPowerSuspended
	case "off":
		return GfxPowerOff
	case "dgpu_disabled":
		return GfxPowerAsusDisabled
	case "asus_mux_discreet":
		return GfxPowerAsusMuxDiscreet
	default:
		return GfxPowerUnknown
	}
}

// HotplugType selects the mechanism used to make the dGPU disappear
// from, or reappear on, the PCI bus.
type HotplugType string

const (
	HotplugStd  HotplugType = "Std"
	HotplugAsus HotplugType = "Asus"
	HotplugNone HotplugType = "None"
)

func (h HotplugType) Valid() bool {
	switch h {
	case HotplugStd, HotplugAsus, HotplugNone:
		return true
	default:
		return false
	}
}

// ParseHotplugType accepts the canonical names case-insensitively, for
// decoding historical config fixtures that stored hotplug_type as a
// bare, unvalidated string.
func ParseHotplugType(s string) (HotplugType, error) {
	for _, h := range []HotplugType{HotplugStd, HotplugAsus, HotplugNone} {
		if strings.EqualFold(string(h), s) {
			return h, nil
		}
	}
	return "", fmt.Errorf("unknown hotplug type %q", s)
}

// UserActionRequired is returned by the planner, or by set_mode, when
// the transition cannot be carried out by the daemon alone.
type UserActionRequired string

const (
	UserActionLogout             UserActionRequired = "Logout"
	UserActionReboot             UserActionRequired = "Reboot"
	UserActionSwitchToIntegrated UserActionRequired = "SwitchToIntegrated"
	UserActionAsusEgpuDisable    UserActionRequired = "AsusEgpuDisable"
	UserActionNothing            UserActionRequired = "Nothing"
)

// ConfigView is the D-Bus-safe projection of the persisted Config,
// mirroring the upstream GfxConfigDbus shape. It is never persisted
// on its own; it is built on demand from Config.
type ConfigView struct {
	Mode           GfxMode     `json:"mode"`
	VfioEnable     bool        `json:"vfio_enable"`
	VfioSave       bool        `json:"vfio_save"`
	AlwaysReboot   bool        `json:"always_reboot"`
	NoLogind       bool        `json:"no_logind"`
	LogoutTimeoutS uint64      `json:"logout_timeout_s"`
	HotplugType    HotplugType `json:"hotplug_type"`
}
