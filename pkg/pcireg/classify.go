package pcireg

import (
	"os"
	"path/filepath"
	"strings"
)

// dgpuNameFragments is the fallback model-string match used when no
// more conclusive signal (internal panel, display class, hwmon) is
// available. Order doesn't matter; any substring match qualifies.
var dgpuNameFragments = []string{
	"Radeon RX",
	"AMD/ATI",
	"GeForce",
	"Geforce",
	"Quadro",
	"T1200",
}

// MatchesDgpuNameFragment reports whether model (a udev ID_MODEL_FROM_DATABASE
// string, or an `lspci -d vendor:device` line) names a known dGPU part.
func MatchesDgpuNameFragment(model string) bool {
	for _, frag := range dgpuNameFragments {
		if strings.Contains(model, frag) {
			return true
		}
	}
	return false
}

// hasInternalPanel reports whether any DRM connector reachable from the
// PCI device at sysfsPath is the internal panel (eDP-1). A device
// driving eDP-1 is, by definition, the iGPU.
func hasInternalPanel(sysfsPath string) bool {
	drm := filepath.Join(sysfsPath, "drm")
	entries, err := os.ReadDir(drm)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "eDP-1") {
			return true
		}
	}
	return false
}

// isDisplayControllerClass reports whether a PCI class code is a
// display controller (class byte 0x03). It accepts the uevent
// PCI_CLASS form, which has no leading zero (e.g. "30000"), as well as
// the sysfs `class` file form (e.g. "0x030000").
func isDisplayControllerClass(class string) bool {
	c := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(class)), "0x")
	if len(c) == 5 {
		c = "0" + c
	}
	return strings.HasPrefix(c, "03")
}

// hasHwmonPowerInput reports whether the device exposes an
// `hwmon/*/in1_input` node. AMD parts that expose one are, empirically,
// integrated; AMD parts without one are discrete.
func hasHwmonPowerInput(sysfsPath string) bool {
	matches, err := filepath.Glob(filepath.Join(sysfsPath, "hwmon", "hwmon*", "in1_input"))
	if err != nil {
		return false
	}
	return len(matches) > 0
}

// classifyDgpu runs the classification cascade from spec §4.1 against a
// single candidate Nvidia/AMD device and returns whether it is the
// dGPU. model is the best available name string for the fallback step
// (udev ID_MODEL_FROM_DATABASE, or an lspci description).
func classifyDgpu(sysfsPath, class, model string, isAMD bool) bool {
	if hasInternalPanel(sysfsPath) {
		return false // drives the internal panel: this is the iGPU
	}
	if isDisplayControllerClass(class) {
		return true
	}
	if isAMD {
		// presence of power monitoring is typical of integrated parts
		return !hasHwmonPowerInput(sysfsPath)
	}
	return MatchesDgpuNameFragment(model)
}
