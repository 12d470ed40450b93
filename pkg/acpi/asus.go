// Package acpi implements the Vendor ACPI Adapter (C3): the three
// ASUS-specific sysfs controls for dGPU power-gating, eGPU dock
// enablement, and MUX routing.
package acpi

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dgpud/dgpud/pkg/fsutil"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
)

const DefaultPlatformPath = "/sys/devices/platform/asus-nb-wmi"

const (
	nodeDgpuDisable = "dgpu_disable"
	nodeEgpuEnable  = "egpu_enable"
	nodeGpuMuxMode  = "gpu_mux_mode"
)

// MuxMode is the value of gpu_mux_mode: the hardware MUX routes the
// internal panel to either the dGPU (Discreet) or iGPU (Integrated).
// A write only takes effect after reboot.
type MuxMode int

const (
	MuxModeDiscreet   MuxMode = 0
	MuxModeIntegrated MuxMode = 1
)

// Adapter probes and drives the three ASUS ACPI sysfs nodes. Each node
// is checked for existence before use, since not every ASUS platform
// exposes all three.
type Adapter struct {
	PlatformPath string
}

func New() *Adapter {
	return &Adapter{PlatformPath: DefaultPlatformPath}
}

func (a *Adapter) nodePath(name string) string {
	return filepath.Join(a.PlatformPath, name)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (a *Adapter) DgpuDisableExists() bool { return exists(a.nodePath(nodeDgpuDisable)) }
func (a *Adapter) EgpuEnableExists() bool  { return exists(a.nodePath(nodeEgpuEnable)) }
func (a *Adapter) GpuMuxModeExists() bool  { return exists(a.nodePath(nodeGpuMuxMode)) }

func readBoolNode(path string) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, gfxerr.WrapPath(gfxerr.KindPathIo, path, err)
	}
	return strings.TrimSpace(string(b)) == "1", nil
}

func writeNode(path, value string) error {
	return fsutil.WriteTruncate(path, []byte(value), 0o644)
}

// DgpuDisabled reads the current dgpu_disable state.
func (a *Adapter) DgpuDisabled() (bool, error) {
	return readBoolNode(a.nodePath(nodeDgpuDisable))
}

// SetDgpuDisabled writes dgpu_disable. Writing "1" power-gates the dGPU
// at firmware level and it disappears from PCI; writing "0" restores
// it, requiring a subsequent bus rescan.
func (a *Adapter) SetDgpuDisabled(disabled bool) error {
	v := "0"
	if disabled {
		v = "1"
	}
	log.Logger.Infow("writing dgpu_disable", "value", v)
	return writeNode(a.nodePath(nodeDgpuDisable), v)
}

// EgpuEnabled reads the current egpu_enable state.
func (a *Adapter) EgpuEnabled() (bool, error) {
	return readBoolNode(a.nodePath(nodeEgpuEnable))
}

// SetEgpuEnabled writes egpu_enable. Writing "1" enables the external
// dock and simultaneously disables the internal dGPU via the same ACPI
// path; writing "0" reverses both.
func (a *Adapter) SetEgpuEnabled(enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	log.Logger.Infow("writing egpu_enable", "value", v)
	return writeNode(a.nodePath(nodeEgpuEnable), v)
}

// MuxMode reads the current gpu_mux_mode.
func (a *Adapter) MuxMode() (MuxMode, error) {
	b, err := os.ReadFile(a.nodePath(nodeGpuMuxMode))
	if err != nil {
		return 0, gfxerr.WrapPath(gfxerr.KindPathIo, a.nodePath(nodeGpuMuxMode), err)
	}
	if strings.TrimSpace(string(b)) == "1" {
		return MuxModeIntegrated, nil
	}
	return MuxModeDiscreet, nil
}

// MuxModeDiscreet reports whether gpu_mux_mode currently selects the
// dGPU. Used by the registry's ACPI-override path.
func (a *Adapter) MuxModeDiscreet() (bool, error) {
	m, err := a.MuxMode()
	if err != nil {
		return false, err
	}
	return m == MuxModeDiscreet, nil
}

// SetMuxMode writes gpu_mux_mode. The change only takes effect after
// reboot — callers must still signal UserActionReboot.
func (a *Adapter) SetMuxMode(mode MuxMode) error {
	v := "0"
	if mode == MuxModeIntegrated {
		v = "1"
	}
	log.Logger.Infow("writing gpu_mux_mode (effective after reboot)", "value", v)
	return writeNode(a.nodePath(nodeGpuMuxMode), v)
}
