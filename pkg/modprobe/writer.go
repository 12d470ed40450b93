// Package modprobe generates the system modprobe.d configuration and
// toggles the Nvidia Vulkan ICD registration file, per mode (C6's
// second half; persistence of the Config document itself lives in
// pkg/config).
package modprobe

import (
	"fmt"
	"os"
	"strings"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/fsutil"
	"github.com/dgpud/dgpud/pkg/log"
	"github.com/dgpud/dgpud/pkg/pcireg"
)

const (
	DefaultModprobePath  = "/etc/modprobe.d/dgpud.conf"
	DefaultVulkanICDPath = "/usr/share/vulkan/icd.d/nvidia_icd.json"
	vulkanInactiveSuffix = "_inactive"
)

const (
	nvidiaBaseOptions = "options nvidia NVreg_DynamicPowerManagement=0x02 NVreg_PreserveVideoMemoryAllocations=1\n"
	blacklistNvidia   = "blacklist nvidia\nblacklist nvidia_drm\nblacklist nvidia_modeset\nblacklist nvidia_uvm\n"
	drmModesetOff     = "options nvidia_drm modeset=0\n"
	ecBacklightLine   = "options video disable_backlight=1\n"
)

// Writer is the C6 modprobe/Vulkan-ICD primitive.
type Writer struct {
	ModprobePath  string
	VulkanICDPath string
}

func New() *Writer {
	return &Writer{ModprobePath: DefaultModprobePath, VulkanICDPath: DefaultVulkanICDPath}
}

// Render builds the modprobe.d content for mode, per §4.6's per-mode
// table. vendor != Nvidia writes nothing (AMD/Intel dGPUs need no
// module gating here). devices is only consulted for Vfio, to build
// the `ids=` line from every function in the set.
func Render(mode v1.GfxMode, vendor v1.GfxVendor, devices pcireg.DeviceSet) string {
	if vendor != v1.GfxVendorNvidia {
		return ""
	}

	switch mode {
	case v1.GfxModeHybrid, v1.GfxModeAsusEgpu, v1.GfxModeNvidiaNoModeset:
		return nvidiaBaseOptions + drmModesetOff + ecBacklightLine
	case v1.GfxModeIntegrated:
		return blacklistNvidia + drmModesetOff + ecBacklightLine
	case v1.GfxModeVfio:
		ids := devices.PCIIDs()
		return blacklistNvidia + fmt.Sprintf("options vfio-pci ids=%s,\n", strings.Join(ids, ","))
	case v1.GfxModeAsusMuxDgpu, v1.GfxModeNone:
		return ""
	default:
		return ""
	}
}

// Write truncates and rewrites the modprobe.d file for mode, syncing
// before returning (§5's truncate+write+sync contract).
func (w *Writer) Write(mode v1.GfxMode, vendor v1.GfxVendor, devices pcireg.DeviceSet) error {
	content := Render(mode, vendor, devices)
	log.Logger.Infow("writing modprobe config", "path", w.ModprobePath, "mode", mode, "vendor", vendor)
	return fsutil.WriteTruncate(w.ModprobePath, []byte(content), 0o644)
}

// Read returns the current contents of the modprobe.d file, for P7's
// round-trip property check. A missing file reads as empty content.
func (w *Writer) Read() (string, error) {
	buf, err := os.ReadFile(w.ModprobePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(buf), nil
}

// CheckVulkanICD renames the Nvidia Vulkan ICD file between its active
// and `_inactive` name depending on mode. Vfio and Integrated want the
// ICD hidden from the Vulkan loader (no real dGPU driver is bound);
// every other mode wants it visible. The rename is atomic and
// idempotent (P8): if the file is already in the wanted state, this
// is a no-op.
func (w *Writer) CheckVulkanICD(mode v1.GfxMode) error {
	wantInactive := mode == v1.GfxModeVfio || mode == v1.GfxModeIntegrated
	activePath := w.VulkanICDPath
	inactivePath := w.VulkanICDPath + vulkanInactiveSuffix

	activeExists := fileExists(activePath)
	inactiveExists := fileExists(inactivePath)

	switch {
	case wantInactive && activeExists:
		return os.Rename(activePath, inactivePath)
	case !wantInactive && inactiveExists:
		return os.Rename(inactivePath, activePath)
	default:
		return nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
