package pcireg

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
)

const DefaultBusPath = "/sys/bus/pci"

// settleDelay is the floor imposed by §5: after a bus rescan the
// kernel may take tens to hundreds of milliseconds to re-enumerate;
// dependent steps must wait at least this long before trusting a
// fresh read of sysfs.
const settleDelay = 1100 * time.Millisecond

// AcpiProbe is the subset of the Vendor ACPI Adapter (C3) the registry
// needs to resolve the "dGPU is ACPI-disabled" special case. Satisfied
// by *acpi.Adapter.
type AcpiProbe interface {
	DgpuDisableExists() bool
	DgpuDisabled() (bool, error)
	GpuMuxModeExists() bool
	MuxModeDiscreet() (bool, error)
}

// Registry enumerates and classifies PCI graphics devices.
type Registry struct {
	BusPath string
	Acpi    AcpiProbe

	watcher *fsnotify.Watcher
}

func New(acpi AcpiProbe) *Registry {
	return &Registry{BusPath: DefaultBusPath, Acpi: acpi}
}

// WatchSettle starts an fsnotify watch on the bus's devices directory
// so callers can wait for a write event (new device symlink appearing)
// instead of a bare sleep, while still honoring the settleDelay floor.
func (r *Registry) WatchSettle() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return gfxerr.Wrap(gfxerr.KindUdev, err)
	}
	devicesDir := filepath.Join(r.BusPath, "devices")
	if err := w.Add(devicesDir); err != nil {
		_ = w.Close()
		return gfxerr.WrapPath(gfxerr.KindPathIo, devicesDir, err)
	}
	r.watcher = w
	return nil
}

func (r *Registry) CloseWatch() {
	if r.watcher != nil {
		_ = r.watcher.Close()
		r.watcher = nil
	}
}

// AwaitSettle blocks until a bus event is observed, ctx expires, or
// settleDelay passes (only when a watch is active), then additionally
// sleeps out the settleDelay floor so a re-enumeration right after
// sees a fully-probed device tree.
func (r *Registry) AwaitSettle(ctx context.Context) {
	if r.watcher != nil {
		select {
		case <-r.watcher.Events:
		case <-r.watcher.Errors:
		case <-ctx.Done():
		case <-time.After(settleDelay):
		}
	}
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
	}
}

// Enumerate walks the PCI bus, classifies the dGPU (if any), and
// returns the DeviceSet plus the vendor driving it. If no dGPU is
// found on the bus, the ASUS ACPI adapter is consulted for the two
// documented override cases before DgpuNotFound is returned.
func (r *Registry) Enumerate(ctx context.Context) (DeviceSet, v1.GfxVendor, error) {
	devicesDir := filepath.Join(r.BusPath, "devices")
	entries, err := os.ReadDir(devicesDir)
	if err != nil {
		return nil, v1.GfxVendorUnknown, gfxerr.WrapPath(gfxerr.KindPathIo, devicesDir, err)
	}

	addrs := make([]string, 0, len(entries))
	for _, e := range entries {
		addrs = append(addrs, e.Name())
	}
	sort.Strings(addrs)

	var dgpuAddr, dgpuClass, dgpuModel string
	var dgpuVendor v1.GfxVendor
	found := false

	for _, addr := range addrs {
		sysfsPath := filepath.Join(devicesDir, addr)
		pciID, class, ok := readUevent(sysfsPath)
		if !ok {
			continue
		}
		vendorID, _, ok := splitPCIID(pciID)
		if !ok {
			continue
		}
		vendor := v1.GfxVendorFromPCIID(vendorID)
		if vendor != v1.GfxVendorNvidia && vendor != v1.GfxVendorAmd {
			continue
		}
		model := readModelHint(sysfsPath)
		if classifyDgpu(sysfsPath, class, model, vendor == v1.GfxVendorAmd) {
			dgpuAddr, dgpuClass, dgpuModel, dgpuVendor = addr, class, model, vendor
			found = true
			break
		}
	}

	if !found {
		return r.acpiOverride(ctx)
	}
	_ = dgpuClass
	_ = dgpuModel

	group := r.siblingGroup(addrs, dgpuAddr)
	set := make(DeviceSet, 0, len(group))
	for _, addr := range group {
		sysfsPath := filepath.Join(devicesDir, addr)
		pciID, _, _ := readUevent(sysfsPath)
		vendorID, deviceID, _ := splitPCIID(pciID)
		set = append(set, PciDevice{
			SysfsPath:     sysfsPath,
			SlotPowerPath: findSlotPowerPath(r.BusPath, addr),
			Vendor:        v1.GfxVendorFromPCIID(vendorID),
			IsDgpu:        addr == dgpuAddr,
			Address:       addr,
			PCIID:         strings.ToLower(vendorID[2:] + ":" + deviceID),
		})
	}

	log.Logger.Infow("enumerated dgpu device set", "dgpu", dgpuAddr, "vendor", dgpuVendor, "devices", len(set))
	return set, dgpuVendor, nil
}

// acpiOverride implements the two special cases from spec §4.1: the
// dGPU is invisible to PCI enumeration because ASUS ACPI has
// power-gated it, or the ASUS MUX is routed to the dGPU.
func (r *Registry) acpiOverride(ctx context.Context) (DeviceSet, v1.GfxVendor, error) {
	if r.Acpi == nil {
		return nil, v1.GfxVendorUnknown, gfxerr.DgpuNotFound()
	}
	if r.Acpi.DgpuDisableExists() {
		disabled, err := r.Acpi.DgpuDisabled()
		if err == nil && disabled {
			return DeviceSet{}, v1.GfxVendorAsusDgpuDisabled, nil
		}
	}
	if r.Acpi.GpuMuxModeExists() {
		discreet, err := r.Acpi.MuxModeDiscreet()
		if err == nil && discreet {
			return DeviceSet{}, v1.GfxVendorNvidia, nil
		}
	}
	return nil, v1.GfxVendorUnknown, gfxerr.DgpuNotFound()
}

// siblingGroup returns addrs restricted to the contiguous run sharing
// dgpuAddr's function-stripped prefix (its bus:device), in sysfs
// enumeration order, per §4.1's "stop when a device outside that
// parent appears".
func (r *Registry) siblingGroup(addrs []string, dgpuAddr string) []string {
	prefix := functionPrefix(dgpuAddr)
	start := -1
	for i, a := range addrs {
		if functionPrefix(a) == prefix {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			return addrs[start:i]
		}
	}
	if start != -1 {
		return addrs[start:]
	}
	return []string{dgpuAddr}
}

// functionPrefix strips the trailing ".N" function digit from a PCI
// sysname, e.g. "0000:01:00.1" -> "0000:01:00".
func functionPrefix(addr string) string {
	if i := strings.LastIndex(addr, "."); i != -1 {
		return addr[:i]
	}
	return addr
}

func readUevent(sysfsPath string) (pciID, class string, ok bool) {
	f, err := os.Open(filepath.Join(sysfsPath, "uevent"))
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "PCI_ID="):
			pciID = strings.TrimPrefix(line, "PCI_ID=")
		case strings.HasPrefix(line, "PCI_CLASS="):
			class = strings.TrimPrefix(line, "PCI_CLASS=")
		}
	}
	return pciID, class, pciID != ""
}

// splitPCIID splits a "10DE:2560" uevent PCI_ID into lowercase
// "0x10de" vendor and "2560" device, to match GfxVendorFromPCIID's
// expected format.
func splitPCIID(pciID string) (vendor, device string, ok bool) {
	parts := strings.SplitN(pciID, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return "0x" + strings.ToLower(parts[0]), strings.ToLower(parts[1]), true
}

// readModelHint returns the best-effort model string for the name
// fragment fallback: the value of an ID_MODEL_FROM_DATABASE line in the
// device's uevent file if present, else empty. No other source is read.
func readModelHint(sysfsPath string) string {
	b, err := os.ReadFile(filepath.Join(sysfsPath, "uevent"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(line, "ID_MODEL_FROM_DATABASE=") {
			return strings.TrimPrefix(line, "ID_MODEL_FROM_DATABASE=")
		}
	}
	return ""
}

// findSlotPowerPath locates the PCIe slot power control file for addr
// by scanning /sys/bus/pci/slots/*/address for a prefix match. Returns
// "" if the platform exposes no standard hotplug slot for this device.
func findSlotPowerPath(busPath, addr string) string {
	slotsDir := filepath.Join(busPath, "slots")
	entries, err := os.ReadDir(slotsDir)
	if err != nil {
		return ""
	}
	target := functionPrefix(addr)
	for _, e := range entries {
		addrFile := filepath.Join(slotsDir, e.Name(), "address")
		b, err := os.ReadFile(addrFile)
		if err != nil {
			continue
		}
		if strings.Contains(target, strings.TrimSpace(string(b))) {
			power := filepath.Join(slotsDir, e.Name(), "power")
			if _, err := os.Stat(power); err == nil {
				return power
			}
		}
	}
	return ""
}
