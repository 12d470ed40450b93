package driver

import (
	"os"
	"path/filepath"

	"github.com/dgpud/dgpud/pkg/fsutil"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
	"github.com/dgpud/dgpud/pkg/pcireg"
)

const pciBusPath = "/sys/bus/pci"

// Unbind writes device's PCI address to {driver}/unbind. A no-op if
// the device has no driver symlink (already unbound).
func (p *Primitive) Unbind(dev pcireg.PciDevice) error {
	driverLink := filepath.Join(dev.SysfsPath, "driver")
	if _, err := os.Lstat(driverLink); err != nil {
		return nil
	}
	unbindPath := filepath.Join(driverLink, "unbind")
	log.Logger.Infow("unbinding device", "address", dev.Address, "path", unbindPath)
	if err := fsutil.WriteTruncate(unbindPath, []byte(dev.Address), 0o200); err != nil {
		return gfxerr.WrapPath(gfxerr.KindWrite, unbindPath, err)
	}
	return nil
}

// Remove writes "1" to {device}/remove. A no-op if the device path is
// already gone.
func (p *Primitive) Remove(dev pcireg.PciDevice) error {
	removePath := filepath.Join(dev.SysfsPath, "remove")
	if _, err := os.Stat(dev.SysfsPath); err != nil {
		return nil
	}
	log.Logger.Infow("removing device", "address", dev.Address, "path", removePath)
	if err := fsutil.WriteTruncate(removePath, []byte("1"), 0o200); err != nil {
		return gfxerr.WrapPath(gfxerr.KindWrite, removePath, err)
	}
	return nil
}

// UnbindRemove iterates the set in reverse order, unbinding then
// removing each device — the reverse order matters because a sibling
// function deeper in the PCI tree must be torn down before the
// function that owns the slot.
func (p *Primitive) UnbindRemove(set pcireg.DeviceSet) error {
	for _, dev := range set.Reversed() {
		if err := p.Unbind(dev); err != nil {
			return err
		}
		if err := p.Remove(dev); err != nil {
			return err
		}
	}
	return nil
}

// UnbindOnly unbinds every device in the set, in reverse order,
// without removing it from the PCI tree (used by Integrated -> Vfio,
// where the device must stay on the bus for vfio-pci to claim it).
func (p *Primitive) UnbindOnly(set pcireg.DeviceSet) error {
	for _, dev := range set.Reversed() {
		if err := p.Unbind(dev); err != nil {
			return err
		}
	}
	return nil
}

// RescanPCIBus writes "1" to /sys/bus/pci/rescan, asking the kernel to
// re-probe the bus for newly-visible devices.
func (p *Primitive) RescanPCIBus() error {
	rescanPath := filepath.Join(pciBusPath, "rescan")
	log.Logger.Infow("rescanning pci bus", "path", rescanPath)
	if err := fsutil.WriteTruncate(rescanPath, []byte("1"), 0o200); err != nil {
		return gfxerr.WrapPath(gfxerr.KindWrite, rescanPath, err)
	}
	return nil
}

// HotplugSlotPower writes "0" or "1" to a device's slot power file,
// for platforms exposing standard PCIe hotplug (HotplugType == Std).
func (p *Primitive) HotplugSlotPower(dev pcireg.PciDevice, on bool) error {
	if !dev.HasSlotPower() {
		return gfxerr.New(gfxerr.KindNotSupported, "device has no slot power control")
	}
	v := "0"
	if on {
		v = "1"
	}
	log.Logger.Infow("setting slot power", "path", dev.SlotPowerPath, "on", on)
	if err := fsutil.WriteTruncate(dev.SlotPowerPath, []byte(v), 0o644); err != nil {
		return gfxerr.WrapPath(gfxerr.KindWrite, dev.SlotPowerPath, err)
	}
	return nil
}
