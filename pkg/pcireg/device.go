// Package pcireg implements the Device Registry: enumeration and
// classification of the dGPU and its sibling PCI functions from sysfs.
package pcireg

import v1 "github.com/dgpud/dgpud/api/v1"

// PciDevice is one PCI function under the bus: either the dGPU itself
// or one of its sibling functions (audio, USB controller, ...) living
// under the same upstream bridge.
type PciDevice struct {
	// SysfsPath is e.g. /sys/bus/pci/devices/0000:01:00.0.
	SysfsPath string
	// SlotPowerPath is the sysfs node controlling PCIe slot power, if
	// the platform exposes one for this device's slot.
	SlotPowerPath string
	Vendor        v1.GfxVendor
	IsDgpu        bool
	// Address is the kernel PCI address, e.g. "0000:01:00.0".
	Address string
	// PCIID is "vendor:device" in lowercase hex, used for VFIO binding
	// (modprobe.d `vfio-pci ids=...`).
	PCIID string
}

func (d PciDevice) HasSlotPower() bool { return d.SlotPowerPath != "" }

// DeviceSet is an ordered sequence of PciDevice: the dGPU plus its
// downstream sibling functions under the same parent bridge, in
// enumeration order. Exactly one element has IsDgpu == true, except in
// the ASUS ACPI-override case, where Enumerate returns an empty set.
type DeviceSet []PciDevice

// Dgpu returns the device flagged as the discrete GPU, if any.
func (s DeviceSet) Dgpu() (PciDevice, bool) {
	for _, d := range s {
		if d.IsDgpu {
			return d, true
		}
	}
	return PciDevice{}, false
}

// Reversed returns a copy of s in reverse order. unbind_remove and
// unbind must walk the set in this order: a function deeper in
// the tree (e.g. the dGPU's HDMI audio controller) must be torn down
// before the bridge that owns it.
func (s DeviceSet) Reversed() DeviceSet {
	out := make(DeviceSet, len(s))
	for i, d := range s {
		out[len(s)-1-i] = d
	}
	return out
}

// PCIIDs returns the "vendor:device" identifier of every device in the
// set, in set order — used to build the VFIO modprobe.d `ids=` line.
func (s DeviceSet) PCIIDs() []string {
	ids := make([]string, 0, len(s))
	for _, d := range s {
		if d.PCIID != "" {
			ids = append(ids, d.PCIID)
		}
	}
	return ids
}
