package pcireg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUevent(t *testing.T, dir, pciID, class string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "DRIVER=nvidia\nPCI_CLASS=" + class + "\nPCI_ID=" + pciID + "\nPCI_SUBSYS_ID=1028:0000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uevent"), []byte(content), 0o644))
}

func TestEnumerateFindsNvidiaDgpuAndSiblings(t *testing.T) {
	root := t.TempDir()
	devicesDir := filepath.Join(root, "devices")

	// dGPU function 0 (VGA controller, class 0x030000) + audio function 1.
	writeUevent(t, filepath.Join(devicesDir, "0000:01:00.0"), "10DE:2560", "030000")
	writeUevent(t, filepath.Join(devicesDir, "0000:01:00.1"), "10DE:228B", "040300")
	// An unrelated bridge that must not be swept into the set.
	writeUevent(t, filepath.Join(devicesDir, "0000:00:01.0"), "8086:9A09", "060400")

	reg := New(nil)
	reg.BusPath = root

	set, vendor, err := reg.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1.GfxVendorNvidia, vendor)
	require.Len(t, set, 2)

	dgpu, ok := set.Dgpu()
	require.True(t, ok)
	assert.Equal(t, "0000:01:00.0", dgpu.Address)
	assert.Equal(t, "10de:2560", dgpu.PCIID)
	assert.False(t, set[1].IsDgpu)
}

func TestDeviceSetReversedOrder(t *testing.T) {
	set := DeviceSet{
		{Address: "0000:01:00.0", IsDgpu: true},
		{Address: "0000:01:00.1"},
		{Address: "0000:01:00.2"},
	}
	rev := set.Reversed()
	require.Len(t, rev, 3)
	assert.Equal(t, "0000:01:00.2", rev[0].Address)
	assert.Equal(t, "0000:01:00.1", rev[1].Address)
	assert.Equal(t, "0000:01:00.0", rev[2].Address)
}

func TestEnumerateNoDgpuConsultsAcpiOverride(t *testing.T) {
	root := t.TempDir()
	devicesDir := filepath.Join(root, "devices")
	// Only an Intel iGPU on the bus.
	writeUevent(t, filepath.Join(devicesDir, "0000:00:02.0"), "8086:46A6", "030000")

	t.Run("dgpu_disable reports disabled", func(t *testing.T) {
		reg := New(fakeAcpi{dgpuDisableExists: true, dgpuDisabled: true})
		reg.BusPath = root
		set, vendor, err := reg.Enumerate(context.Background())
		require.NoError(t, err)
		assert.Empty(t, set)
		assert.Equal(t, v1.GfxVendorAsusDgpuDisabled, vendor)
	})

	t.Run("mux mode discreet", func(t *testing.T) {
		reg := New(fakeAcpi{muxExists: true, muxDiscreet: true})
		reg.BusPath = root
		set, vendor, err := reg.Enumerate(context.Background())
		require.NoError(t, err)
		assert.Empty(t, set)
		assert.Equal(t, v1.GfxVendorNvidia, vendor)
	})

	t.Run("no override available returns DgpuNotFound", func(t *testing.T) {
		reg := New(fakeAcpi{})
		reg.BusPath = root
		_, _, err := reg.Enumerate(context.Background())
		require.Error(t, err)
	})
}

type fakeAcpi struct {
	dgpuDisableExists bool
	dgpuDisabled      bool
	muxExists         bool
	muxDiscreet       bool
}

func (f fakeAcpi) DgpuDisableExists() bool             { return f.dgpuDisableExists }
func (f fakeAcpi) DgpuDisabled() (bool, error)         { return f.dgpuDisabled, nil }
func (f fakeAcpi) GpuMuxModeExists() bool              { return f.muxExists }
func (f fakeAcpi) MuxModeDiscreet() (bool, error)      { return f.muxDiscreet, nil }
