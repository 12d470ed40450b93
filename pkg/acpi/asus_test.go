package acpi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	dir := t.TempDir()
	return &Adapter{PlatformPath: dir}
}

func TestDgpuDisableRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, os.WriteFile(filepath.Join(a.PlatformPath, nodeDgpuDisable), []byte("0"), 0o644))

	assert.True(t, a.DgpuDisableExists())

	disabled, err := a.DgpuDisabled()
	require.NoError(t, err)
	assert.False(t, disabled)

	require.NoError(t, a.SetDgpuDisabled(true))
	disabled, err = a.DgpuDisabled()
	require.NoError(t, err)
	assert.True(t, disabled)
}

func TestMuxModeRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, os.WriteFile(filepath.Join(a.PlatformPath, nodeGpuMuxMode), []byte("0"), 0o644))

	discreet, err := a.MuxModeDiscreet()
	require.NoError(t, err)
	assert.True(t, discreet)

	require.NoError(t, a.SetMuxMode(MuxModeIntegrated))
	mode, err := a.MuxMode()
	require.NoError(t, err)
	assert.Equal(t, MuxModeIntegrated, mode)
}

func TestNodeExistsFalseWhenAbsent(t *testing.T) {
	a := newTestAdapter(t)
	assert.False(t, a.DgpuDisableExists())
	assert.False(t, a.EgpuEnableExists())
	assert.False(t, a.GpuMuxModeExists())
}
