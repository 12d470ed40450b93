// Package config persists the daemon's Config document (current mode,
// VFIO/logind/reboot policy, hotplug mechanism) and migrates it forward
// from historical schema variants.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/fsutil"
)

const DefaultAPIVersion = "5.0.0"

// DefaultConfigPath is where the daemon looks for its config document
// absent an override; it mirrors the historical supergfxd install path.
const DefaultConfigPath = "/etc/dgpud.conf"

// Config is the persisted document. Fields not listed here
// (tmp_mode, pending_mode, pending_action) are deliberately absent:
// they are runtime-only and owned by the controller.
type Config struct {
	APIVersion     string         `json:"api_version"`
	Mode           v1.GfxMode     `json:"mode"`
	VfioEnable     bool           `json:"vfio_enable"`
	VfioSave       bool           `json:"vfio_save"`
	AlwaysReboot   bool           `json:"always_reboot"`
	NoLogind       bool           `json:"no_logind"`
	LogoutTimeoutS uint64         `json:"logout_timeout_s"`
	HotplugType    v1.HotplugType `json:"hotplug_type"`
}

// Validate checks field-level invariants that do not depend on runtime
// device state (vendor/vfio_enable gating for Vfio is a controller-level
// check, per P4).
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode %q: %w", c.Mode, ErrInvalidMode)
	}
	if !c.HotplugType.Valid() {
		return fmt.Errorf("invalid hotplug_type %q: %w", c.HotplugType, ErrInvalidHotplugType)
	}
	return nil
}

var (
	ErrInvalidMode        = errors.New("unrecognized gfx mode")
	ErrInvalidHotplugType = errors.New("unrecognized hotplug type")
)

// View projects Config into the D-Bus-safe ConfigView.
func (c *Config) View() v1.ConfigView {
	return v1.ConfigView{
		Mode:           c.Mode,
		VfioEnable:     c.VfioEnable,
		VfioSave:       c.VfioSave,
		AlwaysReboot:   c.AlwaysReboot,
		NoLogind:       c.NoLogind,
		LogoutTimeoutS: c.LogoutTimeoutS,
		HotplugType:    c.HotplugType,
	}
}

// ApplyView overwrites the policy fields from a ConfigView, as
// set_config does; mode is intentionally excluded — it only changes
// via the planner/executor/controller path, never a raw config write.
func (c *Config) ApplyView(v v1.ConfigView) {
	c.VfioEnable = v.VfioEnable
	c.VfioSave = v.VfioSave
	c.AlwaysReboot = v.AlwaysReboot
	c.NoLogind = v.NoLogind
	c.LogoutTimeoutS = v.LogoutTimeoutS
	c.HotplugType = v.HotplugType
}

// DefaultConfig returns the out-of-the-box document applied when no
// config file exists yet.
func DefaultConfig(_ context.Context, opts ...OpOption) (*Config, error) {
	op := &Op{}
	if err := op.ApplyOpts(opts); err != nil {
		return nil, err
	}

	cfg := &Config{
		APIVersion:     DefaultAPIVersion,
		Mode:           v1.GfxModeHybrid,
		VfioEnable:     false,
		VfioSave:       false,
		AlwaysReboot:   false,
		NoLogind:       false,
		LogoutTimeoutS: 0,
		HotplugType:    v1.HotplugStd,
	}
	if op.Mode != "" {
		cfg.Mode = op.Mode
	}
	if op.HotplugType != "" {
		cfg.HotplugType = op.HotplugType
	}
	return cfg, nil
}

// Load reads the config at path, migrating from a historical schema
// when needed, and returns the current-schema Config. A missing file
// is not an error: it returns DefaultConfig.
func Load(ctx context.Context, path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(ctx)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseAndMigrate(raw)
}

// ParseAndMigrate detects which historical schema raw matches and
// migrates it forward to the current Config shape. Detection is
// structural, never keyed on api_version's value: the original format
// never carried that field, so a genuine historical file (4.0.5
// included) has no api_version value to branch on in the first place;
// only tryDecodeV500 looks at whether the key is present at all. Each
// tryDecodeVxxx call re-derives the relevant key set itself and is the
// sole authority on whether raw matches its schema.
func ParseAndMigrate(raw []byte) (*Config, error) {
	if cfg, ok := tryDecodeV300(raw); ok {
		return cfg, nil
	}
	if cfg, ok := tryDecodeV405(raw); ok {
		return cfg, nil
	}
	if cfg, ok := tryDecodeV500(raw); ok {
		return cfg, nil
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	return &cfg, nil
}

// Save truncates and rewrites path with cfg, syncing before returning,
// per the engine-wide truncate+write+sync contract (§5).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	buf, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return fsutil.WriteTruncate(path, buf, 0o644)
}
