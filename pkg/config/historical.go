package config

import (
	"encoding/json"

	v1 "github.com/dgpud/dgpud/api/v1"
)

// configV300 is the earliest schema: no hotplug_type (hotplug was
// always Std), no vfio_save, no always_reboot, and the mode field was
// named "gfx_mode" rather than "mode".
type configV300 struct {
	GfxMode        v1.GfxMode `json:"gfx_mode"`
	VfioEnable     bool       `json:"vfio_enable"`
	NoLogind       bool       `json:"no_logind"`
	LogoutTimeoutS uint64     `json:"logout_timeout_s"`
}

// configV405 added always_reboot and hotplug_type, but still had no
// vfio_save and kept "gfx_mode" for one more release before it was
// renamed to "mode" in 5.0.0.
type configV405 struct {
	GfxMode        v1.GfxMode     `json:"gfx_mode"`
	VfioEnable     bool           `json:"vfio_enable"`
	AlwaysReboot   bool           `json:"always_reboot"`
	NoLogind       bool           `json:"no_logind"`
	LogoutTimeoutS uint64         `json:"logout_timeout_s"`
	HotplugType    v1.HotplugType `json:"hotplug_type"`
}

// tryDecodeV300 succeeds only if raw structurally matches the 3.0.0
// shape: it must carry "gfx_mode" and must NOT carry "hotplug_type" or
// "always_reboot" (those distinguish it from 4.0.5).
func tryDecodeV300(raw []byte) (*Config, bool) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	if _, hasGfxMode := generic["gfx_mode"]; !hasGfxMode {
		return nil, false
	}
	if _, hasHotplug := generic["hotplug_type"]; hasHotplug {
		return nil, false
	}
	if _, hasReboot := generic["always_reboot"]; hasReboot {
		return nil, false
	}

	var old configV300
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, false
	}
	return &Config{
		APIVersion:     DefaultAPIVersion,
		Mode:           old.GfxMode,
		VfioEnable:     old.VfioEnable,
		VfioSave:       false,
		AlwaysReboot:   false,
		NoLogind:       old.NoLogind,
		LogoutTimeoutS: old.LogoutTimeoutS,
		HotplugType:    v1.HotplugStd,
	}, true
}

// tryDecodeV405 succeeds only if raw carries both "gfx_mode" and
// "hotplug_type" (the 5.0.0 rename to "mode" is what ends this era).
func tryDecodeV405(raw []byte) (*Config, bool) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	if _, hasGfxMode := generic["gfx_mode"]; !hasGfxMode {
		return nil, false
	}
	if _, hasHotplug := generic["hotplug_type"]; !hasHotplug {
		return nil, false
	}

	var old configV405
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, false
	}
	return &Config{
		APIVersion:     DefaultAPIVersion,
		Mode:           old.GfxMode,
		VfioEnable:     old.VfioEnable,
		VfioSave:       false,
		AlwaysReboot:   old.AlwaysReboot,
		NoLogind:       old.NoLogind,
		LogoutTimeoutS: old.LogoutTimeoutS,
		HotplugType:    old.HotplugType,
	}, true
}

// configV500 carries every field of the current Config, from the last
// release before api_version was introduced; hotplug_type is a bare,
// unvalidated string rather than the current typed enum.
type configV500 struct {
	Mode           v1.GfxMode `json:"mode"`
	VfioEnable     bool       `json:"vfio_enable"`
	VfioSave       bool       `json:"vfio_save"`
	AlwaysReboot   bool       `json:"always_reboot"`
	NoLogind       bool       `json:"no_logind"`
	LogoutTimeoutS uint64     `json:"logout_timeout_s"`
	HotplugType    string     `json:"hotplug_type"`
}

// tryDecodeV500 succeeds only if raw already uses "mode" (not
// "gfx_mode") and carries "vfio_save", but has no "api_version": that
// field is what distinguishes a pre-migration 5.0.0 file from one this
// daemon has already written.
func tryDecodeV500(raw []byte) (*Config, bool) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	if _, hasMode := generic["mode"]; !hasMode {
		return nil, false
	}
	if _, hasVfioSave := generic["vfio_save"]; !hasVfioSave {
		return nil, false
	}
	if _, hasAPIVersion := generic["api_version"]; hasAPIVersion {
		return nil, false
	}

	var old configV500
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, false
	}
	hotplug, err := v1.ParseHotplugType(old.HotplugType)
	if err != nil {
		return nil, false
	}
	return &Config{
		APIVersion:     DefaultAPIVersion,
		Mode:           old.Mode,
		VfioEnable:     old.VfioEnable,
		VfioSave:       old.VfioSave,
		AlwaysReboot:   old.AlwaysReboot,
		NoLogind:       old.NoLogind,
		LogoutTimeoutS: old.LogoutTimeoutS,
		HotplugType:    hotplug,
	}, true
}
