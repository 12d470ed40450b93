package config

import v1 "github.com/dgpud/dgpud/api/v1"

// Op carries DefaultConfig's optional overrides, following the same
// functional-options shape used across the engine's constructors.
type Op struct {
	Mode        v1.GfxMode
	HotplugType v1.HotplugType
}

type OpOption func(*Op)

func (op *Op) ApplyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}
	return nil
}

// WithMode seeds the default mode instead of Hybrid.
func WithMode(m v1.GfxMode) OpOption {
	return func(op *Op) {
		op.Mode = m
	}
}

// WithHotplugType seeds the default hotplug mechanism instead of Std.
func WithHotplugType(h v1.HotplugType) OpOption {
	return func(op *Op) {
		op.HotplugType = h
	}
}
