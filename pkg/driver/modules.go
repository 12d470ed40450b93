// Package driver implements the Driver & Module Primitive (C2):
// loading/unloading kernel modules, binding/unbinding PCI devices, bus
// rescans, and killing userspace holders of the GPU device nodes.
package driver

import (
	"context"
	"os/exec"

	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
)

// NvidiaDriverSet is loaded in this order and unloaded in reverse.
var NvidiaDriverSet = []string{"nvidia_drm", "nvidia_modeset", "nvidia_uvm", "nvidia"}

// VfioDriverSet is loaded in this order and unloaded in reverse.
var VfioDriverSet = []string{"vfio_pci", "vfio_iommu_type1", "vfio"}

type ModuleAction int

const (
	ModuleLoad ModuleAction = iota
	ModuleRemove
)

// ModLoader abstracts modprobe/rmmod so tests can stub the exec calls.
type ModLoader interface {
	Modprobe(ctx context.Context, name string) error
	Rmmod(ctx context.Context, name string) error
}

type execModLoader struct{}

func (execModLoader) Modprobe(ctx context.Context, name string) error {
	if err := exec.CommandContext(ctx, "modprobe", name).Run(); err != nil {
		return gfxerr.Wrap(gfxerr.KindModuleLoad, err)
	}
	return nil
}

func (execModLoader) Rmmod(ctx context.Context, name string) error {
	if err := exec.CommandContext(ctx, "modprobe", "-r", name).Run(); err != nil {
		return gfxerr.Wrap(gfxerr.KindModuleUnload, err)
	}
	return nil
}

// Primitive groups the driver/module operations behind a single
// struct so the executor can hold one instance for the whole plan.
type Primitive struct {
	Loader ModLoader
}

func New() *Primitive {
	return &Primitive{Loader: execModLoader{}}
}

// DriverAction loads or removes a named ordered module set. Loading
// walks the set forward; removal walks it in reverse (for
// NvidiaDriverSet: nvidia_drm is loaded first and unloaded last).
func (p *Primitive) DriverAction(ctx context.Context, set []string, action ModuleAction) error {
	if action == ModuleLoad {
		for _, mod := range set {
			log.Logger.Infow("loading kernel module", "module", mod)
			if err := p.Loader.Modprobe(ctx, mod); err != nil {
				return err
			}
		}
		return nil
	}

	reversed := make([]string, len(set))
	for i, m := range set {
		reversed[len(set)-1-i] = m
	}
	for _, mod := range reversed {
		log.Logger.Infow("unloading kernel module", "module", mod)
		if err := p.Loader.Rmmod(ctx, mod); err != nil {
			return err
		}
	}
	return nil
}

func (p *Primitive) LoadNvidia(ctx context.Context) error   { return p.DriverAction(ctx, NvidiaDriverSet, ModuleLoad) }
func (p *Primitive) UnloadNvidia(ctx context.Context) error { return p.DriverAction(ctx, NvidiaDriverSet, ModuleRemove) }
func (p *Primitive) LoadVfio(ctx context.Context) error     { return p.DriverAction(ctx, VfioDriverSet, ModuleLoad) }
func (p *Primitive) UnloadVfio(ctx context.Context) error   { return p.DriverAction(ctx, VfioDriverSet, ModuleRemove) }
