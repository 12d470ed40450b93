// Package executor implements the Action Executor (C8): serial
// dispatch of a Plan's StagedActions against the C2/C3/C5/C6 primitives
// and the session gate, via a single exhaustive switch rather than
// per-step objects, so a Plan stays trivially serialisable for
// logging, replay, and testing.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/acpi"
	"github.com/dgpud/dgpud/pkg/driver"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
	"github.com/dgpud/dgpud/pkg/modprobe"
	"github.com/dgpud/dgpud/pkg/pcireg"
	"github.com/dgpud/dgpud/pkg/session"
	"github.com/dgpud/dgpud/pkg/systemd"
)

// unitStopTimeout bounds how long StopDisplayManager/Disable* wait for
// a unit to report inactive before surfacing SystemdUnitWaitTimeout.
const unitStopTimeout = 30 * time.Second

// Transition carries the (from, to, vendor, devices) context a handful
// of steps need: WriteModprobeConf and CheckVulkanIcd key off `To`,
// and the device-set steps (UnbindRemoveGpu, UnbindGpu, HotplugUnplug,
// HotplugPlug, RescanPci) key off Devices.
type Transition struct {
	From    v1.GfxMode
	To      v1.GfxMode
	Vendor  v1.GfxVendor
	Devices pcireg.DeviceSet

	// LogoutTimeout bounds WaitLogout (§4.4's logout_timeout_s, 0 = no
	// deadline).
	LogoutTimeout time.Duration
}

// PlanEvent is emitted once per step, after it completes or fails. Err
// is nil on success and for a swallowed CheckVulkanIcd failure.
type PlanEvent struct {
	RequestID uuid.UUID
	Step      v1.StagedAction
	Index     int
	Total     int
	Err       error
}

// Sink receives PlanEvents as a plan executes. Nil is a valid Sink
// (Executor.Execute tolerates it) for callers that don't need progress
// reporting, e.g. the boot-time plan.
type Sink func(PlanEvent)

// Executor groups every primitive C7's steps dispatch against.
type Executor struct {
	Driver   *driver.Primitive
	Acpi     *acpi.Adapter
	Units    *systemd.UnitController
	Modprobe *modprobe.Writer
	Session  *session.Gate
	Registry *pcireg.Registry
}

func New(d *driver.Primitive, a *acpi.Adapter, u *systemd.UnitController, m *modprobe.Writer, s *session.Gate, r *pcireg.Registry) *Executor {
	return &Executor{Driver: d, Acpi: a, Units: u, Modprobe: m, Session: s, Registry: r}
}

// Execute runs every step of plan.Steps in order. CheckVulkanIcd
// failures are logged and swallowed — a stale ICD registration is
// cosmetic, not fatal to the mode switch. Every other step's first
// error aborts the plan and is returned as a *gfxerr.Error.
//
// requestID threads through every PlanEvent so a caller correlates the
// whole run; sink may be nil.
func (e *Executor) Execute(ctx context.Context, requestID uuid.UUID, plan v1.Plan, t Transition, sink Sink) error {
	if plan.IsUserAction() {
		return nil
	}

	total := len(plan.Steps)
	emit := func(index int, step v1.StagedAction, err error) {
		if sink != nil {
			sink(PlanEvent{RequestID: requestID, Step: step, Index: index, Total: total, Err: err})
		}
	}

	for i, step := range plan.Steps {
		log.Logger.Infow("executing step", "request_id", requestID, "step", step, "index", i, "total", total)
		err := e.dispatch(ctx, step, t)
		if err != nil && step == v1.CheckVulkanIcd {
			log.Logger.Errorw("check_vulkan_icd failed, continuing", "request_id", requestID, "error", err)
			err = nil
		}
		emit(i, step, err)
		if err != nil {
			log.Logger.Errorw("step failed, aborting plan", "request_id", requestID, "step", step, "error", err)
			return err
		}
	}
	return nil
}

// dispatch is the single exhaustive switch over StagedAction's fixed
// alphabet (§9's design note: one switch, not per-step objects).
func (e *Executor) dispatch(ctx context.Context, step v1.StagedAction, t Transition) error {
	switch step {
	case v1.WaitLogout:
		return e.Session.Wait(ctx, t.LogoutTimeout)
	case v1.StopDisplayManager:
		return e.Units.StopDisplayManager(ctx, unitStopTimeout)
	case v1.StartDisplayManager:
		return e.Units.StartDisplayManager(ctx)
	case v1.NoLogind, v1.NotNvidia, v1.DevTreeManaged, v1.NoneStep:
		return nil

	case v1.SendDetachEvent:
		// nvidia-no-modeset has no display-manager lifecycle to pause;
		// the detach is whatever udev sees once the driver unbinds.
		return nil

	case v1.LoadGpuDrivers:
		if t.Vendor == v1.GfxVendorAmd {
			return nil
		}
		return e.Driver.LoadNvidia(ctx)
	case v1.UnloadGpuDrivers:
		if t.Vendor == v1.GfxVendorAmd {
			return nil
		}
		return e.Driver.UnloadNvidia(ctx)

	case v1.KillNvidia:
		return e.Driver.KillNvidia(ctx)
	case v1.KillAmd:
		return e.Driver.KillAmd(ctx)

	case v1.EnableNvidiaPersistenced:
		return e.Units.EnableNvidiaPersistenced(ctx)
	case v1.DisableNvidiaPersistenced:
		return e.Units.DisableNvidiaPersistenced(ctx, unitStopTimeout)
	case v1.EnableNvidiaPowerd:
		return e.Units.EnableNvidiaPowerd(ctx)
	case v1.DisableNvidiaPowerd:
		return e.Units.DisableNvidiaPowerd(ctx, unitStopTimeout)

	case v1.LoadVfioDrivers:
		return e.Driver.LoadVfio(ctx)
	case v1.UnloadVfioDrivers:
		return e.Driver.UnloadVfio(ctx)

	case v1.RescanPci:
		return e.rescanPci(ctx, t)
	case v1.UnbindRemoveGpu:
		return e.Driver.UnbindRemove(t.Devices)
	case v1.UnbindGpu:
		return e.Driver.UnbindOnly(t.Devices)

	case v1.HotplugUnplug:
		return e.hotplugAll(t.Devices, false)
	case v1.HotplugPlug:
		return e.hotplugAll(t.Devices, true)

	case v1.AsusDgpuDisable:
		return e.Acpi.SetDgpuDisabled(true)
	case v1.AsusDgpuEnable:
		return e.Acpi.SetDgpuDisabled(false)
	case v1.AsusEgpuDisable:
		return e.Acpi.SetEgpuEnabled(false)
	case v1.AsusEgpuEnable:
		return e.Acpi.SetEgpuEnabled(true)
	case v1.AsusMuxIgpu:
		return e.Acpi.SetMuxMode(acpi.MuxModeIntegrated)
	case v1.AsusMuxDgpuStep:
		return e.Acpi.SetMuxMode(acpi.MuxModeDiscreet)

	case v1.WriteModprobeConf:
		return e.Modprobe.Write(t.To, t.Vendor, t.Devices)
	case v1.CheckVulkanIcd:
		return e.Modprobe.CheckVulkanICD(t.To)

	default:
		return gfxerr.New(gfxerr.KindNotSupported, "unknown staged action: "+string(step))
	}
}

// rescanPci asks the kernel to re-probe the bus, then — per the
// decision recorded in SPEC_FULL.md §9 — waits for the bus to settle
// and re-enumerates only when the caller's cached set is empty or has
// no dGPU, rather than on every rescan. The re-enumerated set is not
// written back into t.Devices.
func (e *Executor) rescanPci(ctx context.Context, t Transition) error {
	if err := e.Driver.RescanPCIBus(); err != nil {
		return err
	}
	if _, ok := t.Devices.Dgpu(); ok {
		return nil
	}
	e.Registry.AwaitSettle(ctx)
	_, _, err := e.Registry.Enumerate(ctx)
	return err
}

func (e *Executor) hotplugAll(set pcireg.DeviceSet, on bool) error {
	for _, dev := range set {
		if !dev.HasSlotPower() {
			continue
		}
		if err := e.Driver.HotplugSlotPower(dev, on); err != nil {
			return err
		}
	}
	return nil
}
