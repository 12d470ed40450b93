// Package controller implements the Mode Controller (C9): the single
// mutex-guarded owner of Config and DeviceSet, serialising set_mode
// requests through the planner (C7) and executor (C8) per the state
// machine Idle -> Planning -> (UserActionReported | Executing) ->
// (Completed | Failed) -> Idle.
package controller

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/acpi"
	"github.com/dgpud/dgpud/pkg/config"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
	"github.com/dgpud/dgpud/pkg/pcireg"
	"github.com/dgpud/dgpud/pkg/session"

	"github.com/dgpud/dgpud/internal/executor"
	"github.com/dgpud/dgpud/internal/planner"
)

// State is the controller's per-switch state machine position.
type State string

const (
	StateIdle               State = "Idle"
	StatePlanning           State = "Planning"
	StateUserActionReported State = "UserActionReported"
	StateExecuting          State = "Executing"
	StateCompleted          State = "Completed"
	StateFailed             State = "Failed"
)

// Controller owns Config and DeviceSet behind one mutex (§9's
// "cyclic ownership" note: executor, planner, and controller must all
// see the same Config/DeviceSet, resolved by a single controller-held
// lock the executor borrows for the plan's duration).
type Controller struct {
	mu sync.Mutex

	configPath string
	cfg        *config.Config
	devices    pcireg.DeviceSet
	vendor     v1.GfxVendor

	state         State
	pendingMode   v1.GfxMode
	pendingAction v1.UserActionRequired

	exec     *executor.Executor
	registry *pcireg.Registry
	acpi     *acpi.Adapter
	gate     *session.Gate
}

func New(configPath string, cfg *config.Config, devices pcireg.DeviceSet, vendor v1.GfxVendor, exec *executor.Executor, registry *pcireg.Registry, a *acpi.Adapter, gate *session.Gate) *Controller {
	return &Controller{
		configPath: configPath,
		cfg:        cfg,
		devices:    devices,
		vendor:     vendor,
		state:      StateIdle,
		exec:       exec,
		registry:   registry,
		acpi:       a,
		gate:       gate,
	}
}

// Mode returns the currently persisted mode.
func (c *Controller) Mode() v1.GfxMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Mode
}

// State returns the controller's current position in the per-switch
// state machine, mainly for tests and diagnostics.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Vendor() v1.GfxVendor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vendor
}

func (c *Controller) PendingMode() v1.GfxMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingMode
}

func (c *Controller) PendingUserAction() v1.UserActionRequired {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingAction
}

// Power reads the dGPU's runtime power state, with the two ASUS ACPI
// special cases from the registry's own override logic taking
// precedence over a sysfs read (there's no PCI device node to read
// from in either case).
func (c *Controller) Power() v1.GfxPower {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vendor == v1.GfxVendorAsusDgpuDisabled {
		return v1.GfxPowerAsusDisabled
	}
	if c.cfg.Mode == v1.GfxModeAsusMuxDgpu {
		return v1.GfxPowerAsusMuxDiscreet
	}
	dev, ok := c.devices.Dgpu()
	if !ok {
		return v1.GfxPowerOff
	}
	buf, err := os.ReadFile(filepath.Join(dev.SysfsPath, "power", "runtime_status"))
	if err != nil {
		return v1.GfxPowerUnknown
	}
	return v1.ParseGfxPower(strings.TrimSpace(string(buf)))
}

func (c *Controller) ConfigView() v1.ConfigView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.View()
}

// SetConfig applies every field of v except Mode, which only ever
// changes through SetMode/Boot.
func (c *Controller) SetConfig(v v1.ConfigView) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *c.cfg
	next.ApplyView(v)
	if err := next.Validate(); err != nil {
		return err
	}
	if err := config.Save(&next, c.configPath); err != nil {
		return err
	}
	c.cfg = &next
	return nil
}

// Supported lists the modes currently reachable from this machine's
// hardware and policy: Integrated is always available; Hybrid needs an
// enumerated dGPU; NvidiaNoModeset needs an Nvidia dGPU specifically;
// Vfio additionally needs vfio_enable and a dGPU; AsusEgpu/AsusMuxDgpu
// need their respective ACPI nodes. None is the "no dGPU" sentinel and
// is never offered as a switch target.
func (c *Controller) Supported() []v1.GfxMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []v1.GfxMode{v1.GfxModeIntegrated}
	hasDgpu := c.vendor != v1.GfxVendorUnknown
	if hasDgpu {
		out = append(out, v1.GfxModeHybrid)
	}
	if c.vendor == v1.GfxVendorNvidia {
		out = append(out, v1.GfxModeNvidiaNoModeset)
	}
	if hasDgpu && c.cfg.VfioEnable {
		out = append(out, v1.GfxModeVfio)
	}
	if c.acpi != nil {
		if c.acpi.EgpuEnableExists() {
			out = append(out, v1.GfxModeAsusEgpu)
		}
		if c.acpi.GpuMuxModeExists() {
			out = append(out, v1.GfxModeAsusMuxDgpu)
		}
	}
	return out
}

// Boot runs the boot-time plan for the persisted mode (§4.9: "on
// daemon start it reads Config, enumerates devices, and runs the boot
// plan"). It never blocks on a session gate — a boot plan has nothing
// to tear down yet.
func (c *Controller) Boot(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	plan := planner.BootPlan(c.cfg.Mode, c.vendor, c.cfg.VfioSave)
	if plan.IsUserAction() {
		log.Logger.Infow("boot plan is a no-op", "mode", c.cfg.Mode)
		return nil
	}

	t := executor.Transition{From: c.cfg.Mode, To: c.cfg.Mode, Vendor: c.vendor, Devices: c.devices, LogoutTimeout: time.Duration(c.cfg.LogoutTimeoutS) * time.Second}
	return c.exec.Execute(ctx, uuid.New(), plan, t, nil)
}

// SetMode is the sole entrypoint for a mode switch, serialised end to
// end by holding the controller mutex for the whole planning and
// execution sequence — only one plan ever executes at a time (I2).
//
// vfio_enable is checked before planning (P4, scenario 5): rejecting
// here means no state changes at all, not even Config.mode.
func (c *Controller) SetMode(ctx context.Context, to v1.GfxMode, sink executor.Sink) (v1.UserActionRequired, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if to == v1.GfxModeVfio && !c.cfg.VfioEnable {
		return "", gfxerr.New(gfxerr.KindNotSupported, "vfio_enable is false")
	}

	c.state = StatePlanning
	from := c.cfg.Mode
	policy := planner.Policy{NoLogind: c.cfg.NoLogind, AlwaysReboot: c.cfg.AlwaysReboot, HotplugType: c.cfg.HotplugType}
	plan := planner.Plan(from, to, c.vendor, policy)
	log.Logger.Debugw("planned transition", "from", from, "to", to, "plan", plan.String())

	if plan.IsUserAction() {
		c.pendingAction = plan.UserAction
		c.state = StateUserActionReported
		c.state = StateIdle
		log.Logger.Infow("set_mode resolved to user action", "from", from, "to", to, "action", plan.UserAction)
		return plan.UserAction, nil
	}

	// Config.mode is updated and persisted now, before execution, per
	// the Planning -> Executing transition in §4.8.
	next := *c.cfg
	next.Mode = to
	if err := config.Save(&next, c.configPath); err != nil {
		c.state = StateIdle
		return "", err
	}
	c.cfg = &next
	c.pendingMode = to
	c.state = StateExecuting

	requestID := uuid.New()
	t := executor.Transition{From: from, To: to, Vendor: c.vendor, Devices: c.devices, LogoutTimeout: time.Duration(c.cfg.LogoutTimeoutS) * time.Second}
	started := time.Now()
	err := c.exec.Execute(ctx, requestID, plan, t, sink)
	elapsed := time.Since(started)

	c.pendingMode = ""
	if err != nil {
		c.state = StateFailed
		c.state = StateIdle
		log.Logger.Errorw("set_mode execution failed", "request_id", requestID, "from", from, "to", to, "error", err)
		return "", err
	}

	c.state = StateCompleted
	c.state = StateIdle
	log.Logger.Infow("set_mode execution completed", "request_id", requestID, "from", from, "to", to, "elapsed", elapsed, "started", humanize.RelTime(started, time.Now(), "", ""))

	// AsusMuxDgpu's exit plan is always exactly [AsusMuxIgpu]: the
	// write only takes effect after reboot, so a successful run still
	// owes the caller a Reboot verdict (scenario 4).
	if from == v1.GfxModeAsusMuxDgpu {
		c.pendingAction = v1.UserActionReboot
		return v1.UserActionReboot, nil
	}
	c.pendingAction = v1.UserActionNothing
	return v1.UserActionNothing, nil
}

// Shutdown cancels the session gate so a WaitLogout step in flight
// returns promptly, then blocks until the current step (if any)
// finishes — acquiring the mutex is enough, since SetMode/Boot hold it
// for their entire run and nothing else releases it mid-plan.
func (c *Controller) Shutdown() {
	if c.gate != nil {
		c.gate.Cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
}
