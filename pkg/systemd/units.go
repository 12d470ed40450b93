package systemd

import (
	"context"
	"os/exec"
	"time"

	"github.com/dgpud/dgpud/pkg/log"
)

// DisplayManagerCandidates is the list of known display-manager unit
// names, tried in order; the first one systemd reports as installed
// (via `systemctl list-unit-files`-equivalent existence check) wins.
var DisplayManagerCandidates = []string{"gdm", "gdm3", "sddm", "lightdm", "lxdm"}

const (
	UnitNvidiaPersistenced = "nvidia-persistenced"
	UnitNvidiaPowerd       = "nvidia-powerd"
)

// ResolveDisplayManager picks the installed display-manager unit name
// by checking each candidate with `systemctl cat`, which exits 0 only
// if the unit file exists.
func ResolveDisplayManager(ctx context.Context) (string, bool) {
	for _, candidate := range DisplayManagerCandidates {
		unit := normalizeServiceUnitName(candidate)
		if err := exec.CommandContext(ctx, "systemctl", "cat", unit).Run(); err == nil {
			return unit, true
		}
	}
	return "", false
}

// UnitController is the C5 primitive used by the executor.
type UnitController struct {
	conn *DbusConn
}

func NewUnitController(conn *DbusConn) *UnitController {
	return &UnitController{conn: conn}
}

// StopDisplayManager stops the resolved display manager and waits for
// it to report inactive.
func (u *UnitController) StopDisplayManager(ctx context.Context, timeout time.Duration) error {
	unit, ok := ResolveDisplayManager(ctx)
	if !ok {
		log.Logger.Warnw("no display manager unit found, skipping stop")
		return nil
	}
	return u.conn.StopUnitAndWait(ctx, unit, timeout)
}

// StartDisplayManager starts the resolved display manager and returns
// immediately, per §4.5 ("after start, return immediately").
func (u *UnitController) StartDisplayManager(ctx context.Context) error {
	unit, ok := ResolveDisplayManager(ctx)
	if !ok {
		log.Logger.Warnw("no display manager unit found, skipping start")
		return nil
	}
	return u.conn.StartUnit(ctx, unit)
}

func (u *UnitController) EnableNvidiaPersistenced(ctx context.Context) error {
	return u.conn.StartUnit(ctx, UnitNvidiaPersistenced)
}

func (u *UnitController) DisableNvidiaPersistenced(ctx context.Context, timeout time.Duration) error {
	return u.conn.StopUnitAndWait(ctx, UnitNvidiaPersistenced, timeout)
}

func (u *UnitController) EnableNvidiaPowerd(ctx context.Context) error {
	return u.conn.StartUnit(ctx, UnitNvidiaPowerd)
}

func (u *UnitController) DisableNvidiaPowerd(ctx context.Context, timeout time.Duration) error {
	return u.conn.StopUnitAndWait(ctx, UnitNvidiaPowerd, timeout)
}
