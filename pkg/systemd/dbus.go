// Package systemd implements the Unit Controller (C5): starting,
// stopping, and waiting on systemd units (the display manager,
// nvidia-persistenced, nvidia-powerd), plus systemd version/uptime
// parsing and journal access used for diagnostics.
package systemd

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdbus "github.com/coreos/go-systemd/v22/dbus"

	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
)

// dbusConn is the subset of *sdbus.Conn this package depends on,
// narrowed so tests can substitute a mock without a real system bus.
type dbusConn interface {
	Close()
	Connected() bool
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
}

// DbusConn wraps a connection to the systemd D-Bus manager object.
type DbusConn struct {
	conn dbusConn
}

// Connect dials the system bus's systemd manager.
func Connect(ctx context.Context) (*DbusConn, error) {
	conn, err := sdbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	return &DbusConn{conn: conn}, nil
}

func (c *DbusConn) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
	}
}

// normalizeServiceUnitName appends ".service" unless the name already
// carries a systemd unit suffix (e.g. ".target").
func normalizeServiceUnitName(name string) string {
	for _, suffix := range []string{".service", ".socket", ".device", ".mount", ".automount", ".swap", ".target", ".path", ".timer", ".slice", ".scope"} {
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	return name + ".service"
}

// checkActiveState extracts and validates the ActiveState property
// from a unit's property map.
func checkActiveState(props map[string]interface{}, unitName string) (bool, error) {
	raw, ok := props["ActiveState"]
	if !ok {
		return false, fmt.Errorf("ActiveState property not found for unit %s", unitName)
	}
	state, ok := raw.(string)
	if !ok {
		return false, fmt.Errorf("ActiveState property is not a string for unit %s", unitName)
	}
	return state == "active", nil
}

// IsActive reports whether unitName is currently active.
func (c *DbusConn) IsActive(ctx context.Context, unitName string) (bool, error) {
	if c == nil || c.conn == nil {
		return false, fmt.Errorf("connection not initialized")
	}
	if !c.conn.Connected() {
		return false, fmt.Errorf("connection disconnected")
	}
	name := normalizeServiceUnitName(unitName)
	props, err := c.conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		return false, fmt.Errorf("unable to get unit properties for %s: %w", name, err)
	}
	return checkActiveState(props, name)
}

// StartUnit starts unitName and returns once systemd has queued the
// job; it does not wait for the unit to report active.
func (c *DbusConn) StartUnit(ctx context.Context, unitName string) error {
	if c == nil || c.conn == nil {
		return gfxerr.New(gfxerr.KindSystemdUnitAction, "connection not initialized")
	}
	name := normalizeServiceUnitName(unitName)
	ch := make(chan string, 1)
	log.Logger.Infow("starting unit", "unit", name)
	if _, err := c.conn.StartUnitContext(ctx, name, "replace", ch); err != nil {
		return gfxerr.Wrap(gfxerr.KindSystemdUnitAction, err)
	}
	return nil
}

// StopUnitAndWait stops unitName and blocks until it reports inactive
// or timeout elapses. A timeout of 0 waits forever.
func (c *DbusConn) StopUnitAndWait(ctx context.Context, unitName string, timeout time.Duration) error {
	if c == nil || c.conn == nil {
		return gfxerr.New(gfxerr.KindSystemdUnitAction, "connection not initialized")
	}
	name := normalizeServiceUnitName(unitName)
	ch := make(chan string, 1)
	log.Logger.Infow("stopping unit", "unit", name)
	if _, err := c.conn.StopUnitContext(ctx, name, "replace", ch); err != nil {
		return gfxerr.Wrap(gfxerr.KindSystemdUnitAction, err)
	}

	deadline := make(<-chan time.Time)
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		active, err := c.IsActive(ctx, name)
		if err == nil && !active {
			return nil
		}
		select {
		case <-ctx.Done():
			return gfxerr.Wrap(gfxerr.KindSystemdUnitWaitTimeout, ctx.Err())
		case <-deadline:
			return gfxerr.New(gfxerr.KindSystemdUnitWaitTimeout, fmt.Sprintf("unit %s did not become inactive", name))
		case <-ticker.C:
		}
	}
}
