// Package session implements the Session Gate (C4): waiting until no
// graphical logind session remains, with a cancellable poll loop.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/login1"
	godbus "github.com/godbus/dbus/v5"

	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"
)

const pollInterval = 100 * time.Millisecond

// SessionInfo is the subset of a logind session's properties the gate
// cares about.
type SessionInfo struct {
	Class string
	Type  string
	State string
}

// isGraphicalUser reports whether s is a session the gate must wait
// out, per §4.4: class=User, type in {x11,wayland,mir}, state in
// {online,active}.
func isGraphicalUser(s SessionInfo) bool {
	if s.Class != "user" {
		return false
	}
	switch s.Type {
	case "x11", "wayland", "mir":
	default:
		return false
	}
	switch s.State {
	case "online", "active":
		return true
	default:
		return false
	}
}

// Lister enumerates current logind sessions, narrowed so tests can
// substitute a fake roster without a real system bus / logind.
type Lister interface {
	Sessions(ctx context.Context) ([]SessionInfo, error)
}

// logindLister lists sessions via login1 and reads their Class/Type/
// State properties directly off the session D-Bus object, since the
// login1 package itself only exposes the session roster.
type logindLister struct{}

func (logindLister) Sessions(ctx context.Context) ([]SessionInfo, error) {
	conn, err := login1.NewWithContext(ctx)
	if err != nil {
		return nil, gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	defer conn.Close()

	sessions, err := conn.ListSessionsContext(ctx)
	if err != nil {
		return nil, gfxerr.Wrap(gfxerr.KindDbus, err)
	}

	bus, err := godbus.ConnectSystemBus()
	if err != nil {
		return nil, gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	defer bus.Close()

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		obj := bus.Object("org.freedesktop.login1", s.Path)
		info := SessionInfo{
			Class: sessionStringProp(obj, "Class"),
			Type:  sessionStringProp(obj, "Type"),
			State: sessionStringProp(obj, "State"),
		}
		out = append(out, info)
	}
	return out, nil
}

func sessionStringProp(obj godbus.BusObject, name string) string {
	v, err := obj.GetProperty("org.freedesktop.login1.Session." + name)
	if err != nil {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// Gate blocks set_mode's WaitLogout step until no graphical session
// remains. It is shared between the controller (which sets Cancel on
// shutdown) and the executor (which calls Wait mid-plan).
type Gate struct {
	lister    Lister
	cancelled atomic.Bool
}

func New(lister Lister) *Gate {
	return &Gate{lister: lister}
}

// NewLogind builds a Gate backed by the real system logind.
func NewLogind() *Gate {
	return New(logindLister{})
}

// Cancel breaks any in-progress Wait early, per §5's cancellation flag.
func (g *Gate) Cancel() {
	g.cancelled.Store(true)
}

// Reset clears a prior Cancel so the gate can be reused for the next
// plan.
func (g *Gate) Reset() {
	g.cancelled.Store(false)
}

// Wait polls every 100ms until no graphical session remains, the
// cancellation flag is set, or timeout elapses (timeout == 0 disables
// the deadline).
func (g *Gate) Wait(ctx context.Context, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	} else {
		deadline = make(chan time.Time)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	check := func() (bool, error) {
		if g.cancelled.Load() {
			log.Logger.Infow("session gate cancelled")
			return true, nil
		}
		sessions, err := g.lister.Sessions(ctx)
		if err != nil {
			return false, err
		}
		for _, s := range sessions {
			if isGraphicalUser(s) {
				return false, nil
			}
		}
		return true, nil
	}

	if done, err := check(); err != nil {
		return err
	} else if done {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return gfxerr.Wrap(gfxerr.KindSystemdUnitWaitTimeout, ctx.Err())
		case <-deadline:
			return gfxerr.New(gfxerr.KindSystemdUnitWaitTimeout, "timed out waiting for graphical sessions to log out")
		case <-ticker.C:
			done, err := check()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}
