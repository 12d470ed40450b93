// Package dbusapi exports the Mode Controller over D-Bus (A3): the
// method surface and signals of spec §6, built on godbus/dbus/v5's
// conn.Export + introspection, the same library pkg/session already
// uses client-side for logind.
package dbusapi

import (
	"context"
	"encoding/json"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/gfxerr"
	"github.com/dgpud/dgpud/pkg/log"

	"github.com/dgpud/dgpud/internal/controller"
	"github.com/dgpud/dgpud/internal/executor"
)

const (
	BusName       = "org.dgpud.Daemon"
	ObjectPath    = "/org/dgpud/Daemon"
	InterfaceName = "org.dgpud.Daemon1"
)

// Service adapts Controller to the D-Bus method table. Every exported
// method takes no Context (D-Bus calls can't carry one); long-running
// set_mode calls use context.Background() internally and rely on the
// controller mutex, not a caller-supplied deadline, to bound their run.
type Service struct {
	version string

	ctrl *controller.Controller
	conn *dbus.Conn
}

func NewService(version string, ctrl *controller.Controller) *Service {
	return &Service{version: version, ctrl: ctrl}
}

// Export exports both the method table and its introspection data at
// ObjectPath on conn (an already-connected system bus), then requests
// BusName.
func (s *Service) Export(conn *dbus.Conn) error {
	s.conn = conn

	if err := conn.Export(s, ObjectPath, InterfaceName); err != nil {
		return gfxerr.Wrap(gfxerr.KindDbus, err)
	}

	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: InterfaceName,
				Methods: []introspect.Method{
					{Name: "Version", Args: []introspect.Arg{{Name: "version", Type: "s", Direction: "out"}}},
					{Name: "Mode", Args: []introspect.Arg{{Name: "mode", Type: "s", Direction: "out"}}},
					{Name: "Supported", Args: []introspect.Arg{{Name: "modes", Type: "as", Direction: "out"}}},
					{Name: "Vendor", Args: []introspect.Arg{{Name: "vendor", Type: "s", Direction: "out"}}},
					{Name: "Power", Args: []introspect.Arg{{Name: "power", Type: "s", Direction: "out"}}},
					{Name: "SetMode", Args: []introspect.Arg{
						{Name: "mode", Type: "s", Direction: "in"},
						{Name: "action", Type: "s", Direction: "out"},
					}},
					{Name: "PendingMode", Args: []introspect.Arg{{Name: "mode", Type: "s", Direction: "out"}}},
					{Name: "PendingUserAction", Args: []introspect.Arg{{Name: "action", Type: "s", Direction: "out"}}},
					{Name: "Config", Args: []introspect.Arg{{Name: "config_json", Type: "s", Direction: "out"}}},
					{Name: "SetConfig", Args: []introspect.Arg{{Name: "config_json", Type: "s", Direction: "in"}}},
				},
				Signals: []introspect.Signal{
					{Name: "NotifyGfxStatus", Args: []introspect.Arg{{Name: "power", Type: "s"}}},
					{Name: "NotifyGfx", Args: []introspect.Arg{{Name: "mode", Type: "s"}}},
					{Name: "NotifyAction", Args: []introspect.Arg{{Name: "action", Type: "s"}}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return gfxerr.Wrap(gfxerr.KindDbus, err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return gfxerr.New(gfxerr.KindDbus, "bus name already owned")
	}
	return nil
}

func (s *Service) emit(signalName string, body ...interface{}) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(dbus.ObjectPath(ObjectPath), InterfaceName+"."+signalName, body...); err != nil {
		log.Logger.Warnw("failed to emit signal", "signal", signalName, "error", err)
	}
}

// dbusErr maps a *gfxerr.Error onto a D-Bus error name and detail
// string, per §7's "stable Kind to switch on at the D-Bus boundary".
func dbusErr(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	kind := gfxerr.KindDbus
	if ge, ok := err.(*gfxerr.Error); ok {
		kind = ge.Kind
	}
	return dbus.NewError(InterfaceName+"."+string(kind), []interface{}{err.Error()})
}

func (s *Service) Version() (string, *dbus.Error) { return s.version, nil }

func (s *Service) Mode() (string, *dbus.Error) {
	return string(s.ctrl.Mode()), nil
}

func (s *Service) Supported() ([]string, *dbus.Error) {
	modes := s.ctrl.Supported()
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out, nil
}

func (s *Service) Vendor() (string, *dbus.Error) {
	return string(s.ctrl.Vendor()), nil
}

func (s *Service) Power() (string, *dbus.Error) {
	return string(s.ctrl.Power()), nil
}

// SetMode plans and, unless it resolves to a user action, synchronously
// executes the switch. NotifyGfx is emitted for any parseable mode
// before the controller is called; NotifyAction (plus NotifyGfxStatus
// when no action is needed) is emitted only on success.
func (s *Service) SetMode(mode string) (string, *dbus.Error) {
	to, err := v1.ParseGfxMode(mode)
	if err != nil {
		return "", dbusErr(gfxerr.Wrap(gfxerr.KindParseMode, err))
	}

	s.emit("NotifyGfx", string(to))

	action, err := s.ctrl.SetMode(context.Background(), to, func(pe executor.PlanEvent) {
		log.Logger.Debugw("set_mode progress", "request_id", pe.RequestID, "step", pe.Step, "index", pe.Index, "total", pe.Total)
	})
	if err != nil {
		return "", dbusErr(err)
	}

	s.emit("NotifyAction", string(action))
	if action == v1.UserActionNothing {
		s.emit("NotifyGfxStatus", string(v1.GfxPowerActive))
	}
	return string(action), nil
}

func (s *Service) PendingMode() (string, *dbus.Error) {
	return string(s.ctrl.PendingMode()), nil
}

func (s *Service) PendingUserAction() (string, *dbus.Error) {
	return string(s.ctrl.PendingUserAction()), nil
}

func (s *Service) Config() (string, *dbus.Error) {
	buf, err := json.Marshal(s.ctrl.ConfigView())
	if err != nil {
		return "", dbusErr(gfxerr.Wrap(gfxerr.KindWrite, err))
	}
	return string(buf), nil
}

func (s *Service) SetConfig(configJSON string) *dbus.Error {
	var v v1.ConfigView
	if err := json.Unmarshal([]byte(configJSON), &v); err != nil {
		return dbusErr(gfxerr.Wrap(gfxerr.KindParseMode, err))
	}
	if err := s.ctrl.SetConfig(v); err != nil {
		return dbusErr(err)
	}
	return nil
}
