package command

import (
	"github.com/godbus/dbus/v5"

	"github.com/dgpud/dgpud/internal/dbusapi"
	"github.com/dgpud/dgpud/pkg/gfxerr"
)

// dial connects to the system bus and returns the daemon's exported
// object, ready for Call/GetProperty against dbusapi.InterfaceName.
func dial() (*dbus.Conn, dbus.BusObject, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, nil, gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	obj := conn.Object(dbusapi.BusName, dbus.ObjectPath(dbusapi.ObjectPath))
	return conn, obj, nil
}

func call1(method string, args ...interface{}) (string, error) {
	conn, obj, err := dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	call := obj.Call(dbusapi.InterfaceName+"."+method, 0, args...)
	if call.Err != nil {
		return "", gfxerr.Wrap(gfxerr.KindDbus, call.Err)
	}
	var out string
	if err := call.Store(&out); err != nil {
		return "", gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	return out, nil
}

func callStrings(method string) ([]string, error) {
	conn, obj, err := dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	call := obj.Call(dbusapi.InterfaceName+"."+method, 0)
	if call.Err != nil {
		return nil, gfxerr.Wrap(gfxerr.KindDbus, call.Err)
	}
	var out []string
	if err := call.Store(&out); err != nil {
		return nil, gfxerr.Wrap(gfxerr.KindDbus, err)
	}
	return out, nil
}

func callVoid(method string, args ...interface{}) error {
	conn, obj, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	call := obj.Call(dbusapi.InterfaceName+"."+method, 0, args...)
	if call.Err != nil {
		return gfxerr.Wrap(gfxerr.KindDbus, call.Err)
	}
	return nil
}
