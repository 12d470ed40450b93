// Package gfxerr defines the error taxonomy surfaced by the mode-switch
// engine, replacing the upstream thiserror enum with a Kind plus a
// wrapped cause, so callers can still errors.Is/errors.As while the
// D-Bus boundary gets a stable string to map to a D-Bus error name.
package gfxerr

import "fmt"

type Kind string

const (
	KindDgpuNotFound             Kind = "DgpuNotFound"
	KindPathIo                   Kind = "PathIo"
	KindWrite                    Kind = "Write"
	KindUdev                     Kind = "Udev"
	KindParseMode                Kind = "ParseMode"
	KindNotSupported             Kind = "NotSupported"
	KindSystemdUnitAction        Kind = "SystemdUnitAction"
	KindSystemdUnitWaitTimeout   Kind = "SystemdUnitWaitTimeout"
	KindDbus                     Kind = "Dbus"
	KindModuleLoad               Kind = "ModuleLoad"
	KindModuleUnload             Kind = "ModuleUnload"
)

// Error is the concrete error type returned across the engine. Path is
// populated for Kind == PathIo/Write, empty otherwise.
type Error struct {
	Kind   Kind
	Path   string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Detail)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func WrapPath(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Cause: cause}
}

// DgpuNotFound is a sentinel for the registry's "no candidate device,
// and no ACPI override suggests one" case.
func DgpuNotFound() *Error {
	return New(KindDgpuNotFound, "no discrete GPU found")
}
