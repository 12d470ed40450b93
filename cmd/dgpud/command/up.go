package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	v1 "github.com/dgpud/dgpud/api/v1"
	"github.com/dgpud/dgpud/pkg/acpi"
	"github.com/dgpud/dgpud/pkg/config"
	"github.com/dgpud/dgpud/pkg/driver"
	"github.com/dgpud/dgpud/pkg/log"
	"github.com/dgpud/dgpud/pkg/modprobe"
	"github.com/dgpud/dgpud/pkg/pcireg"
	"github.com/dgpud/dgpud/pkg/session"
	"github.com/dgpud/dgpud/pkg/systemd"

	"github.com/dgpud/dgpud/internal/controller"
	"github.com/dgpud/dgpud/internal/dbusapi"
	"github.com/dgpud/dgpud/internal/executor"
)

func cmdUp(cliContext *cli.Context) error {
	lvl, err := log.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	if logFile != "" {
		log.CreateLoggerWithLumberjack(logFile, 50, lvl)
	} else {
		log.CreateLogger(lvl, "")
	}

	resolvedConfigPath, err := homedir.Expand(configPath)
	if err != nil {
		return fmt.Errorf("expanding --config: %w", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	cfg, err := config.Load(rootCtx, resolvedConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	acpiAdapter := acpi.New()

	registry := pcireg.New(acpiAdapter)
	enumCtx, enumCancel := context.WithTimeout(rootCtx, 10*time.Second)
	devices, vendor, err := registry.Enumerate(enumCtx)
	enumCancel()
	if err != nil {
		log.Logger.Warnw("initial PCI enumeration failed, continuing with no dGPU", "error", err)
		devices = nil
		vendor = v1.GfxVendorUnknown
	}
	if err := registry.WatchSettle(); err != nil {
		log.Logger.Warnw("pci bus watch unavailable, rescans will fall back to a fixed settle delay", "error", err)
	}
	defer registry.CloseWatch()

	driverPrimitive := driver.New()

	sysConn, err := systemd.Connect(rootCtx)
	if err != nil {
		log.Logger.Warnw("systemd D-Bus connection unavailable, unit steps will fail if planned", "error", err)
	}
	var units *systemd.UnitController
	if sysConn != nil {
		units = systemd.NewUnitController(sysConn)
		defer sysConn.Close()
	}

	modprobeWriter := modprobe.New()
	gate := session.NewLogind()

	exec := executor.New(driverPrimitive, acpiAdapter, units, modprobeWriter, gate, registry)
	ctrl := controller.New(resolvedConfigPath, cfg, devices, vendor, exec, registry, acpiAdapter, gate)

	bootCtx, bootCancel := context.WithTimeout(rootCtx, 2*time.Minute)
	bootErr := ctrl.Boot(bootCtx)
	bootCancel()
	if bootErr != nil {
		log.Logger.Errorw("boot plan failed", "error", bootErr)
	}

	busConn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connecting to system bus: %w", err)
	}
	defer busConn.Close()

	svc := dbusapi.NewService(version, ctrl)
	if err := svc.Export(busConn); err != nil {
		return fmt.Errorf("exporting D-Bus service: %w", err)
	}

	log.Logger.Infow("dgpud up", "mode", ctrl.Mode(), "vendor", ctrl.Vendor())
	if _, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err != nil {
		log.Logger.Debugw("sd_notify ready failed, probably not running under systemd", "error", err)
	}

	signals := make(chan os.Signal, 8)
	signal.Notify(signals, unix.SIGTERM, unix.SIGINT)
	<-signals

	log.Logger.Infow("shutting down")
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
	ctrl.Shutdown()
	rootCancel()
	return nil
}
