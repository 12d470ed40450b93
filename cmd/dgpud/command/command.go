// Package command implements the dgpud CLI (A2): a single urfave/cli.App
// whose subcommands are thin D-Bus clients against the daemon's
// org.dgpud.Daemon1 interface, except for "up" which constructs and
// runs the daemon itself.
package command

import (
	"github.com/urfave/cli"

	"github.com/dgpud/dgpud/pkg/config"
)

const usage = `
# start dgpud as a foreground daemon (normally run under systemd)
sudo dgpud up

# switch to hybrid graphics, no reboot required if already connected to the dGPU
dgpud set-mode Hybrid
`

var (
	logLevel   string
	logFile    string
	configPath string
)

const version = "0.1.0"

const (
	checkMark   = "\033[32m✔\033[0m"
	warningSign = "\033[31m✘\033[0m"
)

func App() *cli.App {
	app := cli.NewApp()

	app.Name = "dgpud"
	app.Version = version
	app.Usage = usage
	app.Description = "switch a laptop's graphics mode between integrated, hybrid, and discrete"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config",
			Value:       config.DefaultConfigPath,
			Usage:       "path to dgpud.conf (supports ~ expansion)",
			Destination: &configPath,
		},
		cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Usage:       "debug, info, warn, error",
			Destination: &logLevel,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "rotated log file path (stderr only if empty)",
			Destination: &logFile,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "up",
			Usage:  "start dgpud as a foreground daemon and export its D-Bus service",
			Action: cmdUp,
		},
		{
			Name:   "mode",
			Usage:  "print the current graphics mode",
			Action: cmdMode,
		},
		{
			Name:   "supported",
			Usage:  "list the graphics modes reachable on this machine",
			Action: cmdSupported,
		},
		{
			Name:   "vendor",
			Usage:  "print the detected dGPU vendor",
			Action: cmdVendor,
		},
		{
			Name:   "power",
			Usage:  "print the dGPU's runtime power state",
			Action: cmdPower,
		},
		{
			Name:      "set-mode",
			Usage:     "switch to MODE, returning the user action required (if any)",
			UsageText: "dgpud set-mode MODE",
			Action:    cmdSetMode,
		},
		{
			Name:   "config",
			Usage:  "print the daemon's policy config as JSON",
			Action: cmdConfig,
		},
		{
			Name:      "set-config",
			Usage:     "apply a policy config JSON document read from stdin",
			UsageText: "dgpud set-config < policy.json",
			Action:    cmdSetConfig,
		},
		{
			Name:   "status",
			Usage:  "print mode, vendor, power, and pending state in one shot",
			Action: cmdStatus,
		},
	}

	return app
}
