package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/dgpud/dgpud/pkg/systemd"
)

func cmdStatus(cliContext *cli.Context) error {
	mode, err := call1("Mode")
	if err != nil {
		fmt.Printf("%s dgpud is not reachable: %v\n", warningSign, err)
		return err
	}
	vendor, err := call1("Vendor")
	if err != nil {
		return err
	}
	power, err := call1("Power")
	if err != nil {
		return err
	}
	pendingMode, err := call1("PendingMode")
	if err != nil {
		return err
	}
	pendingAction, err := call1("PendingUserAction")
	if err != nil {
		return err
	}

	fmt.Printf("%s dgpud is running\n", checkMark)
	fmt.Printf("mode:           %s\n", mode)
	fmt.Printf("vendor:         %s\n", vendor)
	fmt.Printf("power:          %s\n", power)
	if pendingMode != "" {
		fmt.Printf("pending mode:   %s\n", pendingMode)
	}
	if pendingAction != "" && pendingAction != "Nothing" {
		fmt.Printf("pending action: %s\n", pendingAction)
	}

	if sdVersion, _, err := systemd.Version(); err == nil {
		fmt.Printf("systemd:        %s\n", sdVersion)
	}

	// When a switch left a user action pending, the display manager's
	// own journal is the first place to look for why.
	if pendingAction != "" && pendingAction != "Nothing" && systemd.JournalctlExists() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		unit, ok := systemd.ResolveDisplayManager(ctx)
		if ok {
			if tail, err := systemd.GetLatestJournalctlOutput(ctx, unit); err == nil && tail != "" {
				fmt.Printf("\nrecent %s journal:\n%s\n", unit, tail)
			}
		}
		cancel()
	}
	return nil
}
