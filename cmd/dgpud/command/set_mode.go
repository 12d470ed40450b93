package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
)

func cmdSetMode(cliContext *cli.Context) error {
	mode := cliContext.Args().First()
	if mode == "" {
		return errors.New("usage: dgpud set-mode MODE")
	}

	action, err := call1("SetMode", mode)
	if err != nil {
		return err
	}

	switch action {
	case "Nothing":
		fmt.Printf("%s switched to %s, no further action needed\n", checkMark, mode)
	default:
		fmt.Printf("%s switched to %s, user action required: %s\n", warningSign, mode, action)
	}
	return nil
}
