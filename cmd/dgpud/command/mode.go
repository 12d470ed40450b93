package command

import (
	"fmt"

	"github.com/urfave/cli"
)

func cmdMode(cliContext *cli.Context) error {
	mode, err := call1("Mode")
	if err != nil {
		return err
	}
	fmt.Println(mode)
	return nil
}

func cmdVendor(cliContext *cli.Context) error {
	vendor, err := call1("Vendor")
	if err != nil {
		return err
	}
	fmt.Println(vendor)
	return nil
}

func cmdPower(cliContext *cli.Context) error {
	power, err := call1("Power")
	if err != nil {
		return err
	}
	fmt.Println(power)
	return nil
}

func cmdSupported(cliContext *cli.Context) error {
	modes, err := callStrings("Supported")
	if err != nil {
		return err
	}
	for _, m := range modes {
		fmt.Println(m)
	}
	return nil
}
