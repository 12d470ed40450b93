package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	v1 "github.com/dgpud/dgpud/api/v1"
)

func cmdConfig(cliContext *cli.Context) error {
	cfgJSON, err := call1("Config")
	if err != nil {
		return err
	}
	fmt.Println(cfgJSON)

	var view v1.ConfigView
	if err := json.Unmarshal([]byte(cfgJSON), &view); err == nil && view.LogoutTimeoutS > 0 {
		d := time.Duration(view.LogoutTimeoutS) * time.Second
		fmt.Printf("logout_timeout_s: %d (%s)\n", view.LogoutTimeoutS, humanize.RelTime(time.Now(), time.Now().Add(d), "", ""))
	}
	return nil
}

func cmdSetConfig(cliContext *cli.Context) error {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading config from stdin: %w", err)
	}
	if err := callVoid("SetConfig", string(raw)); err != nil {
		return err
	}
	fmt.Printf("%s config applied\n", checkMark)
	return nil
}
