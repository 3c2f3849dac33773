package main

import (
	"fmt"
	"os"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/cli"

	opservice "github.com/mantlenetworkio/proxy-ops/op-service"
)

func main() {
	app := cli.NewApp(opservice.CurrentBuild().String())
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	err := app.Run(os.Args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}
