package main

import (
	"context"
	"os"

	"github.com/compozy/woodsage/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
