package main

import (
	"context"
	"os"

	"github.com/storacha/silo/cmd/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
