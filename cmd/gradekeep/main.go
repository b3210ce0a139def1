// Package main provides the entry point for the gradekeep CLI tool.
package main

import (
	"os"

	"github.com/gradekeep/gradekeep/cmd/gradekeep/app"
)

// Version information populated by the build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application, err := app.New(version, commit, date)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		app.ExitOnError(err)
	}
}
