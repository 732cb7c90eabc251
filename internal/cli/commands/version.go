package commands

import (
	"fmt"

	"github.com/mamaar/scopetest/internal/cli"
)

// VersionCommand handles the version command.
func VersionCommand(args []string) {
	if len(args) > 0 {
		fmt.Println(`Version Command - Show application version

Usage: scopetest version

Shows the current version of scopetest.`)
		return
	}

	cli.ShowVersion()
}
