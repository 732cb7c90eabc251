package main

import (
	"github.com/mamaar/scopetest/internal/cli"
	"github.com/mamaar/scopetest/internal/cli/commands"
)

func main() {
	app := cli.NewApp()
	app.Initialize()
	defer cli.Shutdown()

	runner := cli.NewRunner()
	runner.RegisterCommand("affected", commands.AffectedCommand)
	runner.RegisterCommand("build", commands.BuildCommand)
	runner.RegisterCommand("why", commands.WhyCommand)
	runner.RegisterCommand("coverage", commands.CoverageCommand)
	runner.RegisterCommand("watch", commands.WatchCommand)
	runner.RegisterCommand("version", commands.VersionCommand)
	runner.RegisterCommand("help", commands.HelpCommand)

	app.Run(runner)
}
