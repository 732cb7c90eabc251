package cli

import (
	"flag"
	"log"
	"os"
)

// App represents the scopetest application.
type App struct {
	flags *Flags
}

// NewApp creates a new application instance.
func NewApp() *App {
	return &App{}
}

// Initialize sets up the application with flags and configuration.
func (app *App) Initialize() {
	log.SetFlags(0)
	ParseFlags(Usage)
	app.flags = GlobalFlags
	initLogging()
	initSignals()
}

// Run executes the application logic with the provided runner.
func (app *App) Run(runner *Runner) {
	if *app.flags.Version {
		ShowVersion()
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		Usage()
		os.Exit(2)
	}

	runner.Execute(args[0], args[1:])
}
