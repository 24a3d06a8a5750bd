package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jgivc/livesite/internal/app"
)

var CLI struct {
	Config  string `short:"c" help:"Path to config file" default:"config.yml"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Serve struct{} `cmd:"" default:"1" help:"Build the site, watch the content directory and serve it"`
	Build struct{} `cmd:"" help:"Build the site once and exit"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("livesite"),
		kong.Description("Serve a blog from a content directory and rebuild it on every change."),
	)

	app := app.New(CLI.Config, CLI.Verbose)

	switch ctx.Command() {
	case "build":
		if err := app.Build(); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot build site: %s\n", err)
			os.Exit(1)
		}

		return
	}

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start: %s\n", err)
		app.Stop()
		os.Exit(1)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for sig := range c {
		switch sig {
		case syscall.SIGUSR1:
			app.Rebuild()
		case syscall.SIGTERM, syscall.SIGINT:
			fmt.Println("Received termination signal. Shutting down...")
			signal.Stop(c)
			app.Stop()
			fmt.Println("done")

			return
		}
	}
}
