package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sandeepkv93/nagd/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "export" {
		return runExport(args[1:])
	}

	fs := flag.NewFlagSet("nagd", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "settings file (YAML or JSON)")
	tasksFile := fs.String("tasks", "", "task file (overrides tasks_file)")
	headless := fs.Bool("headless", false, "read commands from stdin instead of starting the TUI")
	interval := fs.Duration("interval", 0, "nag interval, e.g. 30m (overrides notification_interval_seconds)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *interval != 0 && *interval < time.Second {
		fmt.Fprintln(os.Stderr, "nagd: -interval must be at least 1s")
		return 2
	}

	a := app.New(app.Options{
		ConfigPath: *configPath,
		TasksFile:  *tasksFile,
		Interval:   *interval,
		Headless:   *headless,
	})
	ctx := context.Background()
	if err := a.Initialize(ctx); err != nil {
		a.Close()
		fmt.Fprintf(os.Stderr, "nagd failed to start: %v\n", err)
		return 1
	}
	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "nagd: %v\n", err)
		return 1
	}
	return 0
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("nagd export", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "settings file (YAML or JSON)")
	format := fs.String("format", "md", "output format: md or xlsx")
	out := fs.String("out", "-", "output path, - for stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := app.Export(context.Background(), *configPath, *format, *out, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "nagd export: %v\n", err)
		return 1
	}
	return 0
}
