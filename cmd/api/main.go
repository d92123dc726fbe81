package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"svrlive.org/internal/appconf"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("svrlive exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		return err
	}
	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, srv, coreApp, api)
}

// loadConfig layers defaults, an optional config file, the environment
// (including .env) and finally command-line flags.
func loadConfig(args []string) (appconf.Config, error) {
	fs := flag.NewFlagSet("svrlive", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML or JSON config file")
	port := fs.Int("port", 0, "API server port")
	env := fs.String("env", "", "environment (development|test|production)")
	dir := fs.String("timetables", "", "timetables directory for the files backend")
	backend := fs.String("backend", "", "timetable backend (files|sqlite|postgres)")
	debug := fs.Bool("debug", false, "serve the debug timetable regardless of date")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}

	cfg := appconf.Default()
	if *configPath != "" {
		fileCfg, err := appconf.LoadFromFile(*configPath)
		if err != nil {
			return appconf.Config{}, err
		}
		cfg = fileCfg.ToAppConfig()
	}

	cfg, err := appconf.FromEnv(cfg)
	if err != nil {
		return appconf.Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "env":
			e, err := appconf.ParseEnvironment(*env)
			if err != nil {
				flagErr = fmt.Errorf("invalid -env: %w", err)
				return
			}
			cfg.Env = e
		case "timetables":
			cfg.TimetablesDir = *dir
		case "backend":
			cfg.Backend = appconf.Backend(*backend)
		case "debug":
			cfg.Debug = *debug
		case "verbose":
			cfg.Verbose = *verbose
		}
	})
	if flagErr != nil {
		return appconf.Config{}, flagErr
	}
	return cfg, cfg.Validate()
}
