package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"gram/internal/app"
	"gram/internal/config"
	"gram/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read %s: %v\n", session.ConfigPath(), err)
		fmt.Fprintf(os.Stderr, "create it with a [telegram] section holding api_id, api_hash and phone\n")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{SessionName: sessionName, Config: cfg}),
		fx.NopLogger,
	).Run()
}
