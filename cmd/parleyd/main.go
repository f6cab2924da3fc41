package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/daemon"
	"github.com/parley-chat/parley/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	serverFlag := flag.String("server", "", "websocket server URL (overrides config)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load %s: %v\n", profile.ConfigPath(), err)
		os.Exit(1)
	}
	serverURL := cfg.ServerURL
	if *serverFlag != "" {
		serverURL = *serverFlag
	}
	if serverURL == "" {
		fmt.Fprintln(os.Stderr, "error: no server_url in config and no -server flag")
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			ServerURL:   serverURL,
			UserID:      cfg.UserID,
			UserName:    cfg.UserName,
		}),
	)

	app.Run()
}
