package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"habitpact/config"
	"habitpact/internal/logging"
)

var CLI struct {
	Version  kong.VersionFlag
	LogLevel string `help:"Log level." default:"warn"`

	Migrate      MigrateCmd      `cmd:"" help:"Create or update the database schema."`
	Token        TokenCmd        `cmd:"" help:"Mint an access token for a user."`
	Partnerships PartnershipsCmd `cmd:"" help:"List a user's partnerships."`
	NudgeStatus  NudgeStatusCmd  `cmd:"" name:"nudge-status" help:"Show the nudge cooldown of a partnership."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("pactctl"),
		kong.Description("Operator tool for the habit partnership service"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)
	cfg := config.Load()
	appCtx := &Context{
		Config: cfg,
		Log:    logging.New(CLI.LogLevel, cfg.Log.Format),
		Out:    os.Stdout,
	}
	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
