package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var version = "dev"

// Globals are the flags shared by every command.
type Globals struct {
	Config  string `short:"c" default:"config.yaml" help:"Path to the YAML config file"`
	EnvFile string `name:"env-file" default:".env" help:"Env file loaded before the config"`
	Debug   bool   `help:"Enable debug logging"`
	LogJSON bool   `name:"log-json" help:"Log JSON lines instead of console output"`
}

// load sets up logging and returns the config with env overrides applied.
func (g *Globals) load() (*Config, error) {
	if err := godotenv.Load(g.EnvFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", g.EnvFile, err)
	}
	setupLogger(g.Debug, g.LogJSON)

	cfg, err := loadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Print version and exit"`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API and the WebSocket gateway"`
	Relay    RelayCmd    `cmd:"" help:"Relay outbox events from Postgres to JetStream"`
	Migrate  MigrateCmd  `cmd:"" help:"Apply the database schema"`
	Simulate SimulateCmd `cmd:"" help:"Play a game in memory and print the draw log"`
	Info     VersionCmd  `cmd:"" name:"version" help:"Show version information"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bingo"),
		kong.Description("Multiplayer bingo server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("bingo %s\n", version)
	return nil
}
