package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tr1v3r/pkg/log"
	"github.com/urfave/cli/v3"

	"github.com/tr1v3r/mpvctl/internal/config"
	"github.com/tr1v3r/mpvctl/internal/monitoring"
	"github.com/tr1v3r/mpvctl/internal/player"
)

var errNoMedia = errors.New("missing media path")

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Error("mpvctl: %v", err)
		log.Close()
		os.Exit(1)
	}
	log.Close()
}

// newCommand builds the root command. Its errors are plain so main flushes the
// log before exiting.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "mpvctl",
		Usage:     "play a media file in mpv and drive it over JSON IPC",
		ArgsUsage: "<media> [-- mpv options...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "TOML config file", Sources: cli.EnvVars(config.EnvConfigPath)},
			&cli.StringFlag{Name: "mpv", Usage: "mpv executable"},
			&cli.StringFlag{Name: "socket-dir", Usage: "directory for the IPC socket"},
			&cli.DurationFlag{Name: "ready-timeout", Usage: "how long to wait for the IPC socket"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("mpv") {
		cfg.MPVPath = cmd.String("mpv")
	}
	if cmd.IsSet("socket-dir") {
		cfg.SocketDir = cmd.String("socket-dir")
	}
	if cmd.IsSet("ready-timeout") {
		cfg.ReadyTimeout = cmd.Duration("ready-timeout")
	}

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return errNoMedia
	}
	media := args[0]
	cfg.Args = append(cfg.Args, args[1:]...)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := player.NewSession(cfg)
	defer func() {
		if err := session.Close(); err != nil {
			log.Error("stopping mpv: %v", err)
		}
		monitoring.GetMetrics().LogMetrics()
	}()

	if err := session.Start(ctx, media); err != nil {
		return err
	}
	log.Info("playing %s pid=%d, commands: p(ause) t(ime) s(eek) <pos> m(etrics) q(uit)", media, session.PID())

	return control(ctx, session, os.Stdin, os.Stdout)
}
