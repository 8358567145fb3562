// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on kryptco-kr's kr/kr.go urfave/cli.App/Flags wiring for the
// flag surface, and on kryptco-kr/krd/main/krd.go for the
// listen-then-wait-on-signal daemon shape; reworked around this module's
// single-threaded reactor loop (spec §5) instead of krd's goroutine-per-
// listener model, since every component here runs cooperatively off one
// RunOnce loop rather than blocking accept() calls.

// Command vded assembles a [context.Context] from command-line flags,
// wires a vde2 transport, a hub engine, a connection manager and
// (optionally) a JSON-RPC control engine, and drives the reactor loop
// until a termination signal arrives.
package main

import (
	gocontext "context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connmanager"
	vctx "github.com/shammash/vde3-go/context"
	"github.com/shammash/vde3-go/engine/ctrl"
	"github.com/shammash/vde3-go/engine/hub"
	"github.com/shammash/vde3-go/internal/reactor"
	"github.com/shammash/vde3-go/transport/vde2"
)

func main() {
	app := cli.NewApp()
	app.Name = "vded"
	app.Usage = "run a vde3 forwarding hub, reachable over a vde2-compatible socket"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "dir",
			Usage: "rendezvous directory for the vde2 data-plane socket",
			Value: "/tmp/vde3.ctl",
		},
		cli.StringFlag{
			Name:  "hub-name",
			Usage: "component name of the forwarding hub",
			Value: "hub0",
		},
		cli.StringFlag{
			Name:  "ctrl-dir",
			Usage: "rendezvous directory for an optional JSON-RPC control socket; empty disables it",
			Value: "",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug-level logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vded:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := vde3.NewConfig()
	cfg.Logger = logger

	r, err := reactor.NewEpollReactor()
	if err != nil {
		return fmt.Errorf("vded: reactor: %w", err)
	}
	defer r.Close()

	ctx := vctx.New(cfg)
	if err := ctx.Init(r, nil); err != nil {
		return fmt.Errorf("vded: context init: %w", err)
	}
	defer ctx.Fini()

	if err := ctx.RegisterModule(hub.Module()); err != nil {
		return fmt.Errorf("vded: register hub module: %w", err)
	}
	if err := ctx.RegisterModule(vde2.Module(r, cfg)); err != nil {
		return fmt.Errorf("vded: register vde2 module: %w", err)
	}
	if err := ctx.RegisterModule(connmanager.Module(logger)); err != nil {
		return fmt.Errorf("vded: register connmanager module: %w", err)
	}

	hubName := c.String("hub-name")
	hubComp, err := ctx.NewComponent(component.KindEngine, hub.Family, hubName)
	if err != nil {
		return fmt.Errorf("vded: new hub: %w", err)
	}

	dataTransport, err := ctx.NewComponent(component.KindTransport, vde2.Family, "data0", c.String("dir"))
	if err != nil {
		return fmt.Errorf("vded: new data transport: %w", err)
	}

	dataCM, err := ctx.NewComponent(component.KindConnectionManager, connmanager.Family, "datacm0", dataTransport, hubComp)
	if err != nil {
		return fmt.Errorf("vded: new data connection manager: %w", err)
	}
	cmOps, _ := dataCM.ConnectionManagerOps()
	if err := cmOps.Listen(gocontext.Background()); err != nil {
		return fmt.Errorf("vded: listen on %s: %w", c.String("dir"), err)
	}
	logger.Info("vdedListening", "dir", c.String("dir"), "hub", hubName)

	if ctrlDir := c.String("ctrl-dir"); ctrlDir != "" {
		if err := wireControlPlane(ctx, r, cfg, logger, ctrlDir, hubComp); err != nil {
			return err
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	for {
		select {
		case sig := <-stop:
			logger.Info("vdedStopping", "signal", sig.String())
			return nil
		default:
			if err := r.RunOnce(); err != nil {
				return fmt.Errorf("vded: reactor: %w", err)
			}
		}
	}
}

// wireControlPlane brings up a second vde2 transport, a ctrl engine
// resolving commands through ctx itself, and the connection manager
// pairing them, then starts listening (spec §4.5/§4.6).
func wireControlPlane(ctx *vctx.Context, r reactor.Reactor, cfg *vde3.Config, logger vde3.SLogger, ctrlDir string, hubComp *component.Component) error {
	if err := ctx.RegisterModule(ctrl.Module(ctx, logger)); err != nil {
		return fmt.Errorf("vded: register ctrl module: %w", err)
	}

	ctrlComp, err := ctx.NewComponent(component.KindControlEngine, ctrl.Family, "ctrl0")
	if err != nil {
		return fmt.Errorf("vded: new ctrl engine: %w", err)
	}

	ctrlTransport, err := ctx.NewComponent(component.KindTransport, vde2.Family, "ctrltransport0", ctrlDir)
	if err != nil {
		return fmt.Errorf("vded: new ctrl transport: %w", err)
	}

	ctrlCM, err := ctx.NewComponent(component.KindConnectionManager, connmanager.Family, "ctrlcm0", ctrlTransport, ctrlComp)
	if err != nil {
		return fmt.Errorf("vded: new ctrl connection manager: %w", err)
	}
	cmOps, _ := ctrlCM.ConnectionManagerOps()
	if err := cmOps.Listen(gocontext.Background()); err != nil {
		return fmt.Errorf("vded: listen on %s: %w", ctrlDir, err)
	}

	logger.Info("vdedControlListening", "dir", ctrlDir, "hub", hubComp.Name)
	return nil
}
