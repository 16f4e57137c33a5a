package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"launch-control/launch_ctl"
)

func main() {
	var configPath string
	var liveAddr string
	var outputAddr string
	var commandsAddr string
	var tuningPath string
	var alliance string
	var sim bool
	flag.StringVar(&configPath, "config", "config.testing.yaml", "Path to YAML or JSON config.")
	flag.StringVar(&liveAddr, "live-addr", "", "Override sensor UDP listen addr (host:port).")
	flag.StringVar(&outputAddr, "output-addr", "", "Override actuator UDP addr (host:port).")
	flag.StringVar(&commandsAddr, "commands-addr", "", "Override operator command UDP listen addr (host:port).")
	flag.StringVar(&tuningPath, "tuning", "", "Override tuning file (reloaded on the \"reload\" command).")
	flag.StringVar(&alliance, "alliance", "", "Default alliance for fire commands (RED or BLUE).")
	flag.BoolVar(&sim, "sim", false, "Run against the simulated robot instead of UDP sensors.")
	flag.Parse()

	cfg, err := launch_ctl.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config %q: %v", configPath, err)
	}

	if liveAddr != "" {
		cfg.Live.UDPAddr = liveAddr
	}
	if outputAddr != "" {
		cfg.Output.UDPAddr = outputAddr
	}
	if commandsAddr != "" {
		cfg.Commands.UDPAddr = commandsAddr
	}
	if tuningPath != "" {
		cfg.TuningFile = tuningPath
	}
	if alliance != "" {
		side, err := launch_ctl.ParseAlliance(alliance)
		if err != nil {
			log.Fatalf("invalid alliance %q: %v", alliance, err)
		}
		cfg.Alliance = side
	}
	if sim {
		cfg.Sim.Enabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := launch_ctl.RunLive(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}
