// gamepadd - keeps the screen awake while a gamepad is in use
//
//	gamepadd run        Run the daemon in the foreground
//	gamepadd status     Show the running daemon's status
//	gamepadd devices    List monitored gamepads
//	gamepadd reload     Reload the daemon's configuration
//	gamepadd stop       Stop the running daemon
//	gamepadd version    Print the version
//
// The daemon watches /dev/input for gamepad-class devices, reads
// their event streams, and holds a desktop idle inhibition while any
// of them shows activity, releasing it after an inactivity timeout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamepadd/internal/config"
	"gamepadd/internal/daemon"
	"gamepadd/internal/ipc"
	"gamepadd/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

const clientTimeout = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "run":
		cmdRun(os.Args[2:])
	case "status":
		cmdStatus()
	case "devices":
		cmdDevices()
	case "reload":
		cmdReload()
	case "stop":
		cmdStop()
	case "version", "-v", "--version":
		fmt.Printf("gamepadd %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`gamepadd - gamepad idle inhibitor

USAGE:
    gamepadd <command> [options]

COMMANDS:
    run         Run the daemon in the foreground (for systemd)
    status      Show daemon status (inhibition state, devices, health)
    devices     List monitored gamepads
    reload      Reload the configuration file
    stop        Stop the running daemon
    version     Print the version
    help        Show this help message

The daemon inhibits the desktop idle/screensaver mechanism while any
attached gamepad shows activity and releases the inhibition after a
configurable inactivity timeout. Configuration lives at
~/.config/gamepadd/config.toml; see config options there for the
deadzone, the timeout, and the inhibit backend.`)
}

// cmdRun runs the daemon in the foreground until a stop signal.
func cmdRun(args []string) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := flags.String("config", config.DefaultConfigPath(), "path to config file")
	flags.Parse(args)

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: %v\n", err)
		os.Exit(1)
	}
	defer loader.Close()

	log, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if err := loader.Watch(); err != nil {
		log.Warn("config hot-reload unavailable", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(loader, log, version)
	if err := d.Run(ctx); err != nil {
		// Never crash silently: the fatal cause goes to the
		// supervisor's log stream before the non-zero exit.
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}

	log.Info("gamepadd stopped")
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	logCfg := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Component:  "gamepadd",
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultConfig().FilePath
	}
	return logging.New(logCfg)
}

// dialDaemon connects to the running daemon's control socket.
func dialDaemon() *ipc.Client {
	client, err := ipc.Dial(config.DefaultSocketPath(), clientTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: is the daemon running? %v\n", err)
		os.Exit(1)
	}
	return client
}

func cmdStatus() {
	client := dialDaemon()
	defer client.Close()

	status, err := client.Status(clientTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("gamepadd %s (pid %d)\n", status.Version, status.PID)
	fmt.Printf("  started:  %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("  state:    %s (backend %s)\n", status.Inhibit.State, status.Inhibit.Backend)
	if !status.Inhibit.LastActivity.IsZero() {
		fmt.Printf("  activity: %s ago\n", time.Since(status.Inhibit.LastActivity).Round(time.Second))
	}
	fmt.Printf("  calls:    %d inhibit / %d release\n", status.Inhibit.InhibitCalls, status.Inhibit.ReleaseCalls)
	fmt.Printf("  health:   %s\n", status.Health.Status)
	fmt.Printf("  devices:  %d\n", len(status.Devices))
	for _, dev := range status.Devices {
		fmt.Printf("    %s  %s\n", dev.Path, dev.Name)
	}
}

func cmdDevices() {
	client := dialDaemon()
	defer client.Close()

	devices, err := client.Devices(clientTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("no gamepads monitored")
		return
	}
	for _, dev := range devices {
		fmt.Printf("%s  %04x:%04x  %s\n", dev.Path, dev.Vendor, dev.Product, dev.Name)
	}
}

func cmdReload() {
	client := dialDaemon()
	defer client.Close()

	if err := client.Reload(clientTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("configuration reloaded")
}

func cmdStop() {
	client := dialDaemon()
	defer client.Close()

	if err := client.Shutdown(clientTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "gamepadd: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("stop requested")
}
