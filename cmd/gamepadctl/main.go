// gamepadctl - control client for the gamepadd daemon
//
//	gamepadctl [-socket path] [-json] <ping|status|devices|reload|stop>
//
// Talks to the daemon's Unix control socket. Useful from scripts and
// for machines where gamepadd runs as a user service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"gamepadd/internal/config"
	"gamepadd/internal/ipc"
)

var version = "dev"

func main() {
	socketPath := flag.String("socket", config.DefaultSocketPath(), "daemon control socket")
	asJSON := flag.Bool("json", false, "print machine-readable JSON")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	if flag.Arg(0) == "version" {
		fmt.Printf("gamepadctl %s\n", version)
		return
	}

	client, err := ipc.Dial(*socketPath, *timeout)
	if err != nil {
		fatal(err)
	}
	defer client.Close()

	switch flag.Arg(0) {
	case "ping":
		if err := client.Ping(*timeout); err != nil {
			fatal(err)
		}
		fmt.Println("pong")

	case "status":
		status, err := client.Status(*timeout)
		if err != nil {
			fatal(err)
		}
		if *asJSON {
			printJSON(status)
			return
		}
		fmt.Printf("state: %s\n", status.Inhibit.State)
		fmt.Printf("backend: %s\n", status.Inhibit.Backend)
		fmt.Printf("devices: %d\n", len(status.Devices))
		fmt.Printf("health: %s\n", status.Health.Status)

	case "devices":
		devices, err := client.Devices(*timeout)
		if err != nil {
			fatal(err)
		}
		if *asJSON {
			printJSON(devices)
			return
		}
		for _, dev := range devices {
			fmt.Printf("%s\t%s\n", dev.Path, dev.Name)
		}

	case "reload":
		if err := client.Reload(*timeout); err != nil {
			fatal(err)
		}
		fmt.Println("ok")

	case "stop":
		if err := client.Shutdown(*timeout); err != nil {
			fatal(err)
		}
		fmt.Println("ok")

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: gamepadctl [-socket path] [-json] <command>

commands:
    ping      Check the daemon is responsive
    status    Show inhibition state, devices, and health
    devices   List monitored gamepads
    reload    Reload the daemon's configuration
    stop      Stop the daemon
    version   Print the version`)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "gamepadctl: %v\n", err)
	os.Exit(1)
}
