// clipd is the clipboard history daemon. It watches the system
// clipboard, persists captured items, and serves history and paste
// commands to clients over a unix socket.
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version is the daemon version, overridable at build time.
var Version = "1.0.0"

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default: <data-dir>/config.toml)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("clipd %s\n", Version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "clipd: %v\n", err)
		os.Exit(1)
	}
}
