// clipctl is the control CLI for clipd.
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version is the CLI version, overridable at build time.
var Version = "1.0.0"

var (
	socketPath = flag.String("socket", "", "path to the daemon socket (default: <data-dir>/clipd.sock)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {
	case "status":
		cmdStatus()
	case "list":
		cmdList(args)
	case "paste":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl paste <item-id>")
			os.Exit(1)
		}
		cmdPaste(args[0])
	case "pin":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl pin <item-id>")
			os.Exit(1)
		}
		cmdPin(args[0])
	case "favorite":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl favorite <item-id>")
			os.Exit(1)
		}
		cmdFavorite(args[0])
	case "delete":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl delete <item-id>")
			os.Exit(1)
		}
		cmdDelete(args[0])
	case "clear":
		cmdClear()
	case "folder":
		cmdFolder(args)
	case "thumbnail":
		cmdThumbnail(args)
	case "encrypt":
		if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
			fmt.Fprintln(os.Stderr, "Usage: clipctl encrypt on|off")
			os.Exit(1)
		}
		cmdEncrypt(args[0] == "on")
	case "watch":
		cmdWatch()
	case "version":
		fmt.Printf("clipctl %s\n", Version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `clipctl - Control utility for clipd

Usage: clipctl [options] <command> [args]

Commands:
  status                    Show daemon status
  list [flags]              List history items
  paste <item-id>           Deliver an item as a paste
  pin <item-id>             Toggle an item's pin
  favorite <item-id>        Toggle an item's favorite mark
  delete <item-id>          Delete an item
  clear                     Delete all unpinned history
  folder <subcommand>       Manage folders (list, create, rename, delete, assign)
  thumbnail <item-id>       Fetch an image item's thumbnail PNG
  encrypt on|off            Toggle at-rest encryption
  watch                     Stream daemon events until interrupted
  version                   Print version
  help                      Show this help message

List flags:
  -kind <text|url|file-path|rich-text|image>
  -pinned -favorite -folder <id> -query <text> -fuzzy -limit <n> -json

Options:
  -socket <path>  Path to the daemon socket`)
}
