package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clipd/internal/config"
	"clipd/internal/engine"
	"clipd/internal/ipc"
)

// connect dials the daemon socket. The socket path comes from the
// -socket flag when given, otherwise from the effective configuration.
func connect() *ipc.Client {
	path := *socketPath
	if path == "" {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		path = cfg.IPC.SocketPath
	}

	client := ipc.NewClient(ipc.DefaultClientConfig(path))
	if err := client.Connect(); err != nil {
		if errors.Is(err, ipc.ErrDaemonNotRunning) {
			fmt.Fprintln(os.Stderr, "clipd is not running")
		} else {
			fmt.Fprintf(os.Stderr, "Error connecting to daemon: %v\n", err)
		}
		os.Exit(1)
	}
	return client
}

func fatal(err error) {
	var remote *ipc.RemoteError
	if errors.As(err, &remote) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", remote.Message)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func cmdStatus() {
	client := connect()
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		fatal(err)
	}

	fmt.Println("=== clipd Status ===")
	fmt.Printf("Version:      %s\n", status.Version)
	fmt.Printf("Uptime:       %s\n", time.Since(status.StartedAt).Round(time.Second))
	fmt.Printf("History:      %d items\n", status.ItemCount)
	fmt.Printf("Encryption:   %s\n", onOff(status.EncryptionEnabled))
	fmt.Printf("Access grant: %s\n", grantedDenied(status.AccessGranted))
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	kind := fs.String("kind", "", "filter by content kind")
	pinned := fs.Bool("pinned", false, "pinned items only")
	favorite := fs.Bool("favorite", false, "favorite items only")
	folder := fs.String("folder", "", "filter by folder id")
	query := fs.String("query", "", "free-text search")
	fuzzy := fs.Bool("fuzzy", false, "fuzzy-match the query")
	limit := fs.Int("limit", 50, "maximum items to return")
	asJSON := fs.Bool("json", false, "print raw JSON")
	fs.Parse(args)

	req := &ipc.ListItemsRequest{
		Query: *query,
		Fuzzy: *fuzzy,
		Limit: *limit,
	}
	if *kind != "" {
		req.Kinds = []string{*kind}
	}
	if *pinned {
		t := true
		req.Pinned = &t
	}
	if *favorite {
		t := true
		req.Favorite = &t
	}
	if *folder != "" {
		req.FolderID = folder
	}

	client := connect()
	defer client.Close()

	items, err := client.ListItems(req)
	if err != nil {
		fatal(err)
	}

	if *asJSON {
		data, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(items) == 0 {
		fmt.Println("No items.")
		return
	}

	fmt.Printf("%-36s %-10s %-17s %-5s %s\n", "ID", "Kind", "Captured", "Flags", "Preview")
	fmt.Println(strings.Repeat("-", 100))
	for _, it := range items {
		fmt.Printf("%-36s %-10s %-17s %-5s %s\n",
			it.ID, it.Kind,
			it.CreatedAt.Local().Format("2006-01-02 15:04"),
			itemFlags(it),
			truncate(it.Preview, 40))
	}
}

func itemFlags(it engine.ViewModel) string {
	var b strings.Builder
	if it.Pinned {
		b.WriteByte('P')
	}
	if it.Favorite {
		b.WriteByte('F')
	}
	if it.Encrypted {
		b.WriteByte('E')
	}
	if it.Unavailable {
		b.WriteByte('!')
	}
	return b.String()
}

func cmdPaste(itemID string) {
	client := connect()
	defer client.Close()

	result, err := client.Paste(itemID)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Delivery: %s\n", result)
}

func cmdPin(itemID string) {
	client := connect()
	defer client.Close()

	if err := client.TogglePin(itemID); err != nil {
		fatal(err)
	}
	fmt.Println("Pin toggled.")
}

func cmdFavorite(itemID string) {
	client := connect()
	defer client.Close()

	if err := client.ToggleFavorite(itemID); err != nil {
		fatal(err)
	}
	fmt.Println("Favorite toggled.")
}

func cmdDelete(itemID string) {
	client := connect()
	defer client.Close()

	if err := client.DeleteItem(itemID); err != nil {
		fatal(err)
	}
	fmt.Println("Item deleted.")
}

func cmdClear() {
	client := connect()
	defer client.Close()

	if err := client.ClearHistory(); err != nil {
		fatal(err)
	}
	fmt.Println("History cleared. Pinned items were kept.")
}

func cmdFolder(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: clipctl folder <list|create|rename|delete|assign> [args]")
		os.Exit(1)
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "list":
		cmdFolderList()
	case "create":
		fs := flag.NewFlagSet("folder create", flag.ExitOnError)
		color := fs.String("color", "", "folder color tag")
		parent := fs.String("parent", "", "parent folder id")
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl folder create [-color tag] [-parent id] <name>")
			os.Exit(1)
		}
		cmdFolderCreate(fs.Arg(0), *color, *parent)
	case "rename":
		fs := flag.NewFlagSet("folder rename", flag.ExitOnError)
		color := fs.String("color", "", "new color tag")
		fs.Parse(rest)
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl folder rename [-color tag] <id> <name>")
			os.Exit(1)
		}
		cmdFolderRename(fs.Arg(0), fs.Arg(1), *color)
	case "delete":
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl folder delete <id>")
			os.Exit(1)
		}
		cmdFolderDelete(rest[0])
	case "assign":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: clipctl folder assign <item-id> <folder-id|none>")
			os.Exit(1)
		}
		cmdFolderAssign(rest[0], rest[1])
	default:
		fmt.Fprintf(os.Stderr, "Unknown folder subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func cmdFolderList() {
	client := connect()
	defer client.Close()

	folders, err := client.ListFolders()
	if err != nil {
		fatal(err)
	}

	if len(folders) == 0 {
		fmt.Println("No folders.")
		return
	}

	fmt.Printf("%-36s %-20s %-10s %s\n", "ID", "Name", "Color", "Parent")
	fmt.Println(strings.Repeat("-", 80))
	for _, f := range folders {
		parent := ""
		if f.ParentID != nil {
			parent = *f.ParentID
		}
		fmt.Printf("%-36s %-20s %-10s %s\n", f.ID, f.Name, f.ColorTag, parent)
	}
}

func cmdFolderCreate(name, color, parent string) {
	client := connect()
	defer client.Close()

	var parentID *string
	if parent != "" {
		parentID = &parent
	}

	folder, err := client.CreateFolder(name, color, parentID)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Folder created: %s (%s)\n", folder.Name, folder.ID)
}

func cmdFolderRename(id, name, color string) {
	client := connect()
	defer client.Close()

	if err := client.UpdateFolder(id, name, color); err != nil {
		fatal(err)
	}
	fmt.Println("Folder updated.")
}

func cmdFolderDelete(id string) {
	client := connect()
	defer client.Close()

	if err := client.DeleteFolder(id); err != nil {
		fatal(err)
	}
	fmt.Println("Folder deleted. Items were detached, not removed.")
}

func cmdFolderAssign(itemID, folder string) {
	client := connect()
	defer client.Close()

	var folderID *string
	if folder != "none" {
		folderID = &folder
	}

	if err := client.AssignFolder(itemID, folderID); err != nil {
		fatal(err)
	}
	if folderID == nil {
		fmt.Println("Item detached from its folder.")
	} else {
		fmt.Println("Item assigned.")
	}
}

func cmdThumbnail(args []string) {
	fs := flag.NewFlagSet("thumbnail", flag.ExitOnError)
	output := fs.String("o", "", "output path (default: <item-id>.png)")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: clipctl thumbnail [-o out.png] <item-id>")
		os.Exit(1)
	}
	itemID := fs.Arg(0)

	client := connect()
	defer client.Close()

	png, err := client.Thumbnail(itemID)
	if err != nil {
		fatal(err)
	}

	path := *output
	if path == "" {
		path = itemID + ".png"
	}
	if err := os.WriteFile(path, png, 0600); err != nil {
		fatal(err)
	}
	fmt.Printf("Thumbnail written to %s (%d bytes)\n", path, len(png))
}

func cmdEncrypt(enable bool) {
	client := connect()
	defer client.Close()

	if !enable {
		if err := client.DisableEncryption(); err != nil {
			fatal(err)
		}
		fmt.Println("Encryption disabled for future captures.")
		return
	}

	resp, err := client.EnableEncryption()
	if err != nil {
		fatal(err)
	}
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "Encryption not enabled: %s\n", resp.Error)
		os.Exit(1)
	}
	fmt.Println("Encryption enabled. New captures are sealed at rest.")
}

func cmdWatch() {
	client := connect()
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		fatal(err)
	}

	fmt.Println("Watching daemon events. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			fmt.Println()
			return
		case ev, ok := <-client.Events():
			if !ok {
				fmt.Fprintln(os.Stderr, "Connection closed.")
				return
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev engine.Event) {
	ts := time.Now().Format("15:04:05")
	switch ev.Type {
	case engine.EventItemAdded:
		if ev.Item != nil {
			fmt.Printf("[%s] added    %s %-10s %s\n", ts, ev.Item.ID, ev.Item.Kind, truncate(ev.Item.Preview, 40))
		}
	case engine.EventItemUpdated:
		if ev.Item != nil {
			fmt.Printf("[%s] updated  %s %s\n", ts, ev.Item.ID, itemFlags(*ev.Item))
		}
	case engine.EventItemRemoved:
		fmt.Printf("[%s] removed  %s\n", ts, ev.ItemID)
	case engine.EventHistoryCleared:
		fmt.Printf("[%s] history cleared\n", ts)
	case engine.EventDelivery:
		fmt.Printf("[%s] delivery %s: %s\n", ts, ev.ItemID, ev.Result)
	case engine.EventEncryption:
		fmt.Printf("[%s] encryption %s\n", ts, onOff(ev.Enabled))
	case engine.EventError:
		fmt.Printf("[%s] error: %s\n", ts, ev.Error)
	default:
		fmt.Printf("[%s] %s\n", ts, ev.Type)
	}
}

// Helper functions

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func grantedDenied(b bool) string {
	if b {
		return "granted"
	}
	return "missing"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
