package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tiroq/dictaphone/internal/ipc"
	"github.com/tiroq/dictaphone/internal/pidfile"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

const usage = `usage: dictaphone-ctl <command>

commands:
  toggle   start recording, or stop and transcribe
  start    start recording
  stop     stop recording and transcribe
  copy     copy the latest transcript to the clipboard
  retry    transcribe the captured audio again
  quit     shut the daemon down
  status   print the latest transcript and state
  watch    print the transcript every time it changes
  version  print the version`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	switch arg := os.Args[1]; arg {
	case "status":
		if err := printStatus(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "watch":
		if err := watchStatus(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println("dictaphone-ctl " + Version)
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		cmd, ok := ipc.ParseCommand(arg)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", arg, usage)
			os.Exit(2)
		}
		if _, running := pidfile.Running(pidfile.Path("dictaphone-core")); !running {
			fmt.Fprintln(os.Stderr, "warning: dictaphone-core does not appear to be running")
		}
		if err := ipc.WriteCommand(cmd); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}

func printStatus() error {
	status, err := ipc.ReadStatus()
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no status yet at %s (is dictaphone-core running?)", ipc.StatusPath())
		}
		return err
	}
	renderStatus(os.Stdout, status, useColor())
	return nil
}

// watchStatus re-renders status.json on every change until interrupted
func watchStatus() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("Failed to close watcher: %v", err)
		}
	}()

	statusDir := ipc.Dir()
	if err := os.MkdirAll(statusDir, 0755); err != nil {
		return err
	}
	// Watch the directory, status.json is replaced on every write
	if err := watcher.Add(statusDir); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	statusPath := filepath.Clean(ipc.StatusPath())
	color := useColor()
	redraw := func() {
		status, err := ipc.ReadStatus()
		if err != nil {
			return
		}
		if color {
			fmt.Print("\033[H\033[2J")
		}
		renderStatus(os.Stdout, status, color)
	}
	redraw()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == statusPath && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)
				redraw()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-sigChan:
			return nil
		}
	}
}

func useColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
