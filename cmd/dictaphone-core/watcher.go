package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tiroq/dictaphone/internal/ipc"
)

const (
	pollInterval = time.Second
	// writeSettle gives the writer time to finish before cmd.txt is read
	writeSettle = 50 * time.Millisecond
)

// watchCommands forwards commands written to cmd.txt to out until stop is
// closed. It watches the directory with fsnotify and falls back to polling.
func watchCommands(out chan<- ipc.Command, stop <-chan struct{}) {
	cmdPath := ipc.CommandPath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errLog.Printf("fsnotify not available, falling back to polling: %v", err)
		pollCommands(cmdPath, out, stop)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			errLog.Printf("Failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(filepath.Dir(cmdPath)); err != nil {
		errLog.Printf("Failed to watch command directory, falling back to polling: %v", err)
		pollCommands(cmdPath, out, stop)
		return
	}

	outLog.Println("[STARTUP] Command watcher started (using fsnotify)")

	// Backup poll in case events are missed
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				outLog.Println("fsnotify watcher closed, switching to polling")
				pollCommands(cmdPath, out, stop)
				return
			}
			if event.Name == cmdPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				time.Sleep(writeSettle)
				if !forward(out, stop) {
					return
				}
				lastCheckTime = time.Now()
			}

		case <-pollTicker.C:
			if info, err := os.Stat(cmdPath); err == nil && info.ModTime().After(lastCheckTime) {
				time.Sleep(writeSettle)
				if !forward(out, stop) {
					return
				}
				lastCheckTime = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				outLog.Println("fsnotify error channel closed, switching to polling")
				pollCommands(cmdPath, out, stop)
				return
			}
			errLog.Printf("File watcher error: %v", err)
		}
	}
}

func pollCommands(cmdPath string, out chan<- ipc.Command, stop <-chan struct{}) {
	outLog.Println("[STARTUP] Command watcher started (using polling fallback, 1s interval)")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			info, err := os.Stat(cmdPath)
			if err != nil || !info.ModTime().After(lastCheckTime) {
				continue
			}
			time.Sleep(writeSettle)
			if !forward(out, stop) {
				return
			}
			lastCheckTime = time.Now()
		}
	}
}

// forward reads and clears one pending command and hands it to the command
// loop. It returns false once stop is closed.
func forward(out chan<- ipc.Command, stop <-chan struct{}) bool {
	cmd, err := ipc.ReadCommand()
	if err != nil {
		errLog.Printf("Failed to read command: %v", err)
		return true
	}
	if cmd == "" {
		return true
	}

	select {
	case out <- cmd:
		return true
	case <-stop:
		return false
	}
}
