// Package ipc is the file-based protocol between dictaphone-ctl and the
// daemon: commands go through cmd.txt, state comes back through status.json.
package ipc

import (
	"os"
	"path/filepath"
	"strings"
)

// Command represents user commands from the control client to the daemon
type Command string

const (
	CmdStart  Command = "start"  // Start recording immediately
	CmdStop   Command = "stop"   // Stop recording and transcribe
	CmdToggle Command = "toggle" // Push-to-talk: start when idle, stop when recording
	CmdCopy   Command = "copy"   // Copy the latest transcript to the clipboard
	CmdRetry  Command = "retry"  // Re-transcribe the buffer after a failure
	CmdQuit   Command = "quit"   // Shutdown daemon
)

// Dir returns ~/.cache/dictaphone
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "dictaphone")
}

// CommandPath returns the path of cmd.txt
func CommandPath() string {
	return filepath.Join(Dir(), "cmd.txt")
}

// ParseCommand validates s as a known command.
func ParseCommand(s string) (Command, bool) {
	cmd := Command(strings.TrimSpace(s))
	switch cmd {
	case CmdStart, CmdStop, CmdToggle, CmdCopy, CmdRetry, CmdQuit:
		return cmd, true
	default:
		return "", false
	}
}

// WriteCommand writes a command to ~/.cache/dictaphone/cmd.txt
func WriteCommand(cmd Command) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	return os.WriteFile(CommandPath(), []byte(string(cmd)), 0644)
}

// ReadCommand reads and clears ~/.cache/dictaphone/cmd.txt
// Returns empty string if no command or file doesn't exist
func ReadCommand() (Command, error) {
	cmdPath := CommandPath()

	data, err := os.ReadFile(cmdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // No command pending
		}
		return "", err
	}

	// Clear the file immediately to prevent re-execution
	if len(data) > 0 {
		if err := os.WriteFile(cmdPath, []byte(""), 0644); err != nil {
			return "", err
		}
	}

	// Unknown commands are ignored
	cmd, _ := ParseCommand(string(data))
	return cmd, nil
}
