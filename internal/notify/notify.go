// Package notify keeps a bounded log of user-facing notifications and
// optionally mirrors them as desktop notifications.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// DefaultCapacity is the number of notifications kept.
const DefaultCapacity = 50

// Level classifies a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is one entry of the log.
type Notification struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// DesktopFunc shows a desktop notification.
type DesktopFunc func(title, message string) error

// Notifier records notifications, newest last.
type Notifier struct {
	mu       sync.Mutex
	entries  []Notification
	capacity int
	title    string
	desktop  DesktopFunc
	now      func() time.Time
}

// New creates a notifier keeping up to capacity entries (DefaultCapacity if
// capacity <= 0). Desktop notifications are off until EnableDesktop.
func New(title string, capacity int) *Notifier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Notifier{
		capacity: capacity,
		title:    title,
		now:      time.Now,
	}
}

// EnableDesktop mirrors every notification through beeep.
func (n *Notifier) EnableDesktop() {
	n.SetDesktop(func(title, message string) error {
		return beeep.Notify(title, message, "")
	})
}

// SetDesktop installs fn as the desktop notifier; nil disables it.
func (n *Notifier) SetDesktop(fn DesktopFunc) {
	n.mu.Lock()
	n.desktop = fn
	n.mu.Unlock()
}

// Info records an informational notification.
func (n *Notifier) Info(message string) {
	n.add(LevelInfo, message)
}

// Error records an error notification.
func (n *Notifier) Error(message string) {
	n.add(LevelError, message)
}

func (n *Notifier) add(level Level, message string) {
	n.mu.Lock()
	n.entries = append(n.entries, Notification{Time: n.now(), Level: level, Message: message})
	if over := len(n.entries) - n.capacity; over > 0 {
		n.entries = append(n.entries[:0], n.entries[over:]...)
	}
	desktop := n.desktop
	n.mu.Unlock()

	if desktop != nil {
		if err := desktop(n.title, message); err != nil {
			log.Printf("[notify] desktop notification failed: %v", err)
		}
	}
}

// Entries returns a copy of the log, oldest first.
func (n *Notifier) Entries() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.entries))
	copy(out, n.entries)
	return out
}
