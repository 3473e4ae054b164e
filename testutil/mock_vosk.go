package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MockVoskServer simulates a vosk-server WebSocket endpoint for testing.
// Each binary audio frame is answered with an empty partial; the queued final
// results are sent after the client's eof message, followed by a normal close.
type MockVoskServer struct {
	listener    net.Listener
	server      *http.Server
	finals      []string
	mode        string
	mu          sync.Mutex
	connections int
	audioBytes  int64
	sampleRate  int
	fixturesDir string
}

// FailureModes define how the mock server behaves
const (
	ModeNormal     = "normal"
	ModeGarbage    = "garbage"
	ModeDisconnect = "disconnect"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewMockVosk creates a new mock vosk server. fixturesDir is where
// LoadFixture looks for JSON result files.
func NewMockVosk(fixturesDir string) *MockVoskServer {
	return &MockVoskServer{
		mode:        ModeNormal,
		fixturesDir: fixturesDir,
	}
}

// Start begins listening on a dynamic port
func (m *MockVoskServer) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	m.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleWebSocket)

	m.server = &http.Server{Handler: mux}

	go func() {
		_ = m.server.Serve(m.listener)
	}()

	return nil
}

// Stop shuts down the server
func (m *MockVoskServer) Stop() error {
	if m.server != nil {
		_ = m.server.Close()
	}
	if m.listener != nil {
		_ = m.listener.Close()
	}
	return nil
}

// URL returns the ws:// address of the server
func (m *MockVoskServer) URL() string {
	if m.listener == nil {
		return ""
	}
	return "ws://" + m.listener.Addr().String()
}

// SetFailureMode configures how the server responds after eof
func (m *MockVoskServer) SetFailureMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// QueueFinal queues a raw final-result message sent after eof
func (m *MockVoskServer) QueueFinal(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finals = append(m.finals, result)
}

// LoadFixture reads a JSON fixture file and queues it as a final result
func (m *MockVoskServer) LoadFixture(filename string) error {
	data, err := os.ReadFile(fmt.Sprintf("%s/%s", m.fixturesDir, filename))
	if err != nil {
		return fmt.Errorf("failed to read fixture %s: %w", filename, err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("failed to parse fixture %s", filename)
	}
	m.QueueFinal(string(data))
	return nil
}

// AudioBytes returns the number of PCM bytes received across connections
func (m *MockVoskServer) AudioBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioBytes
}

// SampleRate returns the sample rate announced by the last client config
func (m *MockVoskServer) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// Connections returns how many WebSocket sessions were accepted
func (m *MockVoskServer) Connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections
}

// handleWebSocket manages one recognition session
func (m *MockVoskServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	m.mu.Lock()
	m.connections++
	m.mu.Unlock()

	// Wait for the config message; health checks close here.
	var cfg struct {
		Config struct {
			SampleRate int `json:"sample_rate"`
		} `json:"config"`
	}
	if err := conn.ReadJSON(&cfg); err != nil {
		return
	}
	m.mu.Lock()
	m.sampleRate = cfg.Config.SampleRate
	m.mu.Unlock()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if mt == websocket.BinaryMessage {
			m.mu.Lock()
			m.audioBytes += int64(len(msg))
			m.mu.Unlock()
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"partial" : ""}`)); err != nil {
				return
			}
			continue
		}

		if !strings.Contains(string(msg), "eof") {
			continue
		}

		m.mu.Lock()
		mode := m.mode
		finals := append([]string(nil), m.finals...)
		m.mu.Unlock()

		switch mode {
		case ModeDisconnect:
			// Drop the TCP connection without a close frame.
			return
		case ModeGarbage:
			_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		default:
			for _, f := range finals {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
					return
				}
			}
		}

		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return
	}
}
