package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tiroq/dictaphone/internal/config"
	"github.com/tiroq/dictaphone/internal/diaglog"
	"github.com/tiroq/dictaphone/internal/ipc"
	"github.com/tiroq/dictaphone/internal/metrics"
	"github.com/tiroq/dictaphone/internal/notify"
	"github.com/tiroq/dictaphone/internal/pidfile"
	"github.com/tiroq/dictaphone/internal/recorder"
	"github.com/tiroq/dictaphone/internal/session"
)

const (
	logPrefix      = "[dictaphone-core]"
	statusInterval = time.Second
)

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	outLog *log.Logger
	errLog *log.Logger
)

func main() {
	// --export-diag [session-id]: read log, write bundle, exit
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		os.Exit(exportDiag(os.Args[2:]))
	}

	// Recover from any panics and log them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in dictaphone-core: %v\n", r)
			if outLog != nil {
				outLog.Printf("PANIC: %v", r)
			}
			if errLog != nil {
				errLog.Printf("PANIC: %v", r)
			}
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
			os.Exit(1)
		}
	}()

	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(modelArg(os.Args[1:])); err != nil {
		errLog.Printf("[STARTUP] %v", err)
		fmt.Fprintln(os.Stderr, "dictaphone-core:", err)
		os.Exit(1)
	}
}

// modelArg returns the first positional argument, the model path.
func modelArg(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}

func run(model string) error {
	outLog.Println("===========================================")
	outLog.Println("Starting Dictaphone Core v" + Version + "...")
	outLog.Printf("PID: %d", os.Getpid())
	outLog.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	outLog.Println("===========================================")

	// Check for duplicate instances
	pidFilePath := pidfile.Path("dictaphone-core")
	pf, err := pidfile.New(pidFilePath)
	if err != nil {
		if errors.Is(err, pidfile.ErrAlreadyRunning) {
			errLog.Printf("If you're sure no other instance is running, remove: %s", pidFilePath)
		}
		return err
	}
	defer func() {
		outLog.Println("[SHUTDOWN] Removing PID file...")
		if err := pf.Remove(); err != nil {
			errLog.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()
	outLog.Printf("[STARTUP] PID file created: %s (PID %d)", pidFilePath, pf.PID())

	outLog.Println("[STARTUP] Loading configuration...")
	cfg, err := config.Load(model)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	outLog.Printf("[STARTUP] Loaded config: backend=%s fallback=%q max_buffer_seconds=%d output_dir=%q",
		cfg.Engine.Backend, cfg.Engine.Fallback, cfg.Capture.MaxBufferSeconds, cfg.Output.Dir)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Release:     "dictaphone@" + Version,
			Environment: sentryEnvironment(),
		})
		if err != nil {
			errLog.Printf("[STARTUP] sentry init failed: %v", err)
		} else {
			outLog.Println("[STARTUP] sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	diaglog.Version = Version
	logPath := diaglog.LogPath()
	diagLogger, diagErr := diaglog.New(logPath)
	if diagErr != nil {
		errLog.Printf("[STARTUP] WARNING: could not open diagnostic log at %s: %v (continuing)", logPath, diagErr)
		diagLogger = diaglog.NewNoOp()
	}
	defer func() { _ = diagLogger.Close() }()

	m := metrics.NewMetrics()

	outLog.Println("[STARTUP] Loading transcription engines...")
	engines, err := buildEngines(cfg, diagLogger)
	if err != nil {
		captureError(err)
		return err
	}
	defer engines.Close()
	checkEngines(engines, diagLogger)

	outLog.Println("[STARTUP] Opening default input device...")
	rec, err := recorder.New(recorder.OpenDefault,
		recorder.WithBufferLimit(cfg.BufferLimitSamples(recorder.SampleRate)),
		recorder.WithLogger(diagLogger),
		recorder.WithMetrics(m),
	)
	if err != nil {
		captureError(err)
		return err
	}
	defer func() {
		outLog.Println("[SHUTDOWN] Closing input stream...")
		if err := rec.Close(); err != nil {
			errLog.Printf("[SHUTDOWN] close stream: %v", err)
		}
	}()
	outLog.Printf("[STARTUP] Input stream open (%d ch, %d Hz, %d frames per buffer)",
		recorder.Channels, recorder.SampleRate, recorder.FramesPerBuffer)

	notes := notify.New("Dictaphone", notify.DefaultCapacity)
	if cfg.Notifications.Desktop {
		notes.EnableDesktop()
	}

	d := newDaemon(cfg, rec, session.New(rec, engines.chain,
		session.WithLogger(diagLogger),
		session.WithMetrics(m),
	), notes, diagLogger)

	if cfg.Metrics.ListenAddr != "" {
		srv := startMetricsServer(cfg.Metrics.ListenAddr, m)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	outLog.Println("[STARTUP] Creating status directory...")
	if err := os.MkdirAll(ipc.Dir(), 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}
	d.writeStatus()

	cmds := make(chan ipc.Command, 8)
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go watchCommands(cmds, stopWatch)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	outLog.Println("[STARTUP] Signal handlers registered (SIGINT, SIGTERM)")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	outLog.Println("===========================================")
	outLog.Printf("[RUNNING] Dictaphone Core is ready (engine=%s)", engines.chain.Name())
	notes.Info("Ready. Toggle to start dictating.")
	d.writeStatus()

	for {
		select {
		case cmd := <-cmds:
			if quit := d.handleCommand(cmd); quit {
				d.shutdown("quit_command")
				return nil
			}
			d.writeStatus()

		case <-ticker.C:
			if d.ctl.Running() {
				d.writeStatus()
			}

		case sig := <-sigChan:
			outLog.Println("===========================================")
			outLog.Printf("[SHUTDOWN] Received %s at %s", sig, time.Now().Format(time.RFC3339))
			d.shutdown("signal")
			return nil
		}
	}
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		outLog.Printf("[STARTUP] Metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errLog.Printf("metrics server: %v", err)
		}
	}()
	return srv
}

func exportDiag(args []string) int {
	diaglog.Version = Version
	logPath := diaglog.LogPath()

	var (
		path string
		n    int
		err  error
	)
	if len(args) > 0 {
		path, n, err = diaglog.ExportSession(logPath, ".", args[0])
	} else {
		path, n, err = diaglog.Export(logPath, ".")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "hint: run with DICTAPHONE_DEBUG=true to enable logging")
			return 1
		}
		return 2
	}
	fmt.Printf("Wrote: %s (%d lines)\n", path, n)
	return 0
}

func sentryEnvironment() string {
	if env := os.Getenv("DICTAPHONE_ENV"); env != "" {
		return env
	}
	return "production"
}

// captureError reports err to Sentry when it is initialised.
func captureError(err error) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.CaptureException(err)
}

func initLogging() error {
	logDir := os.Getenv("DICTAPHONE_LOG_DIR")
	if logDir == "" {
		logDir = "/tmp"
	}

	outLogPath := filepath.Join(logDir, "dictaphone-core.out.log")
	errLogPath := filepath.Join(logDir, "dictaphone-core.err.log")

	if err := rotateLogIfNeeded(outLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate out log: %v\n", err)
	}

	if err := rotateLogIfNeeded(errLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate err log: %v\n", err)
	}

	outFile, err := os.OpenFile(outLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	errFile, err := os.OpenFile(errLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	outLog = log.New(outFile, logPrefix+" ", log.LstdFlags)
	errLog = log.New(errFile, logPrefix+" ERROR: ", log.LstdFlags)

	return nil
}

func rotateLogIfNeeded(logPath string, maxSize int64) error {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.Size() < maxSize {
		return nil
	}

	oldPath := logPath + ".old"
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old log: %w", err)
	}

	return os.Rename(logPath, oldPath)
}
