package main

import (
	"fmt"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/internal/asr/remotewhisper"
	"github.com/tiroq/dictaphone/internal/asr/vosk"
	"github.com/tiroq/dictaphone/internal/asr/whisper"
	"github.com/tiroq/dictaphone/internal/config"
	"github.com/tiroq/dictaphone/internal/diaglog"
)

// engineSet is the engine chain plus anything that must be released on exit.
type engineSet struct {
	chain   *asr.Chain
	closers []func() error
}

func (s *engineSet) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			errLog.Printf("[SHUTDOWN] close engine: %v", err)
		}
	}
}

// buildEngines chains the configured backend with the optional fallback. A
// whisper model that fails to load aborts startup.
func buildEngines(cfg *config.Config, logger *diaglog.Logger) (*engineSet, error) {
	set := &engineSet{}

	names := []string{cfg.Engine.Backend}
	if cfg.Engine.Fallback != "" {
		names = append(names, cfg.Engine.Fallback)
	}

	var engines []asr.Engine
	for _, name := range names {
		e, closer, err := newEngine(name, cfg, logger)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("engine %s: %w", name, err)
		}
		engines = append(engines, e)
		if closer != nil {
			set.closers = append(set.closers, closer)
		}
		outLog.Printf("[STARTUP] Loaded engine %s", name)
	}

	chain, err := asr.NewChain(engines[0], engines[1:]...)
	if err != nil {
		set.Close()
		return nil, err
	}
	set.chain = chain
	return set, nil
}

func newEngine(name string, cfg *config.Config, logger *diaglog.Logger) (asr.Engine, func() error, error) {
	switch name {
	case config.BackendWhisper:
		e, err := whisper.New(whisper.Config{
			ModelPath: cfg.Engine.Whisper.ModelPath,
			Language:  cfg.Engine.Whisper.Language,
			Threads:   cfg.Engine.Whisper.Threads,
		})
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil

	case config.BackendRemote:
		c := remotewhisper.NewClient(remotewhisper.Config{
			BaseURL:        cfg.Engine.Remote.BaseURL,
			Token:          cfg.Engine.Remote.Token,
			TimeoutSeconds: cfg.Engine.Remote.TimeoutSeconds,
			Retries:        cfg.Engine.Remote.Retries,
			Model:          cfg.Engine.Remote.Model,
			Language:       cfg.Engine.Remote.Language,
		})
		c.SetLogger(logger)
		return c, nil, nil

	case config.BackendVosk:
		e := vosk.New(vosk.Config{
			URL:            cfg.Engine.Vosk.URL,
			TimeoutSeconds: cfg.Engine.Vosk.TimeoutSeconds,
		})
		e.SetLogger(logger)
		return e, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

// checkEngines runs every engine's health check once. Failures are logged,
// never fatal.
func checkEngines(set *engineSet, logger *diaglog.Logger) {
	for _, e := range set.chain.Engines() {
		name := e.Name()
		hs, err := e.HealthCheck()
		switch {
		case err != nil:
			errLog.Printf("[STARTUP] Engine health check error (engine=%s): %v", name, err)
			logger.Log(diaglog.LogEntry{
				Component: diaglog.ComponentEngine,
				Event:     diaglog.EventEngineHealthCheck,
				Payload: map[string]interface{}{
					"engine": name,
					"ok":     false,
					"error":  err.Error(),
				},
			})
		case !hs.OK:
			errLog.Printf("[STARTUP] WARNING: engine %s unhealthy: %s", name, hs.Message)
			logger.Log(diaglog.LogEntry{
				Component: diaglog.ComponentEngine,
				Event:     diaglog.EventEngineHealthCheck,
				Payload: map[string]interface{}{
					"engine":  name,
					"ok":      false,
					"message": hs.Message,
				},
			})
		default:
			outLog.Printf("[STARTUP] Engine %s healthy (latency=%s)", name, hs.Latency)
			logger.Log(diaglog.LogEntry{
				Component: diaglog.ComponentEngine,
				Event:     diaglog.EventEngineHealthCheck,
				Payload: map[string]interface{}{
					"engine":  name,
					"ok":      true,
					"latency": hs.Latency.String(),
				},
			})
		}
	}
}
