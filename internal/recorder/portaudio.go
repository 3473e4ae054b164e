package recorder

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// paStream adapts *portaudio.Stream to Stream and releases the library on Close.
type paStream struct {
	stream    *portaudio.Stream
	closeOnce sync.Once
}

func (s *paStream) Start() error { return s.stream.Start() }
func (s *paStream) Stop() error  { return s.stream.Stop() }

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.stream.Close()
		if termErr := portaudio.Terminate(); err == nil {
			err = termErr
		}
	})
	return err
}

// OpenDefault opens the default input device through PortAudio. Device
// overflow and underflow flags are reported through onError.
func OpenDefault(cfg StreamConfig, onFrames func([]float32), onError func(error)) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %w", ErrDevice, err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: no default input device: %w", ErrDevice, err)
	}
	if dev.MaxInputChannels < cfg.Channels {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %s has %d input channels", ErrDevice, dev.Name, dev.MaxInputChannels)
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 {
			onError(ErrInputOverflow)
		}
		if flags&portaudio.InputUnderflow != 0 {
			onError(ErrInputUnderflow)
		}
		onFrames(in)
	}

	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream on %s: %w", ErrDevice, dev.Name, err)
	}
	return &paStream{stream: stream}, nil
}
