package vosk

import (
	"errors"
	"testing"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/testutil"
)

func startServer(t *testing.T) *testutil.MockVoskServer {
	t.Helper()
	srv := testutil.NewMockVosk("testdata")
	testutil.AssertNoError(t, srv.Start(), "start mock vosk")
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func TestTranscribeCollectsFinalResults(t *testing.T) {
	srv := startServer(t)
	testutil.AssertNoError(t, srv.LoadFixture("hello_world.json"), "load fixture")
	testutil.AssertNoError(t, srv.LoadFixture("again.json"), "load fixture")

	e := New(Config{URL: srv.URL()})
	samples := make([]float32, 10000)

	segs, err := e.Transcribe(samples)
	testutil.AssertNoError(t, err, "Transcribe")
	testutil.AssertEqual(t, int64(len(samples)*2), srv.AudioBytes(), "PCM bytes received")
	testutil.AssertEqual(t, 16000, srv.SampleRate(), "announced sample rate")

	want := []asr.Segment{
		{Text: "hello world", Start: 12, Stop: 104},
		{Text: "again", Start: 150, Stop: 190},
	}
	testutil.AssertEqual(t, len(want), len(segs), "segment count")
	for i := range want {
		testutil.AssertEqual(t, want[i], segs[i], "segment")
	}
}

func TestTranscribeResultWithoutWords(t *testing.T) {
	srv := startServer(t)
	srv.QueueFinal(`{"text": "hm"}`)

	segs, err := New(Config{URL: srv.URL()}).Transcribe([]float32{0.1})
	testutil.AssertNoError(t, err, "Transcribe")
	testutil.AssertEqual(t, 1, len(segs), "segment count")
	testutil.AssertEqual(t, asr.Segment{Text: "hm"}, segs[0], "segment")
}

func TestTranscribeSkipsEmptyResults(t *testing.T) {
	srv := startServer(t)
	srv.QueueFinal(`{"text": ""}`)

	segs, err := New(Config{URL: srv.URL()}).Transcribe([]float32{0.1})
	testutil.AssertNoError(t, err, "Transcribe")
	testutil.AssertEqual(t, 0, len(segs), "segment count")
}

func TestTranscribeEmptyBuffer(t *testing.T) {
	srv := startServer(t)

	segs, err := New(Config{URL: srv.URL()}).Transcribe(nil)
	testutil.AssertNoError(t, err, "Transcribe")
	testutil.AssertTrue(t, segs == nil, "nil segments for empty buffer")
	testutil.AssertEqual(t, 0, srv.Connections(), "no connection for empty buffer")
}

func TestTranscribeConnectFailure(t *testing.T) {
	e := New(Config{URL: "ws://127.0.0.1:1"})
	_, err := e.Transcribe([]float32{0.1})
	testutil.AssertTrue(t, errors.Is(err, asr.ErrInference), "ErrInference on connect failure")
}

func TestTranscribeFailureModes(t *testing.T) {
	for _, mode := range []string{testutil.ModeGarbage, testutil.ModeDisconnect} {
		t.Run(mode, func(t *testing.T) {
			srv := startServer(t)
			srv.SetFailureMode(mode)

			_, err := New(Config{URL: srv.URL()}).Transcribe([]float32{0.1, 0.2})
			testutil.AssertTrue(t, errors.Is(err, asr.ErrInference), "ErrInference")
		})
	}
}

func TestEncodePCM16(t *testing.T) {
	dst := make([]byte, 4)
	n := encodePCM16(dst, []float32{1, -1})
	testutil.AssertEqual(t, 4, n, "bytes written")
	// 32767 = 0x7fff, -32768 = 0x8000 little-endian
	if dst[0] != 0xff || dst[1] != 0x7f || dst[2] != 0x00 || dst[3] != 0x80 {
		t.Errorf("bytes = % x", dst)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := startServer(t)

	hs, err := New(Config{URL: srv.URL()}).HealthCheck()
	testutil.AssertNoError(t, err, "HealthCheck")
	testutil.AssertTrue(t, hs.OK, "healthy")
	testutil.AssertEqual(t, "vosk", hs.Backend, "backend")

	hs, _ = New(Config{URL: "ws://127.0.0.1:1"}).HealthCheck()
	testutil.AssertFalse(t, hs.OK, "unreachable server is unhealthy")
}

var _ asr.Engine = (*Engine)(nil)
