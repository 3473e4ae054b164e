package audio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{1.5, 32767},
		{-1, -32768},
		{-2, -32768},
		{0.5, 16383},
	}
	for _, tt := range tests {
		if got := FloatToPCM16(tt.in); got != tt.want {
			t.Errorf("FloatToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWriteWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.wav")
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.25
	}

	if err := WriteWAVFile(path, samples, SampleRate); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		t.Fatal("expected a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if d.SampleRate != SampleRate {
		t.Errorf("sample rate = %d, want %d", d.SampleRate, SampleRate)
	}
	if d.NumChans != 1 {
		t.Errorf("channels = %d, want 1", d.NumChans)
	}
	if len(buf.Data) != len(samples) {
		t.Errorf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}
	if buf.Data[0] != int(FloatToPCM16(0.25)) {
		t.Errorf("first sample = %d, want %d", buf.Data[0], FloatToPCM16(0.25))
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the wav file, found %d entries", len(entries))
	}
}

func TestEncodeWAVMatchesFile(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := WriteWAVFile(path, samples, SampleRate); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	inMemory, err := EncodeWAV(samples, SampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if !bytes.Equal(onDisk, inMemory) {
		t.Fatalf("in-memory encoding differs from file (%d vs %d bytes)", len(inMemory), len(onDisk))
	}

	d := wav.NewDecoder(bytes.NewReader(inMemory))
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if len(buf.Data) != len(samples) || buf.Data[1] != int(FloatToPCM16(0.5)) {
		t.Errorf("decoded %v", buf.Data)
	}
}

func TestMemFileSeekRewrites(t *testing.T) {
	var m memFile
	_, _ = m.Write([]byte("RIFF----WAVE"))
	if _, err := m.Seek(4, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	_, _ = m.Write([]byte("1234"))
	if got := string(m.buf); got != "RIFF1234WAVE" {
		t.Errorf("buf = %q", got)
	}
	if pos, _ := m.Seek(0, io.SeekEnd); pos != 12 {
		t.Errorf("end = %d, want 12", pos)
	}
	if _, err := m.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative seek should fail")
	}
}
