package audio

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want clipFormat
	}{
		{"wav", testWAV(44100, 1)[:12], formatWAV},
		{"mp3 with id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00"), formatMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, formatMP3},
		{"riff but not wave", []byte("RIFF\x00\x00\x00\x00AVI "), formatUnknown},
		{"text", []byte("<html>"), formatUnknown},
		{"empty", nil, formatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniff(tt.head); got != tt.want {
				t.Errorf("sniff() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckHeader(t *testing.T) {
	if err := checkHeader(testWAV(44100, 100)); err != nil {
		t.Errorf("checkHeader(wav) = %v", err)
	}
	if err := checkHeader([]byte("plain text, not a clip")); !errors.Is(err, ErrUndecodable) {
		t.Errorf("checkHeader(text) = %v, want ErrUndecodable", err)
	}
	if err := checkHeader([]byte("RIFF\x10\x00\x00\x00WAVEjunk")); !errors.Is(err, ErrUndecodable) {
		t.Errorf("checkHeader(truncated wav) = %v, want ErrUndecodable", err)
	}
}

func TestPCMStream_SameRate(t *testing.T) {
	const frames = 4410
	s, err := newPCMStream(io.NopCloser(bytes.NewReader(testWAV(44100, frames))), 44100)
	if err != nil {
		t.Fatalf("newPCMStream failed: %v", err)
	}
	defer s.Close() //nolint:errcheck

	pcm, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(pcm) != frames*bytesPerFrame {
		t.Errorf("got %d bytes of PCM, want %d", len(pcm), frames*bytesPerFrame)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after a clean end", s.Err())
	}
}

func TestPCMStream_Resamples(t *testing.T) {
	tests := []struct {
		name   string
		rate   int
		frames int
	}{
		{"100ms espeak rate", 22050, 2205},
		{"1s espeak rate", 22050, 22050},
		{"5s espeak rate", 22050, 110250},
		{"1s openai rate", 24000, 24000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newPCMStream(io.NopCloser(bytes.NewReader(testWAV(tt.rate, tt.frames))), 44100)
			if err != nil {
				t.Fatalf("newPCMStream failed: %v", err)
			}
			defer s.Close() //nolint:errcheck

			pcm, err := io.ReadAll(s)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			got := len(pcm) / bytesPerFrame
			want := tt.frames * 44100 / tt.rate
			if got < want*95/100 || got > want*105/100 {
				t.Errorf("resampled to %d frames, want about %d", got, want)
			}
		})
	}
}

// choppyStreamer hands out at most max frames per call, like a decoder
// reading from a network stream.
type choppyStreamer struct {
	left, max int
}

func (c *choppyStreamer) Stream(samples [][2]float64) (int, bool) {
	if c.left == 0 {
		return 0, false
	}
	n := min(len(samples), c.max, c.left)
	c.left -= n
	return n, true
}

func (c *choppyStreamer) Err() error { return nil }

func TestFullStreamer(t *testing.T) {
	f := fullStreamer{&choppyStreamer{left: 2500, max: 7}}
	buf := make([][2]float64, 1024)

	var counts []int
	for {
		n, ok := f.Stream(buf)
		if !ok {
			break
		}
		counts = append(counts, n)
	}
	want := []int{1024, 1024, 452}
	if len(counts) != len(want) {
		t.Fatalf("stream calls = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("call %d streamed %d frames, want %d", i, counts[i], want[i])
		}
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-3, -32767},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
