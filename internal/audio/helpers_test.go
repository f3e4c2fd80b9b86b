package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// testWAV builds a 16-bit mono PCM WAV with frames samples of a quiet tone.
func testWAV(sampleRate, frames int) []byte {
	var b bytes.Buffer
	dataLen := frames * 2

	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&b, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(dataLen))

	for i := range frames {
		v := int16(1000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	return b.Bytes()
}

// readyAsset wraps complete clip bytes in a ready asset.
func readyAsset(ref string, data []byte) *Asset {
	a := newAsset(ref, newCompleteBuffer(data), nil)
	a.markReady()
	return a
}

// clipServer serves clip at /clip.wav and counts requests.
func clipServer(t *testing.T, clip []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/clip.wav":
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = w.Write(clip)
		case "/text":
			_, _ = w.Write([]byte("this is not audio at all"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
