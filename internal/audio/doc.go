// Package audio fetches, buffers, decodes and plays lesson clips.
//
// A Backend owns the process-wide sound output and the shared clip cache.
// Each drill session asks it for a fresh Preloader, which owns the session's
// assets, and a fresh Controller, which plays one asset at a time to its end.
// Decoding runs in process (MP3 and WAV via beep) and the resulting 16-bit
// PCM is streamed to oto.
package audio
