// Package speech speaks short phrases when no recorded clip is available.
//
// Text is rendered by a local speech command into a WAV file and played
// like any other clip. When rendering or playback fails, Speak waits a
// fixed delay instead, so callers are never blocked indefinitely.
package speech
