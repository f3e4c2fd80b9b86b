// Package drill runs the unattended listen-and-repeat cycle.
//
// An Engine drives one session at a time through a fixed sequence of
// phases: the native cue, the target phrase twice with pauses to repeat it,
// a long pause, and a filler announcement before looping to the next
// lesson. While the current lesson plays, the next one is fetched and its
// clips preloaded, so consecutive lessons follow each other without a gap.
//
// Every session owns its own preloader and player. Stop cancels the session
// synchronously: no phase starts, no timer fires and nothing plays after it
// returns.
package drill
