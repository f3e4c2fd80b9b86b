// Package lesson defines the phrase pairs drilled by the engine and the
// collaborators that supply them: lesson sources (an HTTP lesson service or a
// local YAML deck) and clip generators that fill in missing audio.
package lesson
