// Package cache keeps encoded audio clips, keyed by clip reference, in a
// two-level cache: an in-memory LRU (L1) and a zstd-compressed disk store (L2).
//
// Cached values are immutable encoded bytes. Callers that need a playable
// handle build one from the bytes; no live handle is ever stored here.
package cache
