// Package session serializes list updates for one consumer and turns them
// into a stream of animation frames.
//
// A Session is an actor. Submit validates a snapshot and hands it to the
// goroutine running Run, which owns every piece of mutable state: the last
// settled list, the pending settle timer and the frame sequence. Each
// accepted update produces a transitional frame at once and a settled frame
// after the animation duration. A newer submission cancels a pending settle;
// a cancelled update never emits its settled frame and never becomes the
// base of the next diff.
//
// Frames fan out through a broadcast hub. A subscriber first receives the
// latest frame and then every later one; a subscriber that falls behind has
// its oldest undelivered frame replaced by the newest, so a slow reader never
// blocks the session.
package session
