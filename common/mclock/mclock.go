// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// Package mclock abstracts over time.Now/time.Timer so that components
// with real-time scheduling (the sync tree's recheck interval, the
// discovery service's poll timer) can be driven by a simulated clock
// in tests. The query pool's rate limiter always runs on the wall
// clock.
package mclock

import "time"

// AbsTime represents absolute monotonic time.
type AbsTime time.Duration

// Sub returns the difference between two absolute times.
func (t AbsTime) Sub(t2 AbsTime) time.Duration {
	return time.Duration(t - t2)
}

// Add returns t + d.
func (t AbsTime) Add(d time.Duration) AbsTime {
	return t + AbsTime(d)
}

// Clock abstracts over the real clock so it can be replaced by a
// Simulated clock in tests.
type Clock interface {
	Now() AbsTime
	Sleep(time.Duration)
	NewTimer(time.Duration) ChanTimer
	After(time.Duration) <-chan time.Time
}

// ChanTimer is a timer whose expiration is signalled by a channel.
type ChanTimer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(time.Duration)
}

// System implements Clock using the actual OS clock.
type System struct{}

var startTime = time.Now()

func (System) Now() AbsTime {
	return AbsTime(time.Since(startTime))
}

func (System) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (System) NewTimer(d time.Duration) ChanTimer {
	return &systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct{ t *time.Timer }

func (t *systemTimer) C() <-chan time.Time {
	return t.t.C
}

func (t *systemTimer) Stop() bool {
	return t.t.Stop()
}

func (t *systemTimer) Reset(d time.Duration) {
	t.t.Reset(d)
}
