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

package mclock

import (
	"container/heap"
	"sync"
	"time"
)

// Simulated implements Clock for tests that must deterministically
// control the passage of time, e.g. the sync tree recheck-interval
// scenario.
type Simulated struct {
	mu     sync.Mutex
	now    AbsTime
	timers simTimerHeap
}

type simTimer struct {
	at    AbsTime
	index int
	c     chan time.Time
}

func (t *simTimer) C() <-chan time.Time { return t.c }

type simTimerHeap []*simTimer

func (h simTimerHeap) Len() int            { return len(h) }
func (h simTimerHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h simTimerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *simTimerHeap) Push(x interface{}) {
	t := x.(*simTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *simTimerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Now returns the current virtual time.
func (s *Simulated) Now() AbsTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Run advances the virtual clock by d, firing any timers scheduled to
// expire at or before the new time.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	end := s.now.Add(d)
	var fire []*simTimer
	for s.timers.Len() > 0 && s.timers[0].at <= end {
		fire = append(fire, heap.Pop(&s.timers).(*simTimer))
	}
	s.now = end
	s.mu.Unlock()

	for _, t := range fire {
		t.c <- (time.Time{}).Add(time.Duration(s.now))
	}
}

func (s *Simulated) Sleep(d time.Duration) {
	s.Run(d)
}

func (s *Simulated) After(d time.Duration) <-chan time.Time {
	return s.NewTimer(d).C()
}

// NewTimer schedules a timer that fires once Run has advanced the
// clock to or past now+d.
func (s *Simulated) NewTimer(d time.Duration) ChanTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &simTimer{at: s.now.Add(d), c: make(chan time.Time, 1)}
	heap.Push(&s.timers, t)
	return &simChanTimer{s: s, t: t}
}

type simChanTimer struct {
	s *Simulated
	t *simTimer
}

func (t *simChanTimer) C() <-chan time.Time { return t.t.c }

func (t *simChanTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.t.index < 0 || t.t.index >= t.s.timers.Len() || t.s.timers[t.t.index] != t.t {
		return false
	}
	heap.Remove(&t.s.timers, t.t.index)
	return true
}

func (t *simChanTimer) Reset(d time.Duration) {
	t.Stop()
	t.s.mu.Lock()
	t.t.at = t.s.now.Add(d)
	heap.Push(&t.s.timers, t.t)
	t.s.mu.Unlock()
}
