// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: the teacher's willingness to reach directly for
// golang.org/x/sys/unix instead of wrapping every OS primitive behind the
// standard library (errclass/unix.go's errno classification), applied here
// to epoll(7) itself rather than just error codes.

//go:build linux

package reactor

import (
	"container/heap"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

var _ Reactor = (*EpollReactor)(nil)

// EpollReactor is a [Reactor] backed by Linux epoll. It is the reference
// adapter the vde2 datagram transport (spec §4.3) is written against.
//
// EpollReactor is not safe for concurrent use: like every component in
// this module, it is driven from a single goroutine calling
// [EpollReactor.RunOnce] in a loop (spec
// §5 "Scheduling model").
type EpollReactor struct {
	epfd int

	readCallbacks  map[int]func()
	writeCallbacks map[int]func()
	fdTokens       map[int]fdTokenPair

	timeouts   timeoutHeap
	nextToken  Token
	timerIndex map[Token]*timeoutEntry
}

type fdTokenPair struct {
	read  Token
	write Token
}

type timeoutEntry struct {
	token    Token
	deadline time.Time
	cb       func()
	index    int
	canceled bool
}

type timeoutHeap []*timeoutEntry

func (h timeoutHeap) Len() int            { return len(h) }
func (h timeoutHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timeoutHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timeoutHeap) Push(x any) {
	e := x.(*timeoutEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// NewEpollReactor creates an [*EpollReactor] backed by a fresh epoll
// instance.
func NewEpollReactor() (*EpollReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &EpollReactor{
		epfd:           epfd,
		readCallbacks:  make(map[int]func()),
		writeCallbacks: make(map[int]func()),
		fdTokens:       make(map[int]fdTokenPair),
		timerIndex:     make(map[Token]*timeoutEntry),
	}, nil
}

func (r *EpollReactor) ctl(fd int, events uint32) error {
	pair := r.fdTokens[fd]
	op := unix.EPOLL_CTL_MOD
	if pair.read == 0 && pair.write == 0 {
		op = unix.EPOLL_CTL_ADD
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, op, fd, &ev)
}

func (r *EpollReactor) eventMask(fd int) uint32 {
	var mask uint32
	if _, ok := r.readCallbacks[fd]; ok {
		mask |= unix.EPOLLIN
	}
	if _, ok := r.writeCallbacks[fd]; ok {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// AddRead implements [Reactor].
func (r *EpollReactor) AddRead(fd int, cb func()) (Token, error) {
	r.readCallbacks[fd] = cb
	if err := r.ctl(fd, r.eventMask(fd)); err != nil {
		delete(r.readCallbacks, fd)
		return 0, fmt.Errorf("reactor: epoll_ctl: %w", err)
	}
	r.nextToken++
	tok := r.nextToken
	pair := r.fdTokens[fd]
	pair.read = tok
	r.fdTokens[fd] = pair
	return tok, nil
}

// AddWrite implements [Reactor].
func (r *EpollReactor) AddWrite(fd int, cb func()) (Token, error) {
	r.writeCallbacks[fd] = cb
	if err := r.ctl(fd, r.eventMask(fd)); err != nil {
		delete(r.writeCallbacks, fd)
		return 0, fmt.Errorf("reactor: epoll_ctl: %w", err)
	}
	r.nextToken++
	tok := r.nextToken
	pair := r.fdTokens[fd]
	pair.write = tok
	r.fdTokens[fd] = pair
	return tok, nil
}

// AddTimeout implements [Reactor].
func (r *EpollReactor) AddTimeout(d time.Duration, cb func()) (Token, error) {
	r.nextToken++
	tok := r.nextToken
	e := &timeoutEntry{token: tok, deadline: time.Now().Add(d), cb: cb}
	heap.Push(&r.timeouts, e)
	r.timerIndex[tok] = e
	return tok, nil
}

// Cancel implements [Reactor]. Canceling a read or write token removes
// only that direction's registration; the fd stays registered for the
// other direction if one is armed.
func (r *EpollReactor) Cancel(tok Token) error {
	if e, ok := r.timerIndex[tok]; ok {
		e.canceled = true
		delete(r.timerIndex, tok)
		return nil
	}
	for fd, pair := range r.fdTokens {
		changed := false
		if pair.read == tok {
			delete(r.readCallbacks, fd)
			pair.read = 0
			changed = true
		}
		if pair.write == tok {
			delete(r.writeCallbacks, fd)
			pair.write = 0
			changed = true
		}
		if !changed {
			continue
		}
		if pair.read == 0 && pair.write == 0 {
			delete(r.fdTokens, fd)
			return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		}
		r.fdTokens[fd] = pair
		return r.ctl(fd, r.eventMask(fd))
	}
	return nil
}

// Close implements [Reactor].
func (r *EpollReactor) Close() error {
	return unix.Close(r.epfd)
}

// RunOnce waits for at most one batch of readiness/timeout events and
// dispatches their callbacks. Callers that want a blocking event loop call
// this in a loop; the caller decides when to stop (spec §1 keeps the loop
// itself out of scope — this module supplies only the single-iteration
// primitive it is built on).
func (r *EpollReactor) RunOnce() error {
	timeout := -1
	if len(r.timeouts) > 0 {
		d := time.Until(r.timeouts[0].deadline)
		if d < 0 {
			d = 0
		}
		timeout = int(d.Milliseconds())
	}

	var events [64]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, events[:], timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if events[i].Events&unix.EPOLLIN != 0 {
			if cb, ok := r.readCallbacks[fd]; ok {
				cb()
			}
		}
		if events[i].Events&unix.EPOLLOUT != 0 {
			if cb, ok := r.writeCallbacks[fd]; ok {
				cb()
			}
		}
	}

	now := time.Now()
	for len(r.timeouts) > 0 && !r.timeouts[0].deadline.After(now) {
		e := heap.Pop(&r.timeouts).(*timeoutEntry)
		if e.canceled {
			continue
		}
		delete(r.timerIndex, e.token)
		e.cb()
	}
	return nil
}
