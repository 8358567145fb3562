// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: the fake-dependency style of the teacher's deleted
// helpers_test.go (hand-rolled stand-ins for real OS resources in tests),
// reworked here as a small fake implementing [Reactor] directly instead of
// wrapping a real net.Conn.

package reactor

import "time"

var _ Reactor = (*ChannelReactor)(nil)

// ChannelReactor is a [Reactor] test double: nothing is armed against a
// real OS primitive. Tests fire registered callbacks directly via
// [ChannelReactor.FireRead], [ChannelReactor.FireWrite] and
// [ChannelReactor.FireTimeout].
type ChannelReactor struct {
	reads    map[Token]func()
	writes   map[Token]func()
	timeouts map[Token]func()
	next     Token
	closed   bool
}

// NewChannelReactor creates an empty [*ChannelReactor].
func NewChannelReactor() *ChannelReactor {
	return &ChannelReactor{
		reads:    make(map[Token]func()),
		writes:   make(map[Token]func()),
		timeouts: make(map[Token]func()),
	}
}

// AddRead implements [Reactor].
func (c *ChannelReactor) AddRead(fd int, cb func()) (Token, error) {
	c.next++
	c.reads[c.next] = cb
	return c.next, nil
}

// AddWrite implements [Reactor].
func (c *ChannelReactor) AddWrite(fd int, cb func()) (Token, error) {
	c.next++
	c.writes[c.next] = cb
	return c.next, nil
}

// AddTimeout implements [Reactor].
func (c *ChannelReactor) AddTimeout(d time.Duration, cb func()) (Token, error) {
	c.next++
	c.timeouts[c.next] = cb
	return c.next, nil
}

// Cancel implements [Reactor].
func (c *ChannelReactor) Cancel(tok Token) error {
	delete(c.reads, tok)
	delete(c.writes, tok)
	delete(c.timeouts, tok)
	return nil
}

// Close implements [Reactor].
func (c *ChannelReactor) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *ChannelReactor) Closed() bool { return c.closed }

// FireRead invokes the callback registered for tok as if fd had become
// readable. It is a no-op if tok is not a currently armed read.
func (c *ChannelReactor) FireRead(tok Token) {
	if cb, ok := c.reads[tok]; ok {
		cb()
	}
}

// FireWrite invokes the callback registered for tok as if fd had become
// writable.
func (c *ChannelReactor) FireWrite(tok Token) {
	if cb, ok := c.writes[tok]; ok {
		cb()
	}
}

// FireTimeout invokes the callback registered for tok as if its deadline
// had elapsed, then removes it (matching the one-shot contract of
// [Reactor.AddTimeout]).
func (c *ChannelReactor) FireTimeout(tok Token) {
	if cb, ok := c.timeouts[tok]; ok {
		delete(c.timeouts, tok)
		cb()
	}
}

// PendingReads, PendingWrites and PendingTimeouts report how many
// callbacks of each kind are currently armed, for assertions in tests that
// check an event was (or was not) canceled.
func (c *ChannelReactor) PendingReads() int    { return len(c.reads) }
func (c *ChannelReactor) PendingWrites() int   { return len(c.writes) }
func (c *ChannelReactor) PendingTimeouts() int { return len(c.timeouts) }
