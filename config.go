// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

import "time"

// Config holds common configuration shared by constructors across the
// component, connection, transport and engine packages.
//
// Pass this to constructor functions to pre-wire dependencies. All fields
// have sensible defaults set by [NewConfig]; fields are safe to modify
// after construction but before first use, and must not be mutated
// concurrently with use.
type Config struct {
	// Logger is the [SLogger] to use for structured logging.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// SendMaxTries is the default number of send attempts a connection's
	// send-retry policy allows before reporting [ConnErrorWriteDelay].
	//
	// Set by [NewConfig] to 10, matching the vde2 reference transport's
	// hub-engine default (spec §4.4).
	SendMaxTries int

	// SendMaxTimeout is the default per-try timeout a connection's
	// send-retry policy allows.
	//
	// Set by [NewConfig] to 5 seconds, matching spec §4.4.
	SendMaxTimeout time.Duration

	// MaxQueuedPackets is the hard cap on a datagram transport
	// connection's outbound send queue (spec §4.3, §8).
	//
	// Set by [NewConfig] to 4192.
	MaxQueuedPackets int

	// DirMode is the permission mode used to create a transport's
	// rendezvous directory if it does not already exist (spec §6).
	//
	// Set by [NewConfig] to 0777.
	DirMode uint32
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Logger:           DefaultSLogger(),
		ErrClassifier:    DefaultErrClassifier,
		TimeNow:          time.Now,
		SendMaxTries:     10,
		SendMaxTimeout:   5 * time.Second,
		MaxQueuedPackets: 4192,
		DirMode:          0777,
	}
}
