// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

// ConnError is the vde_conn_error taxonomy from spec §4.3/§7: the small,
// closed set of conditions a transport reports to a connection's *error*
// callback. It is distinct from [ErrClassifier]'s free-form log labels.
type ConnError int

const (
	// ConnErrorOK indicates no error; transports never invoke *error*
	// with this value, it exists only as the zero value.
	ConnErrorOK ConnError = iota

	// ConnErrorReadClosed indicates a fatal read-side error (EOF, reset,
	// or any other unrecoverable read failure). The connection must be
	// torn down.
	ConnErrorReadClosed

	// ConnErrorReadDelay indicates a transient read-side condition. The
	// connection remains usable.
	ConnErrorReadDelay

	// ConnErrorWriteClosed indicates a fatal write-side error. The
	// connection must be torn down.
	ConnErrorWriteClosed

	// ConnErrorWriteDelay indicates a packet could not be sent within
	// max_tries x max_timeout and was dropped. The connection remains
	// usable.
	ConnErrorWriteDelay
)

// String returns the wire/log label for e, matching the names used in
// spec §4.3's error taxonomy table.
func (e ConnError) String() string {
	switch e {
	case ConnErrorOK:
		return "OK"
	case ConnErrorReadClosed:
		return "ReadClosed"
	case ConnErrorReadDelay:
		return "ReadDelay"
	case ConnErrorWriteClosed:
		return "WriteClosed"
	case ConnErrorWriteDelay:
		return "WriteDelay"
	default:
		return "Unknown"
	}
}

// Fatal reports whether e requires the connection to be torn down.
func (e ConnError) Fatal() bool {
	return e == ConnErrorReadClosed || e == ConnErrorWriteClosed
}
