// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultErrClassifier(t *testing.T) {
	assert.Equal(t, "", DefaultErrClassifier.Classify(nil))
	assert.Equal(t, "ETIMEDOUT", DefaultErrClassifier.Classify(context.DeadlineExceeded))
	assert.Equal(t, "EGENERIC", DefaultErrClassifier.Classify(errors.New("unknown error")))
}

func TestConnErrorString(t *testing.T) {
	assert.Equal(t, "ReadClosed", ConnErrorReadClosed.String())
	assert.Equal(t, "WriteDelay", ConnErrorWriteDelay.String())
	assert.True(t, ConnErrorReadClosed.Fatal())
	assert.False(t, ConnErrorWriteDelay.Fatal())
}
