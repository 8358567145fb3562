// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNil(t *testing.T) {
	assert.Equal(t, "", New(nil))
}

func TestNewTimeout(t *testing.T) {
	assert.Equal(t, ETIMEDOUT, New(context.DeadlineExceeded))
}

func TestNewEOF(t *testing.T) {
	assert.Equal(t, EEOF, New(io.EOF))
}

func TestNewGeneric(t *testing.T) {
	assert.Equal(t, EGENERIC, New(errors.New("boom")))
}
