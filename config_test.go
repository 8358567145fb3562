// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))
	assert.Equal(t, "EGENERIC", cfg.ErrClassifier.Classify(errors.New("boom")))
	assert.False(t, cfg.TimeNow().IsZero())
	assert.Equal(t, 10, cfg.SendMaxTries)
	assert.Equal(t, 4192, cfg.MaxQueuedPackets)
	assert.EqualValues(t, 0777, cfg.DirMode)
}
