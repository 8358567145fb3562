// SPDX-License-Identifier: GPL-3.0-or-later

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReadFiresOnDemand(t *testing.T) {
	r := NewChannelReactor()
	var fired int
	tok, err := r.AddRead(3, func() { fired++ })
	require.NoError(t, err)

	r.FireRead(tok)
	r.FireRead(tok)
	assert.Equal(t, 2, fired)
}

func TestCancelRemovesCallback(t *testing.T) {
	r := NewChannelReactor()
	var fired bool
	tok, err := r.AddWrite(3, func() { fired = true })
	require.NoError(t, err)

	require.NoError(t, r.Cancel(tok))
	r.FireWrite(tok)
	assert.False(t, fired)
	assert.Equal(t, 0, r.PendingWrites())
}

func TestTimeoutIsOneShot(t *testing.T) {
	r := NewChannelReactor()
	var fired int
	tok, err := r.AddTimeout(10*time.Millisecond, func() { fired++ })
	require.NoError(t, err)

	r.FireTimeout(tok)
	r.FireTimeout(tok)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, r.PendingTimeouts())
}

func TestCloseMarksReactorClosed(t *testing.T) {
	r := NewChannelReactor()
	assert.False(t, r.Closed())
	require.NoError(t, r.Close())
	assert.True(t, r.Closed())
}
