package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	named := func(name string) *Broker {
		s := DefaultSettings()
		s.Name = name
		b, err := NewBroker(s)
		require.NoError(t, err)
		return b
	}

	r := NewRegistry()
	zb := named("zerodha")
	require.NoError(t, r.Register(zb))
	require.NoError(t, r.Register(named("alpaca")))
	assert.Error(t, r.Register(named("zerodha")), "duplicate names are refused")

	got, ok := r.Get("zerodha")
	require.True(t, ok)
	assert.Same(t, zb, got)
	assert.Equal(t, []string{"alpaca", "zerodha"}, r.Names())

	r.Remove("alpaca")
	_, ok = r.Get("alpaca")
	assert.False(t, ok)
	assert.Equal(t, []string{"zerodha"}, r.Names())
}
