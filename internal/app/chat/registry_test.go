package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterFirstConnection(t *testing.T) {
	r := NewRegistry()
	c := NewConn(nil, nil, "alice")

	require.True(t, r.Register(c))
	require.Equal(t, 1, r.ConnectionCount("alice"))

	got, ok := r.Conn(c.ID())
	require.True(t, ok)
	require.Same(t, c, got)
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := NewConn(nil, nil, "alice")

	require.True(t, r.Register(c))
	require.False(t, r.Register(c))
	require.Equal(t, 1, r.ConnectionCount("alice"))
}

func TestRegistryMultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()
	c1 := NewConn(nil, nil, "alice")
	c2 := NewConn(nil, nil, "alice")

	require.True(t, r.Register(c1))
	require.False(t, r.Register(c2))
	require.Equal(t, 2, r.ConnectionCount("alice"))
	require.Len(t, r.ActiveConnections("alice"), 2)
}

func TestRegistryDeregister(t *testing.T) {
	r := NewRegistry()
	c1 := NewConn(nil, nil, "alice")
	c2 := NewConn(nil, nil, "alice")
	r.Register(c1)
	r.Register(c2)

	removed, lastOfUser := r.Deregister(c1.ID())
	require.Same(t, c1, removed)
	require.False(t, lastOfUser)

	removed, lastOfUser = r.Deregister(c2.ID())
	require.Same(t, c2, removed)
	require.True(t, lastOfUser)

	require.Zero(t, r.ConnectionCount("alice"))
	require.Empty(t, r.ActiveConnections("alice"))
}

func TestRegistryDeregisterUnknownIsNoOp(t *testing.T) {
	r := NewRegistry()

	removed, lastOfUser := r.Deregister("missing")
	require.Nil(t, removed)
	require.False(t, lastOfUser)
}

func TestRegistryOfflineUserHasEmptyActiveSet(t *testing.T) {
	r := NewRegistry()

	require.Empty(t, r.ActiveConnections("nobody"))
	require.Zero(t, r.ConnectionCount("nobody"))
}
