package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/errs"
)

func TestPresenceDefaultsToOffline(t *testing.T) {
	p := NewPresence()

	require.Equal(t, user.StatusOffline, p.Get("nobody"))
	require.Empty(t, p.Snapshot())
}

func TestPresenceSetStatusCreatesAndOverwrites(t *testing.T) {
	p := NewPresence()

	require.Nil(t, p.SetStatus("alice", user.StatusOnline))
	require.Equal(t, user.StatusOnline, p.Get("alice"))

	require.Nil(t, p.SetStatus("alice", user.StatusBusy))
	require.Equal(t, user.StatusBusy, p.Get("alice"))
}

func TestPresenceRejectsUnknownStatus(t *testing.T) {
	p := NewPresence()
	require.Nil(t, p.SetStatus("alice", user.StatusHidden))

	customErr := p.SetStatus("alice", user.Status("invisible"))
	require.NotNil(t, customErr)
	require.Equal(t, errs.ErrInvalidStatus, customErr.Code)

	// The rejected value must not have clobbered the entry.
	require.Equal(t, user.StatusHidden, p.Get("alice"))
}

func TestPresenceSeedDoesNotOverwrite(t *testing.T) {
	p := NewPresence()

	require.True(t, p.Seed("alice", user.StatusBusy))
	require.Equal(t, user.StatusBusy, p.Get("alice"))

	// A second connection's seed loses to the live entry.
	require.False(t, p.Seed("alice", user.StatusOnline))
	require.Equal(t, user.StatusBusy, p.Get("alice"))
}

func TestPresenceSeedNormalizesInvalidStored(t *testing.T) {
	p := NewPresence()

	require.True(t, p.Seed("alice", user.Status("corrupted")))
	require.Equal(t, user.StatusOffline, p.Get("alice"))
}

func TestPresenceConcurrentUpdatesConvergeToEnumValue(t *testing.T) {
	p := NewPresence()

	statuses := []user.Status{user.StatusOnline, user.StatusHidden, user.StatusBusy, user.StatusOffline}

	done := make(chan struct{})
	for _, status := range statuses {
		go func(s user.Status) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				require.Nil(t, p.SetStatus("alice", s))
			}
		}(status)
	}
	for range statuses {
		<-done
	}

	// Whichever write landed last, the entry holds a valid enum value.
	require.True(t, p.Get("alice").Valid())
}

func TestPresenceDropRemovesEntry(t *testing.T) {
	p := NewPresence()
	require.Nil(t, p.SetStatus("alice", user.StatusOnline))

	p.Drop("alice")

	require.Equal(t, user.StatusOffline, p.Get("alice"))

	// After a drop the next seed applies again.
	require.True(t, p.Seed("alice", user.StatusBusy))
}

func TestPresenceSnapshotIsACopy(t *testing.T) {
	p := NewPresence()
	require.Nil(t, p.SetStatus("alice", user.StatusOnline))

	snap := p.Snapshot()
	snap["alice"] = user.StatusOffline
	snap["bob"] = user.StatusOnline

	require.Equal(t, user.StatusOnline, p.Get("alice"))
	require.Equal(t, user.StatusOffline, p.Get("bob"))
}
