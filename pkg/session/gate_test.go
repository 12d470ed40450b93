package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	rounds [][]SessionInfo
	call   int
}

func (f *fakeLister) Sessions(context.Context) ([]SessionInfo, error) {
	idx := f.call
	if idx >= len(f.rounds) {
		idx = len(f.rounds) - 1
	}
	f.call++
	return f.rounds[idx], nil
}

func TestIsGraphicalUser(t *testing.T) {
	tests := []struct {
		name string
		s    SessionInfo
		want bool
	}{
		{"active wayland user", SessionInfo{Class: "user", Type: "wayland", State: "active"}, true},
		{"online x11 user", SessionInfo{Class: "user", Type: "x11", State: "online"}, true},
		{"closing session ignored", SessionInfo{Class: "user", Type: "wayland", State: "closing"}, false},
		{"greeter class ignored", SessionInfo{Class: "greeter", Type: "wayland", State: "active"}, false},
		{"tty type ignored", SessionInfo{Class: "user", Type: "tty", State: "active"}, false},
		{"mir active", SessionInfo{Class: "user", Type: "mir", State: "active"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGraphicalUser(tt.s))
		})
	}
}

func TestGateWaitReturnsImmediatelyWhenNoSessions(t *testing.T) {
	g := New(&fakeLister{rounds: [][]SessionInfo{{}}})
	err := g.Wait(context.Background(), time.Second)
	require.NoError(t, err)
}

func TestGateWaitPollsUntilSessionsDrain(t *testing.T) {
	g := New(&fakeLister{rounds: [][]SessionInfo{
		{{Class: "user", Type: "wayland", State: "active"}},
		{{Class: "user", Type: "wayland", State: "active"}},
		{},
	}})
	err := g.Wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
}

func TestGateWaitTimesOut(t *testing.T) {
	g := New(&fakeLister{rounds: [][]SessionInfo{
		{{Class: "user", Type: "wayland", State: "active"}},
	}})
	err := g.Wait(context.Background(), 150*time.Millisecond)
	require.Error(t, err)
}

func TestGateWaitCancelled(t *testing.T) {
	g := New(&fakeLister{rounds: [][]SessionInfo{
		{{Class: "user", Type: "wayland", State: "active"}},
	}})
	g.Cancel()
	err := g.Wait(context.Background(), time.Second)
	require.NoError(t, err)
}

func TestGateWaitZeroTimeoutDisablesDeadline(t *testing.T) {
	g := New(&fakeLister{rounds: [][]SessionInfo{
		{{Class: "user", Type: "wayland", State: "active"}},
		{},
	}})
	err := g.Wait(context.Background(), 0)
	require.NoError(t, err)
}
