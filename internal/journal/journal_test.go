package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectSink struct {
	mu      sync.Mutex
	events  []Event
	batches int
}

func (c *collectSink) WriteBatch(_ context.Context, events []Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	c.batches++
	return nil
}

func (c *collectSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestJournal_StopDrainsBuffer(t *testing.T) {
	sink := &collectSink{}
	j := New(Settings{BatchSize: 1000, FlushInterval: time.Hour}, nil, sink)
	j.Start()

	for i := 0; i < 50; i++ {
		j.Log(Event{Capability: "camera", Status: "granted"})
	}
	j.Stop()

	require.Equal(t, 50, sink.len())
	assert.NotEmpty(t, sink.events[0].ID)
	assert.False(t, sink.events[0].Timestamp.IsZero())

	// После остановки событие сбрасывается, а не паникует.
	j.Log(Event{Capability: "camera"})
	j.Stop()
	assert.Equal(t, 50, sink.len())
}

func TestJournal_FlushesBySize(t *testing.T) {
	sink := &collectSink{}
	j := New(Settings{BatchSize: 5, FlushInterval: time.Hour}, nil, sink)
	j.Start()
	defer j.Stop()

	for i := 0; i < 10; i++ {
		j.Log(Event{Capability: "microphone"})
	}
	assert.Eventually(t, func() bool { return sink.len() == 10 }, time.Second, 5*time.Millisecond)
}

func TestJournal_FlushesByTimer(t *testing.T) {
	sink := &collectSink{}
	j := New(Settings{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil, sink)
	j.Start()
	defer j.Stop()

	j.Log(Event{Capability: "location"})
	assert.Eventually(t, func() bool { return sink.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestJournal_OverflowDoesNotBlock(t *testing.T) {
	j := New(Settings{BufferSize: 2}, nil)
	// Воркер не запущен: буфер заполняется, лишнее отбрасывается.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			j.Log(Event{Capability: "camera"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a full buffer")
	}
	assert.Equal(t, 2, j.Pending())
	j.Stop()
}

func TestRingSink_Recent(t *testing.T) {
	r := NewRingSink(3)
	assert.Empty(t, r.Recent(0))

	for _, c := range []string{"a", "b", "c", "d"} {
		require.NoError(t, r.WriteBatch(context.Background(), []Event{{Capability: c}}))
	}

	all := r.Recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Capability)
	assert.Equal(t, "d", all[2].Capability)

	last := r.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "d", last[0].Capability)
}
