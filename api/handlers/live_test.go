package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medrounds/med-consult-api/models"
)

// fakeConn records everything written to it and can be told to fail
type fakeConn struct {
	events []LiveEvent
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.fail {
		return errors.New("write failed")
	}
	f.events = append(f.events, v.(LiveEvent))
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestLiveHubPublishRegistrationOrder(t *testing.T) {
	hub := NewLiveHub()
	first := &fakeConn{}
	second := &fakeConn{}
	hub.Subscribe("CASE-001", first)
	hub.Subscribe("CASE-001", second)

	hub.PublishMessage("CASE-001", models.Message{Content: "hello"})

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
	assert.Equal(t, "new_message", first.events[0].Type)
}

func TestLiveHubPublishScopedByCase(t *testing.T) {
	hub := NewLiveHub()
	watching := &fakeConn{}
	other := &fakeConn{}
	hub.Subscribe("CASE-001", watching)
	hub.Subscribe("CASE-002", other)

	hub.PublishMessage("CASE-001", models.Message{Content: "hello"})

	assert.Len(t, watching.events, 1)
	assert.Empty(t, other.events)
}

func TestLiveHubFailedSendIsolated(t *testing.T) {
	hub := NewLiveHub()
	broken := &fakeConn{fail: true}
	healthy := &fakeConn{}
	hub.Subscribe("CASE-001", broken)
	hub.Subscribe("CASE-001", healthy)

	hub.PublishMessage("CASE-001", models.Message{Content: "hello"})

	// the broken connection is dropped, the healthy one still delivers
	assert.True(t, broken.closed)
	assert.Len(t, healthy.events, 1)

	// a second publish no longer touches the dropped connection
	hub.PublishMessage("CASE-001", models.Message{Content: "again"})
	assert.Len(t, healthy.events, 2)
}

func TestLiveHubNoReplayForLateSubscriber(t *testing.T) {
	hub := NewLiveHub()
	early := &fakeConn{}
	hub.Subscribe("CASE-001", early)
	hub.PublishMessage("CASE-001", models.Message{Content: "before"})

	late := &fakeConn{}
	hub.Subscribe("CASE-001", late)
	hub.PublishMessage("CASE-001", models.Message{Content: "after"})

	assert.Len(t, early.events, 2)
	assert.Len(t, late.events, 1)
	assert.Equal(t, "after", late.events[0].Data.(models.Message).Content)
}

func TestLiveHubUnsubscribeIdempotent(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeConn{}
	handle := hub.Subscribe("CASE-001", conn)

	hub.Unsubscribe("CASE-001", handle)
	hub.Unsubscribe("CASE-001", handle)

	hub.PublishMessage("CASE-001", models.Message{Content: "hello"})
	assert.Empty(t, conn.events)
}

func TestLiveHubPublishProgress(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeConn{}
	hub.Subscribe("CASE-001", conn)

	hub.PublishProgress("CASE-001", "Analyzing imaging details...", 0.25)

	assert.Len(t, conn.events, 1)
	assert.Equal(t, "progress", conn.events[0].Type)
	data := conn.events[0].Data.(map[string]interface{})
	assert.Equal(t, "Analyzing imaging details...", data["message"])
	assert.Equal(t, 0.25, data["fraction"])
}

func TestLiveHubSweepPrunesDeadConnections(t *testing.T) {
	hub := NewLiveHub()
	dead := &fakeConn{fail: true}
	alive := &fakeConn{}
	hub.Subscribe("CASE-001", dead)
	hub.Subscribe("CASE-001", alive)

	hub.Sweep()

	assert.True(t, dead.closed)

	hub.PublishMessage("CASE-001", models.Message{Content: "hello"})
	// the live connection got the sweep ping plus the message
	assert.Len(t, alive.events, 2)
	assert.Equal(t, "ping", alive.events[0].Type)
	assert.Equal(t, "new_message", alive.events[1].Type)
}
