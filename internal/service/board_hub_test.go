package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// attachProbe registers a bare session so fan-out delivery can be observed
// without a live websocket.
func attachProbe(h *BoardHub) chan BoardEvent {
	session := &boardSession{
		send:   make(chan BoardEvent, boardSendBufferSize),
		hub:    h,
		closed: make(chan struct{}),
	}
	h.register(session)
	return session.send
}

func waitForEvent(t *testing.T, ch chan BoardEvent) BoardEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for board event")
		return BoardEvent{}
	}
}

func TestPublishFansOutToLocalSessions(t *testing.T) {
	hub := NewBoardHub(nil, "", nil, zerolog.Nop())
	first := attachProbe(hub)
	second := attachProbe(hub)
	require.Equal(t, 2, hub.Sessions())

	hub.Publish(BoardEvent{Type: EventTaskCreated, Payload: map[string]string{"title": "Card"}})

	require.Equal(t, EventTaskCreated, waitForEvent(t, first).Type)
	require.Equal(t, EventTaskCreated, waitForEvent(t, second).Type)
}

func TestPublishSkipsSlowSession(t *testing.T) {
	hub := NewBoardHub(nil, "", nil, zerolog.Nop())
	slow := attachProbe(hub)

	for i := 0; i < boardSendBufferSize+5; i++ {
		hub.Publish(BoardEvent{Type: EventTaskUpdated})
	}

	// The buffer holds exactly its capacity; the overflow was dropped rather
	// than blocking the publisher.
	require.Len(t, slow, boardSendBufferSize)
}

func TestHandleEnvelopeDiscardsOwnEvents(t *testing.T) {
	hub := NewBoardHub(nil, "", nil, zerolog.Nop())
	probe := attachProbe(hub)

	own, err := json.Marshal(boardEnvelope{
		Source: hub.nodeID,
		Event:  BoardEvent{Type: EventTaskDeleted},
		SentAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	hub.handleEnvelope(own)
	require.Empty(t, probe)

	foreign, err := json.Marshal(boardEnvelope{
		Source: "another-node",
		Event:  BoardEvent{Type: EventTaskDeleted},
		SentAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	hub.handleEnvelope(foreign)
	require.Equal(t, EventTaskDeleted, waitForEvent(t, probe).Type)
}

func TestHandleEnvelopeIgnoresGarbage(t *testing.T) {
	hub := NewBoardHub(nil, "", nil, zerolog.Nop())
	probe := attachProbe(hub)

	hub.handleEnvelope([]byte("not json"))
	require.Empty(t, probe)
}

func TestRedisBridgeCrossesNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewBoardHub(clientA, "syncboard:board", nil, zerolog.Nop())
	nodeB := NewBoardHub(clientB, "syncboard:board", nil, zerolog.Nop())
	nodeB.Start(ctx)

	// Wait until the subscriber is attached. The warmup message is not a
	// valid envelope and gets discarded.
	require.Eventually(t, func() bool {
		return mr.Publish("syncboard:board:events", "warmup") > 0
	}, 2*time.Second, 10*time.Millisecond)

	probe := attachProbe(nodeB)
	nodeA.Publish(BoardEvent{Type: EventTaskUpdated, Payload: map[string]uint{"id": 7}})

	event := waitForEvent(t, probe)
	require.Equal(t, EventTaskUpdated, event.Type)
}

func TestRedisBridgeFiltersOwnEcho(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewBoardHub(client, "syncboard:board", nil, zerolog.Nop())
	hub.Start(ctx)

	require.Eventually(t, func() bool {
		return mr.Publish("syncboard:board:events", "warmup") > 0
	}, 2*time.Second, 10*time.Millisecond)

	probe := attachProbe(hub)
	hub.Publish(BoardEvent{Type: EventTaskCreated})

	// Exactly one local delivery; the redis echo of our own envelope is
	// discarded by the node id filter.
	require.Equal(t, EventTaskCreated, waitForEvent(t, probe).Type)

	select {
	case extra := <-probe:
		t.Fatalf("unexpected duplicate delivery: %v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}
