package receiver

import (
	"context"
	"sync"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// fakeSession implements sarama.ConsumerGroupSession for claim tests.
type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "member-1" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit()                                  {}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

// fakeClaim serves a fixed message sequence.
type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "gas-events" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestClaimHandler_ConsumeClaim(t *testing.T) {
	out := make(chan event.Event, 10)
	handler := &claimHandler{out: out}
	session := &fakeSession{ctx: context.Background()}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{
		Offset: 1,
		Value:  []byte(`{"locationId": "loc-1", "eventId": "evt-1", "timestamp": 100, "value": 2.5}`),
	}
	claim.messages <- &sarama.ConsumerMessage{
		Offset: 2,
		Value:  []byte(`not an event`),
	}
	claim.messages <- &sarama.ConsumerMessage{
		Offset: 3,
		Value:  []byte(`{"locationId": "loc-2", "eventId": "evt-2", "timestamp": 200, "value": 3.5}`),
	}
	close(claim.messages)

	require.NoError(t, handler.ConsumeClaim(session, claim))
	close(out)

	var got []event.Event
	for e := range out {
		got = append(got, e)
	}
	require.Len(t, got, 2, "the malformed message is skipped")
	assert.Equal(t, "evt-1", got[0].EventID)
	assert.Equal(t, "evt-2", got[1].EventID)

	assert.Equal(t, []int64{1, 2, 3}, session.marked,
		"every message is marked, malformed ones included")
}

func TestClaimHandler_StopsOnCancelledSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan event.Event)
	handler := &claimHandler{out: out}
	session := &fakeSession{ctx: ctx}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{
		Offset: 1,
		Value:  []byte(`{"locationId": "loc-1", "eventId": "evt-1", "timestamp": 100, "value": 2.5}`),
	}
	close(claim.messages)

	err := handler.ConsumeClaim(session, claim)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, session.marked)
}
