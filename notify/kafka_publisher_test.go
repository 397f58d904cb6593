package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sportsbook/events"
	"sportsbook/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	written  chan struct{}
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{written: make(chan struct{}, 8)}
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func() { w.written <- struct{}{} }()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) sent() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func settledEvent() events.EventSettledEvent {
	return events.EventSettledEvent{
		EventID:    42,
		ExternalID: "0022300001",
		RunID:      "run-1",
		HomeScore:  108,
		AwayScore:  101,
		Outcomes: []*models.WagerOutcome{
			{WagerID: 1, AccountID: 7, Kind: models.BetKindSpreadHome, Verdict: models.VerdictWon, Credited: decimal.RequireFromString("190.91")},
			{WagerID: 2, AccountID: 8, Kind: models.BetKindOver, Verdict: models.VerdictLost, Credited: decimal.Zero},
		},
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := newFakeWriter()
	p := NewKafkaPublisher(w)

	require.NoError(t, p.Publish(context.Background(), settledEvent()))

	sent := w.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "42", string(sent[0].Key))

	var msg SettlementMessage
	require.NoError(t, json.Unmarshal(sent[0].Value, &msg))
	assert.Equal(t, int64(42), msg.EventID)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, 108, msg.HomeScore)
	require.Len(t, msg.Wagers, 2)
	assert.Equal(t, "won", msg.Wagers[0].Verdict)
	assert.Equal(t, "190.91", msg.Wagers[0].Credited)
	assert.Equal(t, "0.00", msg.Wagers[1].Credited)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := newFakeWriter()
	w.err = errors.New("broker down")
	p := NewKafkaPublisher(w)

	err := p.Publish(context.Background(), settledEvent())

	assert.EqualError(t, err, "broker down")
}

func TestKafkaPublisher_SubscribedToBus(t *testing.T) {
	w := newFakeWriter()
	bus := events.NewBus()
	NewKafkaPublisher(w).Subscribe(bus)

	bus.Emit(context.Background(), settledEvent())

	select {
	case <-w.written:
	case <-time.After(2 * time.Second):
		t.Fatal("settlement was not published")
	}
	assert.Len(t, w.sent(), 1)
}

func TestKafkaPublisher_IgnoresOtherEvents(t *testing.T) {
	w := newFakeWriter()
	bus := events.NewBus()
	NewKafkaPublisher(w).Subscribe(bus)

	bus.Emit(context.Background(), events.WagerPlacedEvent{WagerID: 1})

	select {
	case <-w.written:
		t.Fatal("unexpected write")
	case <-time.After(50 * time.Millisecond):
	}
}
