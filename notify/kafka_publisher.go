package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"sportsbook/events"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// messageWriter is the part of kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SettlementMessage is the wire form of a settled event
type SettlementMessage struct {
	EventID    int64             `json:"eventId"`
	ExternalID string            `json:"externalId"`
	RunID      string            `json:"runId"`
	HomeScore  int               `json:"homeScore"`
	AwayScore  int               `json:"awayScore"`
	Wagers     []WagerSettlement `json:"wagers"`
	SentAtMs   int64             `json:"sentAtMs"`
}

type WagerSettlement struct {
	WagerID   int64  `json:"wagerId"`
	AccountID int64  `json:"accountId"`
	Kind      string `json:"kind"`
	Verdict   string `json:"verdict"`
	Credited  string `json:"credited"`
}

// KafkaPublisher forwards committed settlements to a kafka topic
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewWriter builds a kafka writer for the settlement topic
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// Subscribe registers the publisher on the event bus
func (p *KafkaPublisher) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeEventSettled, p.handleEventSettled)
}

func (p *KafkaPublisher) handleEventSettled(ctx context.Context, event events.Event) {
	settled, ok := event.(events.EventSettledEvent)
	if !ok {
		log.WithField("eventType", event.Type()).Error("Unexpected event payload for settlement publisher")
		return
	}

	if err := p.Publish(ctx, settled); err != nil {
		log.WithFields(log.Fields{
			"eventID": settled.EventID,
			"runID":   settled.RunID,
			"error":   err,
		}).Error("Failed to publish settlement to kafka")
	}
}

// Publish writes one message for the settled event, keyed by event id
func (p *KafkaPublisher) Publish(ctx context.Context, settled events.EventSettledEvent) error {
	msg := SettlementMessage{
		EventID:    settled.EventID,
		ExternalID: settled.ExternalID,
		RunID:      settled.RunID,
		HomeScore:  settled.HomeScore,
		AwayScore:  settled.AwayScore,
		Wagers:     make([]WagerSettlement, 0, len(settled.Outcomes)),
		SentAtMs:   time.Now().UnixMilli(),
	}
	for _, o := range settled.Outcomes {
		msg.Wagers = append(msg.Wagers, WagerSettlement{
			WagerID:   o.WagerID,
			AccountID: o.AccountID,
			Kind:      string(o.Kind),
			Verdict:   string(o.Verdict),
			Credited:  o.Credited.StringFixed(2),
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// the bus hands us the emitter's context which may already be done
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(strconv.FormatInt(settled.EventID, 10)),
		Value: payload,
		Time:  time.Now(),
	}); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"eventID": settled.EventID,
		"wagers":  len(msg.Wagers),
	}).Info("Published settlement")
	return nil
}
