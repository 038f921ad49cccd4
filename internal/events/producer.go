// internal/events/producer.go
//
// Kafka event production for analytics.
// Responsibilities:
//   - Publish lifecycle events (created, started, finished) to the
//     grab-events topic, keyed by game id.
//   - Degrade to a disabled no-op when no broker is configured or the
//     configured broker is unreachable, so the game server never depends
//     on Kafka being up.

package events

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/grab-game/internal/game"
)

// TopicGameEvents is the Kafka topic lifecycle events land on.
const TopicGameEvents = "grab-events"

// EventType labels a lifecycle event.
type EventType string

const (
	EventGameCreated  EventType = "game_created"
	EventGameStarted  EventType = "game_started"
	EventGameFinished EventType = "game_finished"
)

// Event is the wire form of one lifecycle event.
type Event struct {
	Type      EventType     `json:"type"`
	GameID    string        `json:"game_id"`
	Timestamp time.Time     `json:"timestamp"`
	Snapshot  game.Snapshot `json:"snapshot"`
}

// Producer publishes events to Kafka.
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer connects to the brokers named by KAFKA_BROKERS
// (comma-separated). With the variable unset, or the brokers unreachable,
// the producer comes back disabled rather than failing startup.
func NewProducer() *Producer {
	env := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if env == "" {
		log.Info().Msg("KAFKA_BROKERS not set, analytics disabled")
		return &Producer{}
	}
	brokers := strings.Split(env, ",")

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.Warn().Err(err).Strs("brokers", brokers).Msg("kafka producer not available, analytics disabled")
		return &Producer{}
	}

	log.Info().Strs("brokers", brokers).Msg("kafka producer connected")
	return &Producer{producer: producer, enabled: true}
}

// Enabled reports whether events actually reach Kafka.
func (p *Producer) Enabled() bool {
	return p != nil && p.enabled
}

// Emit publishes one lifecycle event. Disabled producers drop silently;
// send failures are logged, never surfaced.
func (p *Producer) Emit(typ EventType, snap game.Snapshot) {
	if !p.Enabled() {
		return
	}
	event := Event{
		Type:      typ,
		GameID:    snap.GameID,
		Timestamp: time.Now().UTC(),
		Snapshot:  snap,
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("game_id", snap.GameID).Msg("marshal event")
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: TopicGameEvents,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Error().Err(err).Str("game_id", snap.GameID).Str("type", string(typ)).Msg("send event")
	}
}

// Close shuts the underlying producer down.
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
