package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Event is one row-level change pushed to subscribers.
type Event struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     string `json:"id"`
	Row    any    `json:"row,omitempty"`
}

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Hub fans change events out to subscribers. Topics are either a table name
// ("rides") or a table:id pair ("profiles:user-1"). A table-wide publish also
// reaches row-scoped subscribers of the changed row.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Topic string
	Send  chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Subscribe(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

// Unsubscribe removes the client and closes its channel. Calling it again for
// the same client is a no-op, so handler teardown and deferred cleanup can
// both run.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topicClients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := topicClients[client]; !ok {
		return
	}
	delete(topicClients, client)
	if len(topicClients) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

// Publish delivers the event to subscribers of the table topic and the row
// topic. With redis attached the event travels through pub/sub only, so every
// instance, this one included, delivers it exactly once; local delivery is the
// fallback when redis is absent or the publish fails.
func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("stream marshal error: %v", err)
		return
	}

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(ev.Table), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error, delivering locally: %v", err)
	}

	h.deliver(ev.Table, payload)
	if ev.ID != "" {
		h.deliver(ev.Table+":"+ev.ID, payload)
	}
}

// deliver holds the read lock across the sends so a concurrent Unsubscribe
// cannot close a channel mid-send; sends are non-blocking so the lock is
// never held up by a slow client.
func (h *Hub) deliver(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "changes:*")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			continue
		}
		payload := []byte(msg.Payload)
		h.deliver(tableFromChannel(msg.Channel), payload)
		if ev.ID != "" {
			h.deliver(ev.Table+":"+ev.ID, payload)
		}
	}
}

func redisChannel(table string) string {
	return "changes:" + table
}

func tableFromChannel(ch string) string {
	return strings.TrimPrefix(ch, "changes:")
}
