package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"backend-projectrun/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "runs:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix
	clientBuffer   = 64
)

// Hub fans run events out to websocket clients of this instance and, through
// redis pub/sub, to clients connected to other instances.
type Hub struct {
	redis   *redis.Client
	log     *logger.Logger
	origin  string
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex

	ready  chan struct{}
	cancel context.CancelFunc
}

type Client struct {
	RunID int64
	Send  chan []byte
}

type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(redisClient *redis.Client, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		redis:   redisClient,
		log:     log,
		origin:  uuid.NewString(),
		clients: map[int64]map[*Client]struct{}{},
		ready:   make(chan struct{}),
		cancel:  cancel,
	}

	if redisClient != nil {
		go h.subscribeRedis(ctx)
	} else {
		close(h.ready)
	}
	return h
}

func (h *Hub) Register(runID int64) *Client {
	client := &Client{
		RunID: runID,
		Send:  make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runID] == nil {
		h.clients[runID] = map[*Client]struct{}{}
	}
	h.clients[runID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if runClients, ok := h.clients[client.RunID]; ok {
		if _, ok := runClients[client]; !ok {
			return
		}
		delete(runClients, client)
		if len(runClients) == 0 {
			delete(h.clients, client.RunID)
		}
		close(client.Send)
	}
}

// Broadcast delivers payload to local clients of the run and publishes it for
// other instances. Slow clients drop messages instead of blocking.
func (h *Hub) Broadcast(runID int64, payload []byte) {
	h.deliver(runID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.origin, Payload: payload})
	if err != nil {
		h.log.Warn("stream envelope encode failed", "run_id", runID, "error", err)
		return
	}
	if err := h.redis.Publish(context.Background(), redisChannel(runID), msg).Err(); err != nil {
		h.log.Warn("redis publish failed", "run_id", runID, "error", err)
	}
}

// BroadcastJSON marshals v and broadcasts it.
func (h *Hub) BroadcastJSON(runID int64, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("stream payload encode failed", "run_id", runID, "error", err)
		return
	}
	h.Broadcast(runID, payload)
}

// Ready is closed once the redis subscription is confirmed.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) deliver(runID int64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[runID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Warn("redis subscribe failed", "error", err)
		return
	}
	close(h.ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.forward(msg)
		}
	}
}

func (h *Hub) forward(msg *redis.Message) {
	runID, ok := runIDFromChannel(msg.Channel)
	if !ok {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		h.log.Debug("dropping malformed stream message", "channel", msg.Channel, "error", err)
		return
	}
	if env.Origin == h.origin {
		return
	}
	h.deliver(runID, env.Payload)
}

func redisChannel(runID int64) string {
	return channelPrefix + strconv.FormatInt(runID, 10) + channelSuffix
}

func runIDFromChannel(ch string) (int64, bool) {
	// runs:{id}:broadcast
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return 0, false
	}
	raw := ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
