package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	client := hub.Register(1)
	defer hub.Unregister(client)

	hub.Broadcast(1, []byte(`"hello"`))

	select {
	case msg := <-client.Send:
		if string(msg) != `"hello"` {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubBroadcastOtherRunIgnored(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register(1)
	defer hub.Unregister(client)

	hub.BroadcastJSON(2, map[string]string{"status": "finished"})

	select {
	case <-client.Send:
		t.Fatalf("unexpected message for another run")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel(42)
	if ch != "runs:42:broadcast" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if id, ok := runIDFromChannel(ch); !ok || id != 42 {
		t.Fatalf("unexpected run id")
	}
	for _, bad := range []string{"bad", "runs:abc:broadcast", "tracking:1:broadcast"} {
		if _, ok := runIDFromChannel(bad); ok {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register(2)
	hub.Unregister(client)
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisFanOut(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	local := NewHub(rdb, nil)
	defer local.Close()
	remote := NewHub(rdb, nil)
	defer remote.Close()

	for _, h := range []*Hub{local, remote} {
		select {
		case <-h.Ready():
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for subscription")
		}
	}

	localClient := local.Register(7)
	defer local.Unregister(localClient)
	remoteClient := remote.Register(7)
	defer remote.Unregister(remoteClient)

	local.Broadcast(7, []byte(`{"distance":1.28}`))

	select {
	case msg := <-remoteClient.Send:
		if string(msg) != `{"distance":1.28}` {
			t.Fatalf("unexpected remote message %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for remote message")
	}

	select {
	case <-localClient.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected local delivery")
	}
	// the local hub must skip its own echo from redis
	select {
	case msg := <-localClient.Send:
		t.Fatalf("unexpected duplicate %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubForwardsExternalPublish(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	<-hub.Ready()

	client := hub.Register(9)
	defer hub.Unregister(client)

	msg, _ := json.Marshal(envelope{Origin: "other", Payload: json.RawMessage(`"pong"`)})
	if err := rdb.Publish(context.Background(), redisChannel(9), msg).Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if err := rdb.Publish(context.Background(), redisChannel(9), "not json").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case got := <-client.Send:
		if string(got) != `"pong"` {
			t.Fatalf("unexpected message from redis: %s", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for redis message")
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client, nil)
	defer hub.Close()
	node := hub.Register(3)
	defer hub.Unregister(node)

	hub.Broadcast(3, []byte("ping"))
	select {
	case <-node.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("local delivery must not depend on redis")
	}
}
