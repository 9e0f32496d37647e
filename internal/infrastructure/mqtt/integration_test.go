//go:build integration

package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// Integration tests against a running broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "sentinel-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "sentinel-int-sub-track"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	noop := func(string, []byte) error { return nil }
	for _, topic := range []string{topics.SensorMotion(), topics.SensorTouch(), topics.AllMediaResponses()} {
		if err := client.Subscribe(topic, 1, noop); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if n := routeCount(client); n != 3 {
		t.Errorf("tracked routes = %d, want 3", n)
	}
	if err := client.Unsubscribe(topics.SensorTouch()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if n := routeCount(client); n != 2 {
		t.Errorf("tracked routes = %d, want 2 after Unsubscribe()", n)
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "sentinel-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "sentinel-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := subClient.Topics().MediaResponse("int-roundtrip")
	received := make(chan []byte, 1)
	var once sync.Once

	err = subClient.Subscribe(subClient.Topics().AllMediaResponses(), 1, func(_ string, p []byte) error {
		once.Do(func() { received <- p })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishJSON(topic, map[string]string{"ref": "photo-1"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case payload := <-received:
		var body map[string]string
		if err := json.Unmarshal(payload, &body); err != nil || body["ref"] != "photo-1" {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
