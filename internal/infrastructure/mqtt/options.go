package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from the Sentinel config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Clean session mode
//   - Concurrent handler delivery (OrderMatters disabled)
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	// Client identification
	opts.SetClientID(cfg.Broker.ClientID)

	// Authentication (if credentials provided)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Handlers may wait on a media response delivered by this same client.
	opts.SetOrderMatters(false)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Connection timeout
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration if enabled
	if cfg.Broker.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}

// Daemon status values on {prefix}/system/status.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// statusPayload is published retained on the system status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (p statusPayload) encode() []byte {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	b, err := json.Marshal(p)
	if err != nil {
		return []byte(fmt.Sprintf(`{"status":%q}`, p.Status))
	}
	return b
}

// configureLWT registers the will the broker publishes if the daemon
// drops without Close, telling the bridge that security monitoring has
// stopped. It is retained at QoS 1 on {prefix}/system/status.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	will := statusPayload{Status: statusOffline, ClientID: clientID, Reason: "unexpected_disconnect"}
	opts.SetBinaryWill(topics.SystemStatus(), will.encode(), 1, true)
}
