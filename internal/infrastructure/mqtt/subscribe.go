package mqtt

import (
	"fmt"
	"sort"
	"sync"
)

// route is one tracked subscription.
type route struct {
	qos     byte
	handler MessageHandler
}

// routeTable holds the subscriptions to replay after a reconnect. The
// session is clean, so the broker forgets them on every disconnect.
type routeTable struct {
	mu     sync.RWMutex
	routes map[string]route
}

func newRouteTable() *routeTable {
	return &routeTable{routes: make(map[string]route)}
}

func (t *routeTable) set(topic string, r route) {
	t.mu.Lock()
	t.routes[topic] = r
	t.mu.Unlock()
}

func (t *routeTable) drop(topic string) {
	t.mu.Lock()
	delete(t.routes, topic)
	t.mu.Unlock()
}

// replay calls subscribe for every route and returns the topics that
// failed, sorted. Failed routes stay in the table for the next reconnect.
func (t *routeTable) replay(subscribe func(topic string, r route) error) []string {
	t.mu.RLock()
	snapshot := make(map[string]route, len(t.routes))
	for topic, r := range t.routes {
		snapshot[topic] = r
	}
	t.mu.RUnlock()

	var failed []string
	for topic, r := range snapshot {
		if err := subscribe(topic, r); err != nil {
			failed = append(failed, topic)
		}
	}
	sort.Strings(failed)
	return failed
}

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The route is replayed on every reconnect.
//
// Handlers run concurrently. The bridge's sensor handlers may block on a
// media response that arrives through this same client.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.routes.set(topic, route{qos: qos, handler: handler})
	if err := await(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.routes.drop(topic)
		return err
	}
	return nil
}

// Unsubscribe forgets the route for topic. While the link is down the
// broker has already dropped the subscription, so this only updates the
// route table and returns nil.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.routes.drop(topic)
	if !c.IsConnected() {
		return nil
	}
	return await(c.paho.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}
