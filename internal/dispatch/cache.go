package dispatch

import "container/list"

// DefaultAckCacheSize is the number of terminal acks remembered for
// duplicate suppression.
const DefaultAckCacheSize = 256

// ackCache is a fixed-size LRU of terminal acks keyed by commandId.
// It is not safe for concurrent use; the Dispatcher guards it.
type ackCache struct {
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

func newAckCache(capacity int) *ackCache {
	if capacity <= 0 {
		capacity = DefaultAckCacheSize
	}
	return &ackCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *ackCache) get(commandID string) (Ack, bool) {
	el, ok := c.items[commandID]
	if !ok {
		return Ack{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(Ack), true //nolint:forcetypeassert // only Acks are stored
}

func (c *ackCache) put(ack Ack) {
	if el, ok := c.items[ack.CommandID]; ok {
		el.Value = ack
		c.order.MoveToFront(el)
		return
	}
	c.items[ack.CommandID] = c.order.PushFront(ack)
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(Ack).CommandID) //nolint:forcetypeassert // only Acks are stored
	}
}

func (c *ackCache) len() int {
	return c.order.Len()
}
