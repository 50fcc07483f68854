// bus.go
package bus

import (
	"context"
	"sync"

	"datalogger-go/x/strconvx"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of string tokens. "+" matches exactly one level in a
// subscription; "#" matches zero or more trailing levels.
type Topic []string

const (
	WildcardOne  = "+"
	WildcardRest = "#"
)

// T builds a Topic from string or int tokens. Any other token type panics:
// topics must stay comparable and allocation-cheap.
func T(tokens ...any) Topic {
	out := make(Topic, 0, len(tokens))
	for _, tk := range tokens {
		switch v := tk.(type) {
		case string:
			out = append(out, v)
		case int:
			out = append(out, strconvx.Itoa(v))
		default:
			panic("bus: topic token must be string or int")
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender asked for a reply.
func (m *Message) CanReply() bool { return len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		root: &node{},
		qLen: queueLen,
	}
}

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// addSubscription inserts a subscription pattern into the trie and delivers
// any retained messages that already match it.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	var retained []*Message
	collectRetained(b.root, topic, &retained)
	for _, m := range retained {
		deliver(sub, m)
	}
}

// collectRetained walks the trie following a subscription pattern and gathers
// retained messages stored at matching exact-topic nodes.
func collectRetained(n *node, pat Topic, out *[]*Message) {
	if len(pat) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pat[0] {
	case WildcardRest:
		// Zero or more levels: this node and every descendant.
		collectAllRetained(n, out)
	case WildcardOne:
		for _, c := range n.children {
			collectRetained(c, pat[1:], out)
		}
	default:
		if c, ok := n.children[pat[0]]; ok {
			collectRetained(c, pat[1:], out)
		}
	}
}

func collectAllRetained(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		collectAllRetained(c, out)
	}
}

// Publish delivers a message to every subscription whose pattern matches its
// topic, and stores or clears the retained copy at the exact topic node.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()

	var targets []*Subscription
	match(b.root, msg.Topic, &targets)

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			if n.children == nil {
				n.children = make(map[string]*node)
			}
			child, ok := n.children[tok]
			if !ok {
				child = &node{}
				n.children[tok] = child
			}
			n = child
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
	// Deliver while holding the lock so Unsubscribe cannot close a channel
	// between collection and send.
	for _, sub := range targets {
		deliver(sub, msg)
	}
	b.mu.Unlock()
}

// match walks the trie along the message topic, branching into "+" children
// and picking up "#" subscribers at every level.
func match(n *node, toks Topic, out *[]*Subscription) {
	if h, ok := n.children[WildcardRest]; ok {
		*out = append(*out, h.subs...)
	}
	if len(toks) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	if c, ok := n.children[toks[0]]; ok && toks[0] != WildcardRest {
		match(c, toks[1:], out)
	}
	if c, ok := n.children[WildcardOne]; ok && toks[0] != WildcardOne {
		match(c, toks[1:], out)
	}
}

// deliver is non-blocking: a full queue drops the oldest message first.
func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[t]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
	seq  int // reply topic counter
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		bus:   c.bus,
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

func (c *Connection) nextReplyTopic() Topic {
	c.mu.Lock()
	c.seq++
	n := c.seq
	c.mu.Unlock()
	return Topic{"$reply", c.id, strconvx.Itoa(n)}
}

// Request stamps a ReplyTo on the message, subscribes to it, publishes, and
// returns the reply subscription. Caller unsubscribes when done.
func (c *Connection) Request(msg *Message) *Subscription {
	msg.ReplyTo = c.nextReplyTopic()
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait performs Request and blocks for one reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-sub.ch:
		return reply, nil
	}
}

// Reply publishes a payload back to the requester's ReplyTo topic.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}
