package msg

import (
	"sync"

	"github.com/google/uuid"
)

// Topic identifies the kind of payload carried by a Msg
type Topic int

// Topics published inside the workcell
const (
	Record Topic = iota
	Completion
)

func (t Topic) String() string {
	switch t {
	case Record:
		return "record"
	case Completion:
		return "completion"
	}
	return "unknown"
}

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) <-chan Msg
	Unsubscribe(uuid.UUID)
}

// Msg is the envelope passed between linkers and their observers
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// PubSub fans published messages out to subscribers. Slow subscribers miss
// messages rather than block the publisher.
type PubSub struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	subs      map[uuid.UUID]map[Topic]chan Msg
	chanDepth int
}

// NewPublisher returns a PubSub that sends as pid
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:       &sync.Mutex{},
		pid:       pid,
		subs:      make(map[uuid.UUID]map[Topic]chan Msg),
		chanDepth: 16,
	}
}

// PID is the sender id stamped on published messages.
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a read only channel for messages on topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) <-chan Msg {
	p.mux.Lock()
	defer p.mux.Unlock()
	topics, ok := p.subs[pid]
	if !ok {
		topics = make(map[Topic]chan Msg)
		p.subs[pid] = topics
	}
	if ch, ok := topics[topic]; ok {
		return ch
	}
	ch := make(chan Msg, p.chanDepth)
	topics[topic] = ch
	return ch
}

// Unsubscribe closes every channel held by pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.subs[pid] {
		close(ch)
	}
	delete(p.subs, pid)
}

// Publish sends payload to every subscriber of topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	m := New(p.pid, topic, payload)
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, topics := range p.subs {
		ch, ok := topics[topic]
		if !ok {
			continue
		}
		select {
		case ch <- m:
		default:
		}
	}
}

// Collect subscribes pid to topic on every publisher and merges the
// subscriptions into one channel. The channel closes once every source
// closed or cancel was called; cancel also unsubscribes pid from all of them.
// Messages not yet read when cancel is called are dropped.
func Collect(pid uuid.UUID, topic Topic, pubs ...Publisher) (<-chan Msg, func()) {
	out := make(chan Msg)
	done := make(chan struct{})
	wg := &sync.WaitGroup{}
	for _, pub := range pubs {
		ch := pub.Subscribe(pid, topic)
		wg.Add(1)
		go func(ch <-chan Msg) {
			defer wg.Done()
			for {
				select {
				case m, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- m:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	once := &sync.Once{}
	cancel := func() {
		once.Do(func() {
			close(done)
			for _, pub := range pubs {
				pub.Unsubscribe(pid)
			}
		})
	}
	return out, cancel
}
