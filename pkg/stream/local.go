package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"

	"chatstream/pkg/logger"
)

type localSub struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (s *localSub) stop() {
	s.once.Do(func() { close(s.done) })
}

type localTopic struct {
	mu   sync.Mutex
	subs map[uint64]*localSub
}

// localBroker fans frames out in process. Each subscriber runs its
// callback on its own goroutine fed by a buffered channel; a subscriber
// that stays full past the timeout is dropped.
type localBroker struct {
	topics  *haxmap.Map[string, *localTopic]
	nextID  uint64
	timeout time.Duration
	closed  atomic.Bool
}

// Local returns an in-process broker. timeout bounds how long a publish
// waits on a saturated subscriber before dropping it; zero means drop
// immediately.
func Local(timeout time.Duration) Broker {
	return &localBroker{
		topics:  haxmap.New[string, *localTopic](),
		timeout: timeout,
	}
}

func (b *localBroker) topic(name string) *localTopic {
	if t, ok := b.topics.Get(name); ok {
		return t
	}
	t, _ := b.topics.GetOrSet(name, &localTopic{subs: map[uint64]*localSub{}})
	return t
}

func (b *localBroker) Publish(topic string, data []byte) error {
	if b.closed.Load() {
		return nil
	}
	t, ok := b.topics.Get(topic)
	if !ok {
		return nil
	}
	t.mu.Lock()
	subs := make([]*localSub, 0, len(t.subs))
	ids := make([]uint64, 0, len(t.subs))
	for id, s := range t.subs {
		subs = append(subs, s)
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for i, s := range subs {
		select {
		case s.ch <- data:
		default:
			if b.timeout <= 0 {
				b.drop(topic, t, ids[i], s)
				continue
			}
			timer := time.NewTimer(b.timeout)
			select {
			case s.ch <- data:
				timer.Stop()
			case <-timer.C:
				b.drop(topic, t, ids[i], s)
			}
		}
	}
	return nil
}

func (b *localBroker) drop(topic string, t *localTopic, id uint64, s *localSub) {
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
	s.stop()
	logger.Warn("slow_subscriber_dropped", "topic", topic)
}

func (b *localBroker) Subscribe(topic string, fn func(data []byte)) (func(), error) {
	t := b.topic(topic)
	id := atomic.AddUint64(&b.nextID, 1)
	s := &localSub{ch: make(chan []byte, 256), done: make(chan struct{})}
	t.mu.Lock()
	t.subs[id] = s
	t.mu.Unlock()

	go func() {
		for {
			select {
			case data := <-s.ch:
				fn(data)
			case <-s.done:
				return
			}
		}
	}()

	unsub := func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
		s.stop()
	}
	return unsub, nil
}

func (b *localBroker) Close() error {
	b.closed.Store(true)
	b.topics.ForEach(func(_ string, t *localTopic) bool {
		t.mu.Lock()
		for id, s := range t.subs {
			delete(t.subs, id)
			s.stop()
		}
		t.mu.Unlock()
		return true
	})
	return nil
}
