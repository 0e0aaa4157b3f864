package live

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Topic - имя коллекции (или её части), изменения которой отслеживают подписчики.
type Topic string

const (
	TopicListings Topic = "listings"
	// TopicBookmarksAll будит закладки всех пользователей (каскадное удаление объявления).
	TopicBookmarksAll Topic = "bookmarks:*"
)

func BookmarksTopic(userID uuid.UUID) Topic {
	return Topic("bookmarks:" + userID.String())
}

func ApplicationsTopic(ownerID uuid.UUID) Topic {
	return Topic("applications:" + ownerID.String())
}

// Notifier сообщает подписчикам темы, что данные изменились.
type Notifier interface {
	Notify(ctx context.Context, topic Topic) error
}

type subscriber struct {
	wake chan struct{}
}

// Broker keeps the in-process subscribers of every topic. A notification
// wakes each subscriber at most once until it re-queries, so bursts of
// changes collapse into a single snapshot.
type Broker struct {
	mu     sync.RWMutex
	topics map[Topic]map[*subscriber]struct{}
	closed bool
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		topics: make(map[Topic]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Notify implements Notifier for a single-instance deployment.
func (b *Broker) Notify(_ context.Context, topic Topic) error {
	b.Publish(topic)
	return nil
}

// Publish wakes every local subscriber of topic without blocking.
// A topic ending in "*" wakes every topic with that prefix.
func (b *Broker) Publish(topic Topic) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	woken := 0
	if prefix, ok := strings.CutSuffix(string(topic), "*"); ok {
		for t, subs := range b.topics {
			if strings.HasPrefix(string(t), prefix) {
				woken += wakeAll(subs)
			}
		}
	} else {
		woken = wakeAll(b.topics[topic])
	}
	b.logger.Debug("live topic changed", slog.String("topic", string(topic)), slog.Int("subscribers", woken))
}

func wakeAll(subs map[*subscriber]struct{}) int {
	for sub := range subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
	return len(subs)
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close ends every stream. Later subscriptions end right after their
// initial snapshot.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for sub := range subs {
			close(sub.wake)
		}
		delete(b.topics, topic)
	}
}

func (b *Broker) register(topic Topic) *subscriber {
	sub := &subscriber{wake: make(chan struct{}, 1)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.wake)
		return sub
	}
	if _, ok := b.topics[topic]; !ok {
		b.topics[topic] = make(map[*subscriber]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub
}

func (b *Broker) unregister(topic Topic, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}
