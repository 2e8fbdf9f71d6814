package events

import (
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sirupsen/logrus"

	"github.com/jakegut/quickwit/kernel/model"
)

// Topics published by the janitor and its pipelines.
const (
	TopicPipelineStarted   = "pipeline-started"
	TopicPipelineStopped   = "pipeline-stopped"
	TopicPipelinesUpdated  = "pipelines-updated"
	TopicDeleteTaskApplied = "delete-task-applied"
)

// Event is one notification on a topic. Payload content depends on the topic.
type Event struct {
	IndexUid model.IndexUid
	Payload  interface{}
}

// Broker is a process-wide pub/sub handle shared by the janitor service and
// every pipeline it spawns. Publishing never blocks: a subscriber that cannot
// keep up loses events.
type Broker struct {
	subscribers cmap.ConcurrentMap[string, []chan Event]
}

func NewBroker() *Broker {
	return &Broker{subscribers: cmap.New[[]chan Event]()}
}

// Subscribe returns a channel receiving every future event on topic.
func (b *Broker) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, 64)
	b.subscribers.Upsert(topic, nil, func(exists bool, current, _ []chan Event) []chan Event {
		return append(current, ch)
	})
	return ch
}

// Publish delivers evt to every subscriber of topic.
func (b *Broker) Publish(topic string, evt Event) {
	channels, ok := b.subscribers.Get(topic)
	if !ok {
		return
	}
	for _, ch := range channels {
		select {
		case ch <- evt:
		default:
			logrus.Debugf("subscriber on topic '%s' is full, dropping event", topic)
		}
	}
}
