package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/jakegut/quickwit/kernel/events"
	"github.com/jakegut/quickwit/kernel/model"
)

const measurement = "janitor"

// Reporter forwards the janitor's pipeline count to InfluxDB. It subscribes
// to the pipelines-updated topic, so a point is written once per
// reconciliation pass.
type Reporter struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	broker *events.Broker
	stop   chan struct{}
	done   chan struct{}
}

func NewReporter(cfg model.MetricsConfig, broker *events.Broker) *Reporter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	r := newReporter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), broker)
	r.client = client
	return r
}

func newReporter(write api.WriteAPIBlocking, broker *events.Broker) *Reporter {
	return &Reporter{
		write:  write,
		broker: broker,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *Reporter) Start() {
	updates := r.broker.Subscribe(events.TopicPipelinesUpdated)
	go r.run(updates)
}

func (r *Reporter) run(updates <-chan events.Event) {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case evt := <-updates:
			count, ok := evt.Payload.(int)
			if !ok {
				continue
			}
			point := influxdb2.NewPoint(
				measurement,
				nil,
				map[string]interface{}{"num_running_pipelines": count},
				time.Now(),
			)
			if err := r.write.WritePoint(context.Background(), point); err != nil {
				logrus.WithError(err).Warn("failed to write janitor metrics point")
			}
		}
	}
}

func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
	if r.client != nil {
		r.client.Close()
	}
}
