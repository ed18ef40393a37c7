// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package kafka handles document exports to Kafka.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"

	"sflowhdr/common/daemon"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
)

// Component represents the Kafka exporter.
type Component struct {
	r      *reporter.Reporter
	d      *Dependencies
	t      tomb.Tomb
	config Configuration

	kafkaTopic          string
	kafkaConfig         *sarama.Config
	kafkaProducer       sarama.AsyncProducer
	createKafkaProducer func() (sarama.AsyncProducer, error)
	createClusterAdmin  func() (sarama.ClusterAdmin, error)
	topicBackOff        func() backoff.BackOff
	metrics             metrics
	lastError           atomic.Int64
}

// Dependencies define the dependencies of the Kafka exporter.
type Dependencies struct {
	Daemon daemon.Component
}

// New creates a new Kafka exporter component.
func New(r *reporter.Reporter, configuration Configuration, dependencies Dependencies) (*Component, error) {
	kafkaConfig, err := newSaramaConfig(configuration)
	if err != nil {
		return nil, err
	}

	c := Component{
		r:      r,
		d:      &dependencies,
		config: configuration,

		kafkaConfig: kafkaConfig,
		kafkaTopic:  fmt.Sprintf("%s-v%d", configuration.Topic, decoder.DocumentVersion),
	}
	c.initMetrics()
	c.createKafkaProducer = func() (sarama.AsyncProducer, error) {
		return sarama.NewAsyncProducer(c.config.Brokers, c.kafkaConfig)
	}
	c.createClusterAdmin = func() (sarama.ClusterAdmin, error) {
		return sarama.NewClusterAdmin(c.config.Brokers, c.kafkaConfig)
	}
	c.topicBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 10 * time.Second
		b.MaxElapsedTime = time.Minute
		if c.config.TopicConfiguration != nil && c.config.TopicConfiguration.Timeout > 0 {
			b.MaxElapsedTime = c.config.TopicConfiguration.Timeout
		}
		return b
	}
	c.d.Daemon.Track(&c.t, "inlet/kafka")
	return &c, nil
}

// Start starts the Kafka component.
func (c *Component) Start() error {
	c.r.Info().Msg("starting Kafka component")
	globalKafkaLogger.r.Store(c.r)

	if c.config.TopicConfiguration != nil {
		if err := c.ensureTopic(); err != nil {
			return err
		}
	}

	kafkaProducer, err := c.createKafkaProducer()
	if err != nil {
		c.r.Err(err).
			Str("brokers", strings.Join(c.config.Brokers, ",")).
			Msg("unable to create async producer")
		return fmt.Errorf("unable to create Kafka async producer: %w", err)
	}
	c.kafkaProducer = kafkaProducer
	c.r.RegisterHealthcheck("inlet/kafka", c.healthcheck)

	// Error loop
	c.t.Go(func() error {
		defer kafkaProducer.Close()
		defer c.kafkaConfig.MetricRegistry.UnregisterAll()
		errLimiter := rate.NewLimiter(rate.Every(10*time.Second), 3)
		for {
			select {
			case <-c.t.Dying():
				c.r.Debug().Msg("stop error logger")
				return nil
			case msg := <-kafkaProducer.Errors():
				if msg == nil {
					continue
				}
				c.metrics.errors.WithLabelValues(msg.Error()).Inc()
				c.lastError.Store(time.Now().UnixNano())
				if errLimiter.Allow() {
					c.r.Err(msg.Err).
						Str("topic", msg.Msg.Topic).
						Int64("offset", msg.Msg.Offset).
						Int32("partition", msg.Msg.Partition).
						Msg("Kafka producer error")
				}
			}
		}
	})
	return nil
}

// healthcheck reports a warning when the producer failed to deliver a
// message during the last minute.
func (c *Component) healthcheck(context.Context) reporter.HealthcheckResult {
	if last := c.lastError.Load(); last != 0 && time.Since(time.Unix(0, last)) < time.Minute {
		return reporter.HealthcheckResult{
			Status: reporter.HealthcheckWarning,
			Reason: "recent producer errors",
		}
	}
	return reporter.HealthcheckResult{Status: reporter.HealthcheckOK, Reason: "ok"}
}

// ensureTopic creates or updates the topic, retrying with an
// exponential backoff until it succeeds or the deadline is reached.
func (c *Component) ensureTopic() error {
	l := c.r.With().
		Str("brokers", strings.Join(c.config.Brokers, ",")).
		Str("topic", c.kafkaTopic).
		Logger()
	ctx := c.t.Context(context.Background())
	attempt := func() error {
		err := c.createOrUpdateTopic(l)
		if err != nil {
			c.metrics.topicErrors.Inc()
			l.Warn().Err(err).Msg("cannot setup topic, retrying")
		}
		return err
	}
	if err := backoff.Retry(attempt, backoff.WithContext(c.topicBackOff(), ctx)); err != nil {
		l.Err(err).Msg("unable to setup topic")
		return fmt.Errorf("unable to setup topic %q: %w", c.kafkaTopic, err)
	}
	return nil
}

func (c *Component) createOrUpdateTopic(l reporter.Logger) error {
	client, err := c.createClusterAdmin()
	if err != nil {
		return fmt.Errorf("unable to get admin client: %w", err)
	}
	defer client.Close()

	config := c.config.TopicConfiguration
	topics, err := client.ListTopics()
	if err != nil {
		return fmt.Errorf("unable to get metadata for topics: %w", err)
	}
	topic, ok := topics[c.kafkaTopic]
	if !ok {
		if err := client.CreateTopic(c.kafkaTopic,
			&sarama.TopicDetail{
				NumPartitions:     config.NumPartitions,
				ReplicationFactor: config.ReplicationFactor,
				ConfigEntries:     config.ConfigEntries,
			}, false); err != nil {
			return fmt.Errorf("unable to create topic: %w", err)
		}
		l.Info().Msg("topic created")
		return nil
	}
	if topic.NumPartitions != config.NumPartitions {
		l.Warn().Msgf("mismatch for number of partitions: got %d, want %d",
			topic.NumPartitions, config.NumPartitions)
	}
	if topic.ReplicationFactor != config.ReplicationFactor {
		l.Warn().Msgf("mismatch for replication factor: got %d, want %d",
			topic.ReplicationFactor, config.ReplicationFactor)
	}
	if err := client.AlterConfig(sarama.TopicResource, c.kafkaTopic, config.ConfigEntries, false); err != nil {
		return fmt.Errorf("unable to set topic configuration: %w", err)
	}
	l.Info().Msg("topic updated")
	return nil
}

// Stop stops the Kafka component
func (c *Component) Stop() error {
	defer globalKafkaLogger.r.Store(nil)
	c.r.Info().Msg("stopping Kafka component")
	defer c.r.Info().Msg("Kafka component stopped")
	c.t.Kill(nil)
	return c.t.Wait()
}

// Send a document to Kafka. The exporter is used as a key.
func (c *Component) Send(exporter string, payload []byte) {
	c.metrics.bytesSent.WithLabelValues(exporter).Add(float64(len(payload)))
	c.metrics.messagesSent.WithLabelValues(exporter).Inc()
	msg := &sarama.ProducerMessage{
		Topic: c.kafkaTopic,
		Key:   sarama.StringEncoder(exporter),
		Value: sarama.ByteEncoder(payload),
	}
	select {
	case <-c.t.Dying():
		c.metrics.dropped.Inc()
	case c.kafkaProducer.Input() <- msg:
	}
}
