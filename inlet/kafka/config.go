// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package kafka

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"sflowhdr/common/helpers"
)

// Configuration describes the configuration for the Kafka exporter.
type Configuration struct {
	// Topic defines the topic to write flows to. The document version
	// is appended.
	Topic string `validate:"required"`
	// Brokers is the list of brokers to connect to.
	Brokers []string `validate:"min=1,dive,listen"`
	// Version is the version of Kafka we assume to work
	Version Version
	// TLS defines TLS configuration
	TLS helpers.TLSConfiguration
	// SASL defines SASL configuration
	SASL SASLConfiguration
	// FlushInterval tells how often to flush pending data to Kafka.
	FlushInterval time.Duration `validate:"min=100ms"`
	// FlushBytes tells to flush when there are many bytes to write
	FlushBytes int `validate:"min=1000"`
	// MaxMessageBytes is the maximum permitted size of a message.
	// Should be set equal or smaller than broker's
	// `message.max.bytes`.
	MaxMessageBytes int `validate:"min=1"`
	// CompressionCodec defines the compression to use.
	CompressionCodec CompressionCodec
	// QueueSize defines the size of the channel used to send to Kafka.
	QueueSize int `validate:"min=1"`
	// TopicConfiguration describes how to create the topic. When nil,
	// the topic is expected to exist.
	TopicConfiguration *TopicConfiguration
}

// TopicConfiguration describes the configuration for a topic
type TopicConfiguration struct {
	// NumPartitions tells how many partitions should be used for the topic.
	NumPartitions int32 `validate:"min=1"`
	// ReplicationFactor tells the replication factor for the topic.
	ReplicationFactor int16 `validate:"min=1"`
	// ConfigEntries is a map to specify the topic overrides. Non-listed overrides will be removed
	ConfigEntries map[string]*string
	// Timeout is the maximum time spent retrying topic creation.
	Timeout time.Duration `validate:"min=0"`
}

// SASLConfiguration defines SASL configuration.
type SASLConfiguration struct {
	// Username tells the SASL username
	Username string `validate:"required_with=Mechanism"`
	// Password tells the SASL password
	Password string `validate:"required_with=Mechanism"`
	// Mechanism tells the SASL algorithm
	Mechanism SASLMechanism `validate:"required_with=Username"`
}

// DefaultConfiguration represents the default configuration for the Kafka exporter.
func DefaultConfiguration() Configuration {
	return Configuration{
		Topic:            "flows",
		Brokers:          []string{"127.0.0.1:9092"},
		Version:          Version(sarama.V2_8_1_0),
		FlushInterval:    time.Second,
		FlushBytes:       int(sarama.MaxRequestSize) - 1,
		MaxMessageBytes:  1000000,
		CompressionCodec: CompressionCodec(sarama.CompressionNone),
		QueueSize:        32,
	}
}

// Version represents a supported version of Kafka
type Version sarama.KafkaVersion

// UnmarshalText parses a version of Kafka
func (v *Version) UnmarshalText(text []byte) error {
	version, err := sarama.ParseKafkaVersion(string(text))
	if err != nil {
		return err
	}
	*v = Version(version)
	return nil
}

// String turns a Kafka version into a string
func (v Version) String() string {
	return sarama.KafkaVersion(v).String()
}

// MarshalText turns a Kafka version into a string
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// CompressionCodec represents a compression codec.
type CompressionCodec sarama.CompressionCodec

var compressionCodecs = map[string]sarama.CompressionCodec{
	"none":   sarama.CompressionNone,
	"gzip":   sarama.CompressionGZIP,
	"snappy": sarama.CompressionSnappy,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

// UnmarshalText produces a compression codec
func (c *CompressionCodec) UnmarshalText(text []byte) error {
	codec, ok := compressionCodecs[strings.ToLower(string(text))]
	if !ok {
		return fmt.Errorf("cannot parse %q as a compression codec", string(text))
	}
	*c = CompressionCodec(codec)
	return nil
}

// String turns a compression codec into a string
func (c CompressionCodec) String() string {
	for name, codec := range compressionCodecs {
		if codec == sarama.CompressionCodec(c) {
			return name
		}
	}
	return fmt.Sprintf("CompressionCodec(%d)", int8(c))
}

// MarshalText turns a compression codec into a string
func (c CompressionCodec) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// SASLMechanism defines an SASL algorithm
type SASLMechanism int

const (
	// SASLNone means no user authentication
	SASLNone SASLMechanism = iota
	// SASLPlain means user/password in plain text
	SASLPlain
	// SASLScramSHA256 enables SCRAM challenge with SHA256
	SASLScramSHA256
	// SASLScramSHA512 enables SCRAM challenge with SHA512
	SASLScramSHA512
)

var saslMechanismNames = map[SASLMechanism]string{
	SASLNone:        "none",
	SASLPlain:       "plain",
	SASLScramSHA256: "scram-sha256",
	SASLScramSHA512: "scram-sha512",
}

// String turns a SASL mechanism into a string
func (m SASLMechanism) String() string {
	if name, ok := saslMechanismNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SASLMechanism(%d)", int(m))
}

// MarshalText turns a SASL mechanism into a string
func (m SASLMechanism) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a SASL mechanism
func (m *SASLMechanism) UnmarshalText(text []byte) error {
	for mechanism, name := range saslMechanismNames {
		if strings.EqualFold(name, string(text)) {
			*m = mechanism
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as a SASL mechanism", string(text))
}

// newSaramaConfig returns a Sarama configuration for the provided
// configuration.
func newSaramaConfig(config Configuration) (*sarama.Config, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = sarama.KafkaVersion(config.Version)
	kafkaConfig.ClientID = fmt.Sprintf("sflowhdr-%s", helpers.Version)
	kafkaConfig.Metadata.AllowAutoTopicCreation = false
	kafkaConfig.ChannelBufferSize = config.QueueSize
	kafkaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes
	kafkaConfig.Producer.Compression = sarama.CompressionCodec(config.CompressionCodec)
	kafkaConfig.Producer.Return.Successes = false
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Flush.Bytes = config.FlushBytes
	kafkaConfig.Producer.Flush.Frequency = config.FlushInterval
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	tlsConfig, err := config.TLS.MakeTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		kafkaConfig.Net.TLS.Enable = true
		kafkaConfig.Net.TLS.Config = tlsConfig
	}
	if config.SASL.Mechanism != SASLNone {
		kafkaConfig.Net.SASL.Enable = true
		kafkaConfig.Net.SASL.User = config.SASL.Username
		kafkaConfig.Net.SASL.Password = config.SASL.Password
		switch config.SASL.Mechanism {
		case SASLPlain:
			kafkaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case SASLScramSHA256:
			kafkaConfig.Net.SASL.Handshake = true
			kafkaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			kafkaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: sha256.New}
			}
		case SASLScramSHA512:
			kafkaConfig.Net.SASL.Handshake = true
			kafkaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			kafkaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: sha512.New}
			}
		default:
			return nil, fmt.Errorf("unknown SASL mechanism: %s", config.SASL.Mechanism)
		}
	}
	if err := kafkaConfig.Validate(); err != nil {
		return nil, fmt.Errorf("cannot validate Kafka configuration: %w", err)
	}
	return kafkaConfig, nil
}
