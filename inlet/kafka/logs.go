// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package kafka

import (
	"fmt"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"sflowhdr/common/helpers"
	"sflowhdr/common/reporter"
)

func init() {
	// The logger in Sarama is global. Do the same.
	sarama.Logger = &globalKafkaLogger
}

var globalKafkaLogger kafkaLogger

type kafkaLogger struct {
	r atomic.Pointer[reporter.Reporter]
}

// debug logs Sarama messages. They are only useful for debugging,
// except when running tests where they are logged at info level.
func (l *kafkaLogger) debug(msg func() string) {
	r := l.r.Load()
	if r == nil {
		return
	}
	level := zerolog.DebugLevel
	if helpers.Testing() {
		level = zerolog.InfoLevel
	}
	if e := r.WithLevel(level); e.Enabled() {
		e.Msg(msg())
	}
}

func (l *kafkaLogger) Print(v ...interface{}) {
	l.debug(func() string { return fmt.Sprint(v...) })
}

func (l *kafkaLogger) Println(v ...interface{}) {
	l.debug(func() string { return fmt.Sprint(v...) })
}

func (l *kafkaLogger) Printf(format string, v ...interface{}) {
	l.debug(func() string { return fmt.Sprintf(format, v...) })
}
