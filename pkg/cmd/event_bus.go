// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/channels/gochannel"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/channels/kafka"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

const serviceName = "jana"

var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// NewEventBus creates the event bus for provider. An empty provider disables publishing
// and returns a nil bus.
func NewEventBus(provider string, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "":
		return nil, nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, provider)
	}
}
