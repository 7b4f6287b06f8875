package eventBus

import (
	"github.com/propshare-labs/distributor/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

type EventBus struct {
	consumers *eventBusTypes.ConsumerList
	logger    *zap.Logger
}

func NewEventBus(l *zap.Logger) *EventBus {
	return &EventBus{
		consumers: eventBusTypes.NewConsumerList(),
		logger:    l,
	}
}

func (eb *EventBus) Subscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Add(consumer)
}

func (eb *EventBus) Unsubscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Remove(consumer)
	eb.logger.Sugar().Debugw("Unsubscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

func (eb *EventBus) Publish(event *eventBusTypes.Event) {
	eb.logger.Sugar().Debugw("Publishing event", zap.String("eventName", event.Name))
	for _, consumer := range eb.consumers.GetAll() {
		if consumer.Channel == nil {
			eb.logger.Sugar().Debugw("Consumer channel is nil", zap.String("consumerId", string(consumer.Id)))
			continue
		}
		select {
		case consumer.Channel <- event:
		default:
			eb.logger.Sugar().Debugw("No receiver available, or channel is full",
				zap.String("consumerId", string(consumer.Id)),
				zap.String("eventName", event.Name),
			)
		}
	}
}
