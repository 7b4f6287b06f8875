package eventBus

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/pkg/eventBus/eventBusTypes"
	"github.com/stretchr/testify/assert"
)

func Test_EventBus(t *testing.T) {
	debug := os.Getenv(config.Debug) == "true"
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: debug})

	eb := NewEventBus(l)

	consumer := &eventBusTypes.Consumer{
		Id:      "testConsumer",
		Channel: make(chan *eventBusTypes.Event, 1000),
	}

	receivedCount := atomic.Uint64{}
	receivedCount.Store(0)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		for event := range consumer.Channel {
			t.Logf("Received event: %v", event)
			receivedCount.Add(1)

			if receivedCount.Load() == uint64(3) {
				eb.Unsubscribe(consumer)
				wg.Done()
				return
			}
		}
	}()
	eb.Subscribe(consumer)

	for i := 0; i < 10; i++ {
		eb.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_ClaimProcessed,
			Data: "testData",
		})
	}
	wg.Wait()

	assert.Equal(t, uint64(3), receivedCount.Load())
}
