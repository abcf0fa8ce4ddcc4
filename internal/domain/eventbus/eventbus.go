package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

var (
	instance evbus.Bus
	once     sync.Once
)

// Get returns the process-wide event bus.
func Get() evbus.Bus {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates a standalone bus (tests use this to avoid shared state).
func New() evbus.Bus {
	return evbus.New()
}

func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

func Subscribe(topic string, fn interface{}) error {
	return Get().Subscribe(topic, fn)
}

func Unsubscribe(topic string, fn interface{}) error {
	return Get().Unsubscribe(topic, fn)
}
