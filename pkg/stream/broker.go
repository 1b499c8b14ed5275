package stream

// Broker moves raw event frames between publishers and subscribers. The
// local implementation fans out in process; the NATS implementation lets
// multiple nodes share streams.
type Broker interface {
	Publish(topic string, data []byte) error
	// Subscribe registers fn for the topic and returns an unsubscribe
	// function. fn must not block for long; slow consumers are dropped.
	Subscribe(topic string, fn func(data []byte)) (func(), error)
	Close() error
}
