package models

const (
	// MaxRetries bounds replay attempts: an action failing this many sync
	// cycles is evicted from the queue.
	MaxRetries = 5

	// DefaultQueueKey is the storage key holding the serialized queue.
	DefaultQueueKey = "uptend:offline_queue"

	// DefaultTokenKey is the storage key holding the bearer auth token.
	DefaultTokenKey = "uptend:auth_token"

	// DefaultDeadLetterKey is the redis list receiving evicted actions.
	DefaultDeadLetterKey = "uptend:deadletter"

	// ReconnectInitialDelayMS is the socket backoff floor.
	ReconnectInitialDelayMS = 1000

	// ReconnectMaxDelayMS is the socket backoff ceiling.
	ReconnectMaxDelayMS = 30000

	// TrackingRole is the fixed role query parameter on the stream URL.
	TrackingRole = "customer"
)
