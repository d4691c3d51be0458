// Package store provides the durable key-value layer shared by every
// execution context. It is the single source of truth for session state;
// in-process timers are only a latency optimization on top of it.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("store: key not found")

// Message represents a message received from a subscription.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription represents an active subscription to a channel.
type Subscription interface {
	// Channel returns the channel for receiving messages.
	Channel() <-chan *Message
	// Close unsubscribes and releases any associated resources.
	Close() error
}

// Store defines the interface for a key-value data store.
// Writes are atomic per key: a write that returns nil is fully readable by
// the next process start, never partially.
type Store interface {
	// Set stores a key-value pair with an optional TTL. A TTL of 0 means no expiry.
	Set(key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by its key. Returns ErrNotFound if the key is absent.
	Get(key string) ([]byte, error)

	// Delete removes a value by its key. Deleting a non-existent key is not an error.
	Delete(key string) error

	// Del removes multiple values by their keys.
	Del(keys ...string) error

	// Exists checks if a key exists.
	Exists(key string) (bool, error)

	// SetNX sets a key-value pair if the key does not already exist.
	// Returns true if the key was set.
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)

	// Keys returns all keys with the given prefix.
	Keys(prefix string) ([]string, error)

	// Publish sends a message to all subscribers of a channel.
	Publish(channel string, message []byte) error

	// Subscribe listens for messages on a given channel.
	Subscribe(channel string) (Subscription, error)

	// Clear removes all data.
	Clear() error

	// Close releases any resources held by the store.
	Close() error
}
