// Package events publishes domain events emitted after a todo is stored.
// Publishers share one JSON envelope and differ only in transport: an
// in-process channel, Redis pub/sub, or a RabbitMQ queue.
package events
