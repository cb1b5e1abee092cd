// Package redisstore keeps todos in a Redis list. Each entry is a JSON
// document appended with RPUSH, so LRANGE returns todos in insertion order.
// A marker key guards the one-time seed so restarts never duplicate it.
package redisstore
