// Package redis exposes a Redis keyspace as a plugin over a caller-owned
// redis.UniversalClient, so single nodes, sentinels and clusters all work.
package redis
