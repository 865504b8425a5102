// Package storage is the durable subscriber store behind the in-memory
// registry. It is a downstream replica: the registry mutates first, the
// store is synchronized after, and a store failure never affects the
// registry. Two drivers are provided (postgres for deployments, sqlite for
// single-host setups); an empty driver disables persistence entirely.
package storage
