// Package api exposes the todo service over HTTP: a read-only REST listing,
// the GraphQL endpoint, a health probe and Prometheus metrics. Middleware
// assigns request ids, records metrics and writes access logs.
package api
