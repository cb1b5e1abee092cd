// Package todo holds the todo domain model, the Store capability shared by
// every backend, the in-memory store and the service that turns store results
// into API envelopes.
package todo
