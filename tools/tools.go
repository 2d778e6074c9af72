//go:build tools

// Package tools documents development tool dependencies.
// They are installed with `go install` and are not tracked in go.mod.
package tools

// Development tools (install via `go install`):
//
// mockgen - regenerates internal/mocks from the engine interfaces
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Version: v0.6.0, matching go.uber.org/mock in go.mod
//   Usage: go generate ./internal/mocks
//
// redis-cli - seeding keys by hand before a dry run of bulk-actions-admin delete
//   Ships with the Redis server packages; any 6.0+ release supports SCAN ... TYPE.
