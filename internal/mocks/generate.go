// Package mocks provides mock implementations for testing the bulk action engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the engine's
// collaborator interfaces. To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	runner := mocks.NewMockRunner(ctrl)
//	runner.EXPECT().PrepareToStart(gomock.Any()).Return(nil)
package mocks

// Generate mocks for the engine collaborators from internal/domain/bulk.
// This creates MockClient, MockRunner, MockChannel and MockAnalytics.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=bulk_mock.go github.com/target/redis-bulk-actions/internal/domain/bulk Client,Runner,Channel,Analytics
