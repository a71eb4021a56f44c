// Package mocks provides gomock-generated mocks for the core repository
// interfaces.
//
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/agentrun-io/agentrun/internal/core JobRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=schedule_repository_mock.go github.com/agentrun-io/agentrun/internal/core ScheduleRepository
