package handler

import (
	"context"

	"github.com/cuongbtq/chat-transcoder/internal/api/model"
	"github.com/cuongbtq/chat-transcoder/internal/api/storage"
	"github.com/cuongbtq/chat-transcoder/internal/worker"
	"github.com/stretchr/testify/mock"
)

// MockJobReader mocks JobReader
type MockJobReader struct {
	mock.Mock
}

func (m *MockJobReader) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) != nil {
		return args.Get(0).(*model.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJobReader) ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) != nil {
		return args.Get(0).([]model.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

// stubQueue returns a fixed snapshot
type stubQueue struct {
	snap worker.Snapshot
}

func (s stubQueue) Status() worker.Snapshot {
	return s.snap
}
