package worker

import (
	"context"
	"io"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	kafkago "github.com/segmentio/kafka-go"
)

type mockWorkerService struct {
	getFn        func(ctx context.Context, id string) (*model.Task, error)
	updateFn     func(ctx context.Context, id string, st model.Status) error
	saveResultFn func(ctx context.Context, t *model.Task) error
	markFailedFn func(ctx context.Context, id string, reason error) error
}

func (m *mockWorkerService) Get(ctx context.Context, id string) (*model.Task, error) {
	return m.getFn(ctx, id)
}

func (m *mockWorkerService) UpdateStatus(ctx context.Context, id string, st model.Status) error {
	return m.updateFn(ctx, id, st)
}

func (m *mockWorkerService) SaveResult(ctx context.Context, t *model.Task) error {
	return m.saveResultFn(ctx, t)
}

func (m *mockWorkerService) MarkFailed(ctx context.Context, id string, reason error) error {
	return m.markFailedFn(ctx, id, reason)
}

//----------------------------------

type mockStorage struct {
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return nil
}

//----------------------------------

type mockRemover struct {
	removeFn func(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error)
}

func (m *mockRemover) Name() string { return "picsart" }

func (m *mockRemover) RemoveBackground(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
	return m.removeFn(ctx, req)
}

type mockRegistry struct {
	remover provider.BackgroundRemover
}

func (m mockRegistry) BackgroundRemover(name string) (provider.BackgroundRemover, error) {
	if m.remover == nil || name != m.remover.Name() {
		return nil, provider.ErrProviderNotFound
	}
	return m.remover, nil
}

//----------------------------------

type mockCommitter struct {
	committed []string
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	m.committed = append(m.committed, string(msg.Key))
	return nil
}
