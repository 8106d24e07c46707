package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/provider"
)

type mockTaskService struct {
	removeNowFn  func(ctx context.Context, d *model.RemovalData) (*provider.Response[provider.BackgroundRemovalResult], error)
	createFn     func(ctx context.Context, d *model.RemovalData) (*model.Task, error)
	getFn        func(ctx context.Context, id string) (*model.Task, error)
	deleteFn     func(ctx context.Context, id string) error
	loadResultFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
	getListFn    func(ctx context.Context, req *model.ListRequest) ([]model.Task, error)
}

func (m *mockTaskService) RemoveNow(ctx context.Context, d *model.RemovalData) (*provider.Response[provider.BackgroundRemovalResult], error) {
	return m.removeNowFn(ctx, d)
}

func (m *mockTaskService) Create(ctx context.Context, d *model.RemovalData) (*model.Task, error) {
	return m.createFn(ctx, d)
}

func (m *mockTaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	return m.getFn(ctx, id)
}

func (m *mockTaskService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockTaskService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockTaskService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error) {
	return m.getListFn(ctx, req)
}
