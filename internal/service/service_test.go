package service

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func registryWith(t *testing.T, removers ...provider.BackgroundRemover) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for _, r := range removers {
		require.NoError(t, reg.Register(r))
	}
	return reg
}

func okRemover(t *testing.T) *mockRemover {
	return &mockRemover{
		name: "picsart",
		removeFn: func(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
			return &provider.Response[provider.BackgroundRemovalResult]{
				OriginalResponse: `{"data":{"url":"http://img/1.png"}}`,
				StandardizedResponse: provider.BackgroundRemovalResult{
					ImageB64:         "aW1n",
					ImageResourceURL: "http://img/1.png",
				},
			}, nil
		},
	}
}

func validCreateData() *model.RemovalData {
	return &model.RemovalData{
		Image:       newFakeFile("img"),
		ImageSize:   3,
		ContentType: model.PNG,
	}
}

// REMOVENOW - FILE IS SPOOLED AND REMOVED AFTERWARDS
func TestTaskService_RemoveNow_File(t *testing.T) {
	var spooled string
	remover := okRemover(t)
	inner := remover.removeFn
	remover.removeFn = func(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
		src, ok := req.Source.(provider.FileSource)
		require.True(t, ok)
		data, err := os.ReadFile(src.Path)
		require.NoError(t, err)
		require.Equal(t, "img", string(data))
		require.Equal(t, "cutout", req.Params["output_type"])
		spooled = src.Path
		return inner(ctx, req)
	}

	svc := TaskService{providers: registryWith(t, remover), defaultProvider: "picsart"}

	data := validCreateData()
	data.Params = map[string]any{"output_type": "cutout"}

	res, err := svc.RemoveNow(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "http://img/1.png", res.StandardizedResponse.ImageResourceURL)

	_, err = os.Stat(spooled)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// REMOVENOW - URL
func TestTaskService_RemoveNow_URL(t *testing.T) {
	remover := okRemover(t)
	inner := remover.removeFn
	remover.removeFn = func(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
		require.Equal(t, provider.URLSource{URL: "https://example.com/cat.jpg"}, req.Source)
		return inner(ctx, req)
	}
	svc := TaskService{providers: registryWith(t, remover), defaultProvider: "picsart"}

	_, err := svc.RemoveNow(context.Background(), &model.RemovalData{ImageURL: "https://example.com/cat.jpg"})
	require.NoError(t, err)
}

// REMOVENOW - BOTH OR NEITHER SOURCE
func TestTaskService_RemoveNow_SourceConflict(t *testing.T) {
	called := false
	remover := &mockRemover{
		name: "picsart",
		removeFn: func(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
			called = true
			return nil, nil
		},
	}
	svc := TaskService{providers: registryWith(t, remover), defaultProvider: "picsart"}

	both := validCreateData()
	both.ImageURL = "https://example.com/cat.jpg"

	for _, data := range []*model.RemovalData{{}, both} {
		_, err := svc.RemoveNow(context.Background(), data)
		require.ErrorIs(t, err, model.ErrSourceConflict)
	}
	require.False(t, called)
}

// REMOVENOW - PROVIDER ERRORS ARE CLASSIFIED
func TestTaskService_RemoveNow_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "rejected", err: &provider.ProviderError{Message: "bad request", Code: 400}, wantErr: model.ErrProviderRejected},
		{name: "transport", err: &provider.TransportError{Op: "removebg request", Err: errors.New("refused")}, wantErr: model.ErrProviderDown},
		{name: "malformed", err: provider.ErrMalformedResponse, wantErr: model.ErrProviderDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remover := &mockRemover{
				name: "picsart",
				removeFn: func(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
					return nil, tt.err
				},
			}
			svc := TaskService{providers: registryWith(t, remover), defaultProvider: "picsart"}

			_, err := svc.RemoveNow(context.Background(), &model.RemovalData{ImageURL: "https://example.com/cat.jpg"})
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

// REMOVENOW - UNKNOWN PROVIDER
func TestTaskService_RemoveNow_UnknownProvider(t *testing.T) {
	svc := TaskService{providers: registryWith(t), defaultProvider: "picsart"}

	_, err := svc.RemoveNow(context.Background(), &model.RemovalData{ImageURL: "https://example.com/cat.jpg", Provider: "nope"})
	require.ErrorIs(t, err, model.ErrUnknownProvider)
}

// CREATE - SUCCESS
func TestTaskService_Create_OK(t *testing.T) {
	ctx := context.Background()

	repo := &mockRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			require.NotEmpty(t, task.UID)
			require.Equal(t, model.StatusCreated, task.Status)
			require.Equal(t, "picsart", task.Provider)
			require.Equal(t, "src/"+task.UID.String()+".png", task.SourceKey)
			return nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Equal(t, model.PNG, ct)
			return nil
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NotEmpty(t, key)
			return nil
		},
	}

	svc := TaskService{
		repo:            repo,
		storage:         storage,
		publisher:       pub,
		providers:       registryWith(t, okRemover(t)),
		defaultProvider: "picsart",
		srcKeyPrefix:    "src/",
	}

	w := 100
	data := validCreateData()
	data.Width = &w

	task, err := svc.Create(ctx, data)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, 100, *task.Width)
}

// CREATE - URL TASK SKIPS STORAGE
func TestTaskService_Create_URL(t *testing.T) {
	svc := TaskService{
		repo: &mockRepo{createFn: func(ctx context.Context, task *model.Task) error {
			require.Empty(t, task.SourceKey)
			require.Equal(t, "https://example.com/cat.jpg", task.SourceURL)
			return nil
		}},
		storage: &mockStorage{},
		publisher: &mockPublisher{sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			return nil
		}},
		providers:       registryWith(t, okRemover(t)),
		defaultProvider: "picsart",
	}

	_, err := svc.Create(context.Background(), &model.RemovalData{ImageURL: "https://example.com/cat.jpg"})
	require.NoError(t, err)
}

// CREATE - VALIDATION FAIL
func TestTaskService_Create_InvalidInput(t *testing.T) {
	svc := TaskService{providers: registryWith(t, okRemover(t)), defaultProvider: "picsart"}

	_, err := svc.Create(context.Background(), &model.RemovalData{})
	require.ErrorIs(t, err, model.ErrSourceConflict)

	bad := validCreateData()
	bad.ContentType = "image/bmp"
	_, err = svc.Create(context.Background(), bad)
	require.ErrorIs(t, err, model.ErrEmptySource)

	zero := 0
	sized := validCreateData()
	sized.Width, sized.Height = &zero, &zero
	_, err = svc.Create(context.Background(), sized)
	require.ErrorIs(t, err, model.ErrIncorrectSize)

	negative := -5
	negSized := validCreateData()
	negSized.Width = &negative
	_, err = svc.Create(context.Background(), negSized)
	require.ErrorIs(t, err, model.ErrIncorrectSize)

	_, err = svc.Create(context.Background(), &model.RemovalData{ImageURL: "ftp://example.com/cat.jpg"})
	require.ErrorIs(t, err, model.ErrEmptySource)

	_, err = svc.Create(context.Background(), &model.RemovalData{ImageURL: "cat.jpg"})
	require.ErrorIs(t, err, model.ErrEmptySource)
}

// CREATE - STORAGE PUT FAIL
func TestTaskService_Create_StorageError(t *testing.T) {
	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}

	svc := TaskService{
		repo:            &mockRepo{},
		storage:         storage,
		providers:       registryWith(t, okRemover(t)),
		defaultProvider: "picsart",
		srcKeyPrefix:    "src/",
	}

	_, err := svc.Create(context.Background(), validCreateData())
	require.ErrorIs(t, err, model.ErrCommon500)
}

// GETLIST - SUCCESS
func TestTaskService_GetList_OK(t *testing.T) {
	repo := &mockRepo{
		getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Task, error) {
			require.Equal(t, 1, req.Page)
			require.Equal(t, 30, req.Limit)
			require.Equal(t, "created_at", req.Sort)
			require.Equal(t, "DESC", req.Order)
			return []model.Task{{UID: uuid.New()}}, nil
		},
	}

	svc := TaskService{repo: repo}

	res, err := svc.GetList(context.Background(), &model.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func TestValidateQueryParams(t *testing.T) {
	req := &model.ListRequest{Page: 2, Limit: 500, Sort: " UID ", Order: "Ascend"}
	validateQueryParams(req)
	require.Equal(t, model.ListRequest{Page: 2, Limit: 30, Sort: "task_uid", Order: "ASC"}, *req)

	req = &model.ListRequest{Sort: "created_at; DROP TABLE tasks", Order: "sideways"}
	validateQueryParams(req)
	require.Equal(t, "created_at", req.Sort)
	require.Equal(t, "DESC", req.Order)
}

// GET - SUCCESS
func TestTaskService_Get_OK(t *testing.T) {
	id := uuid.New().String()

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Task, error) {
			return &model.Task{UID: uuid.MustParse(uid)}, nil
		},
	}

	svc := TaskService{repo: repo}

	task, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, task.UID.String())
}

// GET - FAIL
func TestTaskService_Get_InvalidID(t *testing.T) {
	svc := TaskService{}
	_, err := svc.Get(context.Background(), "bad-id")
	require.ErrorIs(t, err, model.ErrIncorrectID)
}

// LOADRESULT - FAIL
func TestTaskService_LoadResult_NotReady(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Task, error) {
			return &model.Task{Status: model.StatusCreated}, nil
		},
	}

	svc := TaskService{repo: repo}

	_, _, err := svc.LoadResult(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrResultNotReady)
}

// DELETE - FAIL - NOT FOUND
func TestTaskService_Delete_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Task, error) {
			return nil, model.ErrTaskNotFound
		},
	}

	svc := TaskService{repo: repo}

	err := svc.Delete(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrTaskNotFound)
}

// DELETE - SUCCESS - REMOVES STORED OBJECTS
func TestTaskService_Delete_OK(t *testing.T) {
	var deleted []string
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Task, error) {
			return &model.Task{SourceKey: "src/a.png", ResultKey: "res/a.png", Status: model.StatusDone}, nil
		},
		deleteFn: func(ctx context.Context, id string) error { return nil },
	}
	storage := &mockStorage{
		deleteFn: func(ctx context.Context, key string) error {
			deleted = append(deleted, key)
			return nil
		},
	}

	svc := TaskService{repo: repo, storage: storage}

	require.NoError(t, svc.Delete(context.Background(), uuid.New().String()))
	require.Equal(t, []string{"src/a.png", "res/a.png"}, deleted)
}

// UPDATESTATUS - BAD STATUS
func TestTaskService_UpdateStatus_Invalid(t *testing.T) {
	svc := TaskService{}
	err := svc.UpdateStatus(context.Background(), uuid.New().String(), "weird")
	require.ErrorIs(t, err, model.ErrIncorrectStatus)
}

// MARKFAILED - DB ERROR
func TestTaskService_MarkFailed_DBError(t *testing.T) {
	repo := &mockRepo{
		markFailedFn: func(ctx context.Context, id string, reason string) error {
			require.Equal(t, "provider error 400: bad request", reason)
			return errors.New("db down")
		},
	}
	svc := TaskService{repo: repo}

	err := svc.MarkFailed(context.Background(), "id", &provider.ProviderError{Message: "bad request", Code: 400})
	require.ErrorIs(t, err, model.ErrCommon500)
}

// REVIVEORPHANS - REPUBLISHES ALL
func TestTaskService_ReviveOrphans(t *testing.T) {
	var sent []string
	svc := TaskService{
		repo: &mockRepo{fetchOrphansFn: func(ctx context.Context, limit int) ([]string, error) {
			require.Equal(t, 20, limit)
			return []string{"a", "b"}, nil
		}},
		publisher: &mockPublisher{sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			sent = append(sent, string(key))
			return nil
		}},
	}

	svc.ReviveOrphans(context.Background(), 20)
	require.Equal(t, []string{"a", "b"}, sent)
}

func TestSpoolToTemp(t *testing.T) {
	path, cleanup, err := SpoolToTemp(newFakeFile("hello"), ".png")
	require.NoError(t, err)
	require.FileExists(t, path)

	cleanup()
	require.NoFileExists(t, path)

	_, _, err = SpoolToTemp(nil, ".png")
	require.Error(t, err)
}
