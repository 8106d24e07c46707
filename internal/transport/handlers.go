// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/mwlogger"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/wb-go/wbf/ginext"
)

const paramPrefix = "param_"

type TaskHandler struct {
	service TaskService
}

type TaskService interface {
	RemoveNow(ctx context.Context, data *model.RemovalData) (*provider.Response[provider.BackgroundRemovalResult], error) // синхронный вызов провайдера
	Create(ctx context.Context, data *model.RemovalData) (*model.Task, error)
	Get(ctx context.Context, id string) (*model.Task, error)
	Delete(ctx context.Context, id string) error                               // удалить как в базе, так и в minio
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error)  // прям скачать результат
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error) // получить список
}

func NewTaskHandler(svc TaskService) *TaskHandler {
	return &TaskHandler{
		service: svc,
	}
}

func (h TaskHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// RemoveNow answers with the provider response right away.
func (h TaskHandler) RemoveNow(ctx *ginext.Context) {
	data, cleanup, err := parseRemovalForm(ctx)
	if err != nil {
		ctx.JSON(400, map[string]string{"error": err.Error()})
		return
	}
	defer cleanup()

	res, err := h.service.RemoveNow(ctx.Request.Context(), data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

// Create queues an asynchronous task.
func (h TaskHandler) Create(ctx *ginext.Context) {
	data, cleanup, err := parseRemovalForm(ctx)
	if err != nil {
		ctx.JSON(400, map[string]string{"error": err.Error()})
		return
	}
	defer cleanup()

	res, err := h.service.Create(ctx.Request.Context(), data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h TaskHandler) GetAllTasks(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h TaskHandler) GetInfo(ctx *ginext.Context) {
	res, err := h.service.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h TaskHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(ctx.Request.Context(), res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).Int64("written", n).Str("task_id", id).Msg("Failed to write result image")
	}
}

func (h TaskHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

// parseRemovalForm reads image/image_url, provider, width/height and param_* fields.
func parseRemovalForm(ctx *ginext.Context) (*model.RemovalData, func(), error) {
	cleanup := func() {}
	data := &model.RemovalData{
		Provider: strings.TrimSpace(ctx.PostForm("provider")),
		ImageURL: strings.TrimSpace(ctx.PostForm("image_url")),
		Params:   map[string]any{},
	}

	var err error
	if data.Width, err = optionalInt(ctx.PostForm("width")); err != nil {
		return nil, cleanup, model.ErrIncorrectSize
	}
	if data.Height, err = optionalInt(ctx.PostForm("height")); err != nil {
		return nil, cleanup, model.ErrIncorrectSize
	}

	// парсинг исходника - опционален, если есть image_url
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err == nil {
		data.Image = imageFile
		data.ContentType = imageHeader.Header.Get("Content-Type")
		data.ImageSize = imageHeader.Size
		cleanup = func() { closeFileFlow(ctx.Request.Context(), imageFile) }
	}

	// параметры провайдера передаются как param_<name>
	if form := ctx.Request.PostForm; form != nil {
		for k, v := range form {
			if name, ok := strings.CutPrefix(k, paramPrefix); ok && name != "" && len(v) > 0 {
				data.Params[name] = v[0]
			}
		}
	}

	return data, cleanup, nil
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
