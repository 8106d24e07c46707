// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/mwlogger"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/UnendingLoop/BGRemover/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

type TaskService struct {
	repo            repository.TaskRepo
	publisher       TaskPublisher
	storage         ImageStorage
	providers       RemoverRegistry
	defaultProvider string
	srcKeyPrefix    string
}

func NewTaskService(cfg *config.Config, repo repository.TaskRepo, pub TaskPublisher, strg ImageStorage, providers RemoverRegistry) *TaskService {
	defProvider := cfg.GetString("DEFAULT_PROVIDER")
	if defProvider == "" {
		defProvider = "picsart"
	}
	return &TaskService{
		repo:            repo,
		publisher:       pub,
		storage:         strg,
		providers:       providers,
		defaultProvider: defProvider,
		srcKeyPrefix:    cfg.GetString("SOURCE_KEY"),
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// RemoverRegistry - контракт реестра провайдеров
type RemoverRegistry interface {
	BackgroundRemover(name string) (provider.BackgroundRemover, error)
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// RemoveNow calls the provider synchronously and returns its response as is.
func (c TaskService) RemoveNow(ctx context.Context, data *model.RemovalData) (*provider.Response[provider.BackgroundRemovalResult], error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateSource(data); err != nil {
		return nil, err
	}

	remover, err := c.remover(data.Provider)
	if err != nil {
		return nil, err
	}

	req := &provider.BackgroundRemovalRequest{Params: data.Params}
	if data.ImageURL != "" {
		req.Source = provider.URLSource{URL: data.ImageURL}
	} else {
		// провайдер принимает путь к файлу - выгружаем аплоад во временный файл
		path, cleanup, err := SpoolToTemp(data.Image, model.GetImageFileExt[data.ContentType])
		if err != nil {
			logger.Error().Err(err).Msg("Failed to spool uploaded image to temp file")
			return nil, model.ErrCommon500
		}
		defer cleanup()
		req.Source = provider.FileSource{Path: path}
	}

	res, err := remover.RemoveBackground(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Str("provider", remover.Name()).Msg("Background removal failed")
		return nil, classifyProviderErr(err)
	}
	return res, nil
}

func (c TaskService) Create(ctx context.Context, data *model.RemovalData) (*model.Task, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	newTask, err := c.validateNormalizeTask(data)
	if err != nil {
		return nil, err
	}

	newTask.UID = uuid.New()

	// кладем в хранилище сорсник, если пришел файл
	if data.Image != nil {
		newTask.SourceKey = c.srcKeyPrefix + newTask.UID.String() + model.GetImageFileExt[data.ContentType]
		if err := c.storage.Put(ctx, newTask.SourceKey, data.ImageSize, data.ContentType, data.Image); err != nil {
			logger.Error().Err(err).Msg("Failed to save src-image in Storage")
			return nil, model.ErrCommon500
		}
	}

	// ставим статус и таймстамп
	newTask.Status = model.StatusCreated
	now := time.Now().UTC()
	newTask.CreatedAt = &now

	// шлем в базу
	if err := c.repo.Create(ctx, newTask); err != nil {
		logger.Error().Err(err).Msg("Failed to create task in DB")
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач(в кафку)
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(newTask.UID.String()), nil); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish task %q to task-queue", newTask.UID))
		return nil, model.ErrCommon500
	}
	return newTask, nil
}

func (c TaskService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch tasks list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return nil, model.ErrTaskNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch task %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c TaskService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if res.Status != model.StatusDone {
		return nil, "", model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-image %q from Storage", id))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

func (c TaskService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	// читаем из базы
	res, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return model.ErrTaskNotFound
		}
		logger.Error().Err(err).Msg("Failed to delete task from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища сорсник и результат(если они есть)
	if res.SourceKey != "" {
		if err := c.storage.Delete(ctx, res.SourceKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete src-image from Storage")
			return model.ErrCommon500
		}
	}
	if res.ResultKey != "" {
		if err := c.storage.Delete(ctx, res.ResultKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete result-image from Storage")
			return model.ErrCommon500
		}
	}

	return nil
}

func (c TaskService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrIncorrectStatus
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return model.ErrTaskNotFound // 404
		}
		logger.Error().Err(err).Msg("Failed to update task status in DB")
		return model.ErrCommon500 // 500
	}

	return nil
}

func (c TaskService) SaveResult(ctx context.Context, input *model.Task) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := time.Now().UTC()
	input.UpdatedAt = &t
	if err := c.repo.SaveResult(ctx, input); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return model.ErrTaskNotFound // 404
		}
		logger.Error().Err(err).Msg("Failed to save result in DB")
		return model.ErrCommon500 // 500
	}

	return nil
}

func (c TaskService) MarkFailed(ctx context.Context, id string, reason error) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := c.repo.MarkFailed(ctx, id, reason.Error()); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return model.ErrTaskNotFound
		}
		logger.Error().Err(err).Msg("Failed to mark task as failed in DB")
		return model.ErrCommon500
	}
	return nil
}

func (c TaskService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Msg("Failed to publish orphan to queue")
		}
	}
	if len(orphans) > 0 {
		logger.Info().Int("count", len(orphans)).Msg("Orphan tasks republished")
	}
}

func (c TaskService) remover(name string) (provider.BackgroundRemover, error) {
	if name == "" {
		name = c.defaultProvider
	}
	r, err := c.providers.BackgroundRemover(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnknownProvider, err)
	}
	return r, nil
}
