// Package worker consumes background-removal tasks from the queue and runs them through the provider
package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/UnendingLoop/BGRemover/internal/imageproc"
	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/mwlogger"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/UnendingLoop/BGRemover/internal/service"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

type TaskWorkerService interface {
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, res *model.Task) error
	MarkFailed(ctx context.Context, id string, reason error) error
	Get(ctx context.Context, id string) (*model.Task, error)
}

// Committer - подтверждение обработанного сообщения в очереди
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

// FailureHook is called for every task that ends up failed.
type FailureHook func(ctx context.Context, taskID string, err error)

type Worker struct {
	storage      service.ImageStorage
	service      TaskWorkerService
	providers    service.RemoverRegistry
	queue        <-chan kafkago.Message
	consumer     Committer
	resultPrefix string
	onFailure    FailureHook
}

func NewWorkerInstance(strg service.ImageStorage, svc TaskWorkerService, providers service.RemoverRegistry, q <-chan kafkago.Message, cons Committer, resPr string, hook FailureHook) *Worker {
	return &Worker{
		storage:      strg,
		service:      svc,
		providers:    providers,
		queue:        q,
		consumer:     cons,
		resultPrefix: resPr,
		onFailure:    hook,
	}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			taskCtx := mwlogger.WithTask(ctx, id)
			logger := mwlogger.LoggerFromContext(taskCtx)

			if err := w.initProcessor(taskCtx, id); err != nil && !isUnprocessable(err) {
				logger.Error().Err(err).Msg("Task failed")
				// задача уже помечена failed - повторная обработка не поможет, коммитим
				if !errors.Is(err, errTaskFailed) {
					continue
				}
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

var errTaskFailed = errors.New("task marked as failed")

// isUnprocessable - сообщение, которое не станет валидным при повторной доставке
func isUnprocessable(err error) bool {
	return errors.Is(err, model.ErrTaskNotFound) || errors.Is(err, model.ErrIncorrectID)
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	// считать из базы задачу
	task, err := w.service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch task %q from DB: %w", id, err)
	}
	// проверить статус
	switch task.Status {
	case model.StatusDone, model.StatusFailed:
		return nil
	case model.StatusInProgress:
		// сюда попадают задачи, возвращенные ReviveOrphans после падения воркера
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Warn().Msg("Task is in progress already, reprocessing")
	}

	// на всякий случай проверить поле с результатом
	if task.ResultKey != "" && strings.HasPrefix(task.ResultKey, w.resultPrefix) {
		if err := w.service.UpdateStatus(ctx, id, model.StatusDone); err != nil {
			return fmt.Errorf("failed to update status of already-done task in DB: %w", err)
		}
		return nil
	}

	// обновить статус
	if err := w.service.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of task %q to `in_progress` in DB: %w", id, err)
	}

	// выполняем саму операцию
	if pErr := w.processTask(ctx, task); pErr != nil {
		if w.onFailure != nil {
			w.onFailure(ctx, id, pErr)
		}
		if uErr := w.service.MarkFailed(ctx, id, pErr); uErr != nil {
			return fmt.Errorf("failed to set status of task %q to `failed` in DB: %w \nAFTER\n error while processing task: %w", id, uErr, pErr)
		}
		return fmt.Errorf("%w: %w", errTaskFailed, pErr)
	}

	return nil
}

func (w *Worker) processTask(ctx context.Context, task *model.Task) error {
	remover, err := w.providers.BackgroundRemover(task.Provider)
	if err != nil {
		return fmt.Errorf("worker can't pick provider: %w", err)
	}

	req := &provider.BackgroundRemovalRequest{Params: task.Params}
	if task.SourceKey != "" {
		// достать из storage исходник и выгрузить во временный файл
		src, cType, err := w.storage.Get(ctx, task.SourceKey)
		if err != nil {
			return fmt.Errorf("worker failed to fetch source image from storage: %w", err)
		}
		path, cleanup, err := service.SpoolToTemp(src, model.GetImageFileExt[cType])
		closeFileFlow(ctx, src)
		if err != nil {
			return fmt.Errorf("worker failed to spool source image: %w", err)
		}
		defer cleanup()
		req.Source = provider.FileSource{Path: path}
	} else {
		req.Source = provider.URLSource{URL: task.SourceURL}
	}

	res, err := remover.RemoveBackground(ctx, req)
	if err != nil {
		return fmt.Errorf("provider %q failed: %w", remover.Name(), err)
	}

	data, err := base64.StdEncoding.DecodeString(res.StandardizedResponse.ImageB64)
	if err != nil {
		return fmt.Errorf("worker failed to decode provider image: %w", err)
	}
	if len(data) == 0 {
		return errors.New("provider returned empty image")
	}

	var result io.Reader = bytes.NewReader(data)
	size := int64(len(data))
	resCType := http.DetectContentType(data)

	// декодировать нужно только для ресайза, иначе кладем байты как есть (например WEBP)
	if task.Width != nil || task.Height != nil {
		format, err := imageproc.DetectFormat(data)
		if err != nil {
			return fmt.Errorf("worker can't resize result of this format: %w", err)
		}
		result, size, err = imageproc.Resizer(result, deref(task.Width), deref(task.Height), format)
		if err != nil {
			return fmt.Errorf("worker failed to resize result: %w", err)
		}
		resCType = model.GetCType[format]
	}

	// положить результат в сторедж
	resKey := w.resultPrefix + task.UID.String() + model.GetImageFileExt[resCType]
	if err := w.storage.Put(ctx, resKey, size, resCType, result); err != nil {
		return fmt.Errorf("worker failed to put result image to storage: %w", err)
	}

	task.Status = model.StatusDone
	task.ResultKey = resKey
	task.ResourceURL = res.StandardizedResponse.ImageResourceURL

	// обновить запись в БД
	if err := w.service.SaveResult(ctx, task); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func closeFileFlow(ctx context.Context, res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Warn().Err(err).Msg("Worker failed to close fileflow")
	}
}
