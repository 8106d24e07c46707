package service

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// resizeSpec - размеры опциональны, но если заданы - неотрицательные
type resizeSpec struct {
	Width  *int `validate:"omitempty,gte=0"`
	Height *int `validate:"omitempty,gte=0"`
}

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	// Валидируем поле типа сортировки
	sort := strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(sort, model.ByUUID):
		req.Sort = "task_uid"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валидируем порядок
	order := strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

// validateSource - ровно один источник: файл или image_url
func validateSource(raw *model.RemovalData) error {
	if raw == nil {
		return model.ErrSourceConflict
	}
	hasFile := raw.Image != nil
	hasURL := strings.TrimSpace(raw.ImageURL) != ""
	if hasFile == hasURL {
		return model.ErrSourceConflict
	}
	if hasFile && (raw.ImageSize <= 0 || !model.InImageTypeMap[raw.ContentType]) {
		return model.ErrEmptySource
	}
	if hasURL && !isHTTPURL(strings.TrimSpace(raw.ImageURL)) {
		return model.ErrEmptySource
	}
	return nil
}

func (c TaskService) validateNormalizeTask(raw *model.RemovalData) (*model.Task, error) {
	if err := validateSource(raw); err != nil {
		return nil, err
	}

	if err := validate.Struct(resizeSpec{Width: raw.Width, Height: raw.Height}); err != nil {
		return nil, model.ErrIncorrectSize
	}
	// хотя бы один из заданных размеров больше нуля
	if (raw.Width != nil || raw.Height != nil) && deref(raw.Width) == 0 && deref(raw.Height) == 0 {
		return nil, model.ErrIncorrectSize
	}

	remover, err := c.remover(raw.Provider)
	if err != nil {
		return nil, err
	}

	return &model.Task{
		Provider:  remover.Name(),
		SourceURL: strings.TrimSpace(raw.ImageURL),
		Params:    model.Params(raw.Params),
		Width:     raw.Width,
		Height:    raw.Height,
	}, nil
}

func isHTTPURL(raw string) bool {
	if err := validate.Var(raw, "required,url"); err != nil {
		return false
	}
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// classifyProviderErr keeps the adapter's error reachable via errors.Is/As.
func classifyProviderErr(err error) error {
	var pErr *provider.ProviderError
	switch {
	case errors.Is(err, provider.ErrInvalidInput):
		return fmt.Errorf("%w: %w", model.ErrSourceConflict, err)
	case errors.As(err, &pErr):
		return fmt.Errorf("%w: %w", model.ErrProviderRejected, err)
	case errors.Is(err, provider.ErrTransport), errors.Is(err, provider.ErrMalformedResponse):
		return fmt.Errorf("%w: %w", model.ErrProviderDown, err)
	default:
		return fmt.Errorf("%w: %w", model.ErrCommon500, err)
	}
}

// SpoolToTemp copies r into a temp file; cleanup removes it.
func SpoolToTemp(r io.Reader, ext string) (string, func(), error) {
	if r == nil {
		return "", nil, errors.New("nil reader provided to SpoolToTemp")
	}

	f, err := os.CreateTemp("", "bgremover-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Println("Failed to remove temp file:", err)
		}
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	return f.Name(), cleanup, nil
}
