package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/UnendingLoop/BGRemover/internal/mwlogger"
	"github.com/UnendingLoop/BGRemover/internal/provider"
)

func errorCodeDefiner(err error) int {
	var pErr *provider.ProviderError
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrTaskNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrSourceConflict),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrIncorrectSize),
		errors.Is(err, model.ErrIncorrectStatus),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrUnknownProvider):
		return 400
	case errors.As(err, &pErr):
		// клиентские ошибки провайдера отдаем как 400, остальное - как проблему апстрима
		if pErr.Code >= 400 && pErr.Code < 500 {
			return 400
		}
		return http.StatusBadGateway
	case errors.Is(err, model.ErrProviderRejected),
		errors.Is(err, model.ErrProviderDown):
		return http.StatusBadGateway
	default:
		return 500
	}
}

func closeFileFlow(ctx context.Context, res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
