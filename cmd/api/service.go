package main

import (
	"context"

	"github.com/UnendingLoop/BGRemover/internal/transport"
)

// APIService - все что нужно api-процессу от сервиса: хендлеры и возврат подвисших задач
type APIService interface {
	transport.TaskService
	ReviveOrphans(ctx context.Context, limit int)
}
