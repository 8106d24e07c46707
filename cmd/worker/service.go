package main

import (
	"context"

	"github.com/wb-go/wbf/retry"
)

// NoopPublisher - ЗАГЛУШКА, воркер сам в очередь ничего не публикует
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}
