package blobstore

import (
	"context"
	"fmt"
	"time"
)

// readinessCheckKey — ключ, наличие которого проверяет ReadinessChecker.
// Содержимое под ним не создаётся: важен только успешный ответ хранилища.
const readinessCheckKey = "_health/check"

// ReadinessChecker — проверка доступности хранилища содержимого.
type ReadinessChecker struct {
	store   BlobStore
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку готовности хранилища.
func NewReadinessChecker(store BlobStore, timeout time.Duration) *ReadinessChecker {
	return &ReadinessChecker{store: store, timeout: timeout}
}

// CheckReady выполняет Exists по служебному ключу.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if _, err := c.store.Exists(ctx, readinessCheckKey); err != nil {
		return "fail", fmt.Sprintf("хранилище содержимого недоступно: %v", err)
	}
	return "ok", "хранилище доступно"
}
