package blobstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

// existsStub — BlobStore, у которого реализован только Exists.
type existsStub struct {
	BlobStore
	err error
}

func (s existsStub) Exists(context.Context, string) (bool, error) {
	return false, s.err
}

func TestReadinessChecker(t *testing.T) {
	status, _ := NewReadinessChecker(existsStub{}, time.Second).CheckReady()
	if status != "ok" {
		t.Errorf("статус = %q, ожидался ok", status)
	}

	status, msg := NewReadinessChecker(existsStub{err: errors.New("bucket gone")}, time.Second).CheckReady()
	if status != "fail" {
		t.Errorf("статус = %q, ожидался fail", status)
	}
	if msg == "" {
		t.Error("сообщение об ошибке не должно быть пустым")
	}
}
