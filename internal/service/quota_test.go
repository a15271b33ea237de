package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestQuota_AdjustClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)

	used, err := env.quota.Adjust(ctx, nil, "u", 100)
	if err != nil || used != 100 {
		t.Fatalf("ожидалось 100: %d, %v", used, err)
	}
	used, err = env.quota.Adjust(ctx, nil, "u", -250)
	if err != nil || used != 0 {
		t.Fatalf("отрицательное значение должно ограничиваться нулём: %d, %v", used, err)
	}

	_, err = env.quota.Adjust(ctx, nil, "missing", 1)
	expectErr(t, err, ErrNotFound)
}

func TestQuota_Reserve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 100)

	if _, err := env.quota.Reserve(ctx, nil, "u", 60); err != nil {
		t.Fatal(err)
	}
	_, err := env.quota.Reserve(ctx, nil, "u", 41)
	expectErr(t, err, ErrStorageExceeded)
	if used, err := env.quota.Reserve(ctx, nil, "u", 40); err != nil || used != 100 {
		t.Fatalf("резерв до лимита должен пройти: %d, %v", used, err)
	}
}

// TestQuota_ConcurrentReserve — параллельные резервы не превышают лимит.
func TestQuota_ConcurrentReserve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.quota.Reserve(ctx, nil, "u", 30); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	if success.Load() != 33 {
		t.Errorf("ожидалось 33 успешных резерва, получено %d", success.Load())
	}
	if got := env.storageUsed(t, "u"); got != 990 {
		t.Errorf("ожидалось 990, получено %d", got)
	}
}

func TestQuota_Stats(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u", 1000)
	env.upload(t, "u", nil, "a.txt", 250)

	stats, err := env.quota.Stats(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Used != 250 || stats.Total != 1000 || stats.Available != 750 || stats.UsagePercent != 25 {
		t.Errorf("неожиданная статистика: %+v", stats)
	}
}

func TestQuota_AuditDetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	env.upload(t, "u", nil, "a.txt", 100)

	// Изменение в обход учёта файлов
	if _, err := env.quota.Adjust(ctx, nil, "u", 15); err != nil {
		t.Fatal(err)
	}

	res, err := env.quota.Audit(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if res.Recorded != 115 || res.Actual != 100 || res.Drift != 15 {
		t.Errorf("неожиданный результат аудита: %+v", res)
	}
}
