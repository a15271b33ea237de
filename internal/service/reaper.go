// reaper.go — фоновое удаление истёкших ссылок доступа.
//
// Проверка срока при обращении по токену достаточна для корректности,
// reaper только убирает устаревшие строки. Запускается как горутина
// с периодическим тикером (DM_SHARE_REAPER_INTERVAL, 0 — выключен).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики reaper-а
var (
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_share_reaper_runs_total",
		Help: "Общее количество запусков очистки истёкших ссылок",
	})

	reaperDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_share_reaper_deleted_total",
		Help: "Общее количество удалённых истёкших ссылок",
	})

	reaperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_share_reaper_errors_total",
		Help: "Количество неудачных запусков очистки",
	})
)

// ShareReaper — периодическая очистка истёкших ссылок.
type ShareReaper struct {
	shares   *ShareService
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewShareReaper создаёт reaper.
func NewShareReaper(shares *ShareService, interval time.Duration, logger *slog.Logger) *ShareReaper {
	return &ShareReaper{
		shares:   shares,
		interval: interval,
		logger:   logger.With(slog.String("component", "share_reaper")),
	}
}

// Start запускает фоновую горутину. При interval <= 0 ничего не делает.
func (r *ShareReaper) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("Очистка истёкших ссылок выключена")
		return
	}

	reaperCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(reaperCtx)

	r.logger.Info("Очистка истёкших ссылок запущена",
		slog.String("interval", r.interval.String()),
	)
}

// Stop останавливает фоновую горутину и дожидается её завершения.
func (r *ShareReaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.logger.Info("Очистка истёкших ссылок остановлена")
}

func (r *ShareReaper) run(ctx context.Context) {
	defer close(r.done)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает количество удалённых ссылок.
func (r *ShareReaper) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	reaperRunsTotal.Inc()

	deleted, err := r.shares.DeleteExpired(ctx)
	if err != nil {
		reaperErrorsTotal.Inc()
		r.logger.Error("Ошибка очистки истёкших ссылок",
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	reaperDeletedTotal.Add(float64(deleted))
	if deleted > 0 {
		r.logger.Info("Истёкшие ссылки удалены",
			slog.Int("deleted", deleted),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return deleted, nil
}
