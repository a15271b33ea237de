// quota.go — учёт занятого пользователями объёма хранилища.
// storage_used меняется только атомарными операциями в хранилище,
// без чтения и последующей записи в коде приложения.
package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// quotaBytesAdjusted — объём списанной и освобождённой квоты.
var quotaBytesAdjusted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dm_quota_bytes_adjusted_total",
	Help: "Объём изменений квоты в байтах (charge — списание, release — освобождение)",
}, []string{"direction"})

// QuotaService — учёт квоты хранилища.
type QuotaService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewQuotaService создаёт сервис квот.
func NewQuotaService(store repository.Store, logger *slog.Logger) *QuotaService {
	return &QuotaService{
		store:  store,
		logger: logger.With(slog.String("component", "quota_service")),
	}
}

// Adjust атомарно прибавляет delta к storage_used (с ограничением снизу нулём).
// repos — репозитории текущей транзакции или nil для вызова вне транзакции.
func (q *QuotaService) Adjust(ctx context.Context, repos *repository.Repositories, userID string, delta int64) (int64, error) {
	if repos == nil {
		repos = q.store.Repos()
	}
	used, err := repos.Users.AdjustStorageUsed(ctx, userID, delta)
	if err != nil {
		return 0, mapRepoError(err, "изменение квоты")
	}
	observeAdjust(delta)
	return used, nil
}

// Reserve атомарно резервирует size байт. Если used + size > limit — ErrStorageExceeded.
func (q *QuotaService) Reserve(ctx context.Context, repos *repository.Repositories, userID string, size int64) (int64, error) {
	if repos == nil {
		repos = q.store.Repos()
	}
	used, err := repos.Users.ReserveStorage(ctx, userID, size)
	if err != nil {
		return 0, mapRepoError(err, "резервирование квоты")
	}
	observeAdjust(size)
	return used, nil
}

// Stats возвращает статистику использования хранилища.
func (q *QuotaService) Stats(ctx context.Context, userID string) (model.StorageStats, error) {
	u, err := q.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return model.StorageStats{}, mapRepoError(err, "получение пользователя")
	}
	return model.NewStorageStats(u.StorageUsed, u.StorageLimit), nil
}

// AuditResult — сравнение учтённого объёма с фактическим.
type AuditResult struct {
	UserID string `json:"user_id"`
	// Recorded — значение storage_used
	Recorded int64 `json:"recorded"`
	// Actual — сумма размеров active и trashed файлов
	Actual int64 `json:"actual"`
	// Drift — Recorded - Actual
	Drift int64 `json:"drift"`
}

// Audit пересчитывает фактический объём файлов и сообщает о расхождении.
// Только чтение: storage_used не исправляется.
func (q *QuotaService) Audit(ctx context.Context, userID string) (*AuditResult, error) {
	res := &AuditResult{UserID: userID}
	err := q.store.RunInTx(ctx, func(r *repository.Repositories) error {
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return mapRepoError(err, "получение пользователя")
		}
		actual, err := r.Files.SumSizeByUser(ctx, userID)
		if err != nil {
			return mapRepoError(err, "подсчёт размера файлов")
		}
		res.Recorded = u.StorageUsed
		res.Actual = actual
		res.Drift = u.StorageUsed - actual
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Drift != 0 {
		q.logger.Warn("Расхождение учёта квоты",
			slog.String("user_id", userID),
			slog.Int64("recorded", res.Recorded),
			slog.Int64("actual", res.Actual),
		)
	}
	return res, nil
}

func observeAdjust(delta int64) {
	switch {
	case delta > 0:
		quotaBytesAdjusted.WithLabelValues("charge").Add(float64(delta))
	case delta < 0:
		quotaBytesAdjusted.WithLabelValues("release").Add(float64(-delta))
	}
}
