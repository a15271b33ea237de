// Пакет model — доменные модели Drive Module.
package model

import "time"

// User — владелец файлов и папок с квотой хранилища.
// Хранится в таблице users. Создаётся при первом запросе
// аутентифицированного пользователя IdP.
type User struct {
	// ID — UUID пользователя (sub из JWT), неизменяемый
	ID string
	// Username — уникальное имя пользователя
	Username string
	// PasswordHash — хэш пароля (непрозрачен для ядра, пустой для IdP-пользователей)
	PasswordHash string
	// StorageUsed — занятый объём в байтах (active + trashed файлы), >= 0
	StorageUsed int64
	// StorageLimit — лимит хранилища в байтах, > 0
	StorageLimit int64
	// CreatedAt — время регистрации
	CreatedAt time.Time
}

// StorageStats — статистика использования хранилища пользователем.
type StorageStats struct {
	Used         int64   `json:"used"`
	Total        int64   `json:"total"`
	Available    int64   `json:"available"`
	UsagePercent float64 `json:"usage_percent"`
}

// NewStorageStats вычисляет статистику по занятому объёму и лимиту.
func NewStorageStats(used, total int64) StorageStats {
	s := StorageStats{Used: used, Total: total}
	if total > used {
		s.Available = total - used
	}
	if total > 0 {
		s.UsagePercent = float64(used) / float64(total) * 100
	}
	return s
}
