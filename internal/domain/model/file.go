package model

import "time"

// Status — статус файла или папки.
type Status string

const (
	// StatusActive — видим в обычных листингах
	StatusActive Status = "active"
	// StatusTrashed — в корзине, квота по-прежнему занята
	StatusTrashed Status = "trashed"
	// StatusDeleted — удалён безвозвратно (строка и blob удаляются)
	StatusDeleted Status = "deleted"
)

// Valid проверяет допустимость значения статуса.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTrashed, StatusDeleted:
		return true
	default:
		return false
	}
}

// File — метаданные одного blob-а. Хранится в таблице files.
type File struct {
	// ID — UUID файла
	ID string
	// Name — отображаемое имя (изменяемое)
	Name string
	// OriginalName — имя при загрузке (неизменяемое)
	OriginalName string
	// Type — MIME-тип
	Type string
	// Size — размер в байтах, > 0, неизменяемый
	Size int64
	// UserID — владелец
	UserID string
	// FolderID — папка (nil — корень)
	FolderID *string
	// Path — ключ blob store (неизменяемый)
	Path string
	// Status — статус (active, trashed)
	Status Status
	// Favorite — отмечен как избранный
	Favorite bool
	// CreatedAt — время загрузки
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
	// DeletedAt — время перемещения в корзину (nil для active)
	DeletedAt *time.Time
}

// FileUpdate — частичное обновление файла. nil-поля не изменяются.
type FileUpdate struct {
	Name     *string
	Favorite *bool
	// FolderID — новая папка; SetFolder отличает перенос в корень от «не менять».
	FolderID  *string
	SetFolder bool
	Status    *Status
	// DeletedAt — SetDeletedAt=true и DeletedAt=nil очищает отметку.
	DeletedAt    *time.Time
	SetDeletedAt bool
}

// FileWithURL — файл с производным URL доступа к содержимому.
type FileWithURL struct {
	*File
	URL string
}
