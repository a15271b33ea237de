package model

import "time"

// Folder — узел дерева папок пользователя.
// ParentID == nil означает корень. Хранится в таблице folders.
type Folder struct {
	// ID — UUID папки
	ID string
	// Name — отображаемое имя
	Name string
	// UserID — владелец
	UserID string
	// ParentID — родительская папка (nil — корень)
	ParentID *string
	// Status — статус (active, trashed, deleted)
	Status Status
	// Path — материализованный путь (/A/B/C), денормализован для отображения
	Path string
	// CreatedAt — время создания
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// FolderUpdate — частичное обновление папки. nil-поля не изменяются.
type FolderUpdate struct {
	Name *string
	// ParentID — новый родитель; SetParent отличает перенос в корень от «не менять».
	ParentID  *string
	SetParent bool
	Path      *string
	Status    *Status
}

// FolderWithItemCount — папка с количеством прямых потомков (папки + файлы).
type FolderWithItemCount struct {
	*Folder
	ItemCount int
}

// Breadcrumb — элемент цепочки предков папки.
type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
