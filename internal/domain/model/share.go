package model

import "time"

// Permission — уровень доступа по ссылке.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
	PermissionFull Permission = "full"
)

// Valid проверяет допустимость уровня доступа.
func (p Permission) Valid() bool {
	switch p {
	case PermissionView, PermissionEdit, PermissionFull:
		return true
	default:
		return false
	}
}

// Share — токен доступа ровно к одному файлу или одной папке.
// Хранится в таблице shares.
type Share struct {
	// ID — UUID ссылки
	ID string
	// UserID — владелец расшаренного объекта
	UserID string
	// FileID — расшаренный файл (взаимоисключающе с FolderID)
	FileID *string
	// FolderID — расшаренная папка (взаимоисключающе с FileID)
	FolderID *string
	// Token — уникальный неугадываемый токен
	Token string
	// Permission — уровень доступа
	Permission Permission
	// PasswordHash — argon2id хэш пароля (nil — без пароля)
	PasswordHash *string
	// ExpiresAt — время истечения (nil — бессрочно)
	ExpiresAt *time.Time
	// CreatedAt — время создания
	CreatedAt time.Time
}

// IsExpired проверяет, истёк ли срок действия ссылки на момент now.
func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// HasPassword сообщает, защищена ли ссылка паролем.
func (s *Share) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}
