// Пакет service — бизнес-логика Drive Module.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/lifecycle"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — объект не найден.
	ErrNotFound = errors.New("не найдено")
	// ErrForbidden — объект существует, но принадлежит другому пользователю.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrGone — срок действия ссылки истёк.
	ErrGone = errors.New("срок действия ссылки истёк")
	// ErrPasswordRequired — ссылка защищена паролем, пароль не передан.
	ErrPasswordRequired = errors.New("требуется пароль")
	// ErrUnauthorized — неверный пароль ссылки.
	ErrUnauthorized = errors.New("неверный пароль")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrCorruptHierarchy — цикл или превышение глубины в дереве папок.
	ErrCorruptHierarchy = errors.New("нарушена иерархия папок")
	// ErrStorageExceeded — загрузка превысит лимит хранилища.
	ErrStorageExceeded = errors.New("превышен лимит хранилища")
	// ErrConflict — конфликт с существующими данными.
	ErrConflict = errors.New("конфликт")
	// ErrInvalidTransition — недопустимая смена статуса файла.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
)

// mapRepoError переводит ошибки репозиториев в ошибки сервисного слоя.
// Прочие ошибки оборачиваются с контекстом op.
func mapRepoError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case errors.Is(err, repository.ErrQuotaExceeded):
		return ErrStorageExceeded
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// mapTransitionError переводит ошибку конечного автомата в ErrInvalidTransition.
func mapTransitionError(err error) error {
	var te *lifecycle.TransitionError
	if errors.As(err, &te) {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, te.Message)
	}
	return err
}
