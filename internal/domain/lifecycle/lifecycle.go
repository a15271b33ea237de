// Пакет lifecycle — конечный автомат статусов файла.
//
// Жизненный цикл файла:
//   - active → trashed (в корзину, квота остаётся занятой)
//   - trashed → active (восстановление)
//   - active, trashed → deleted (безвозвратное удаление, освобождает квоту)
//
// deleted — терминальный статус: строка и blob удаляются, переходы из него невозможны.
// Прямой переход active → deleted доступен только через purge.
package lifecycle

import (
	"fmt"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// Operation — операция над файлом, приводящая к смене статуса.
type Operation string

const (
	OpTrash   Operation = "trash"
	OpRestore Operation = "restore"
	OpPurge   Operation = "purge"
)

// Коды ошибок перехода.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnknownStatus     = "UNKNOWN_STATUS"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[model.Status]map[model.Status]bool{
	model.StatusActive:  {model.StatusTrashed: true, model.StatusDeleted: true},
	model.StatusTrashed: {model.StatusActive: true, model.StatusDeleted: true},
	model.StatusDeleted: {},
}

// operationTargets — целевой статус каждой операции.
var operationTargets = map[Operation]model.Status{
	OpTrash:   model.StatusTrashed,
	OpRestore: model.StatusActive,
	OpPurge:   model.StatusDeleted,
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, UNKNOWN_STATUS)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to model.Status) bool {
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// Target возвращает целевой статус операции.
func Target(op Operation) (model.Status, bool) {
	s, ok := operationTargets[op]
	return s, ok
}

// Apply проверяет применимость операции к файлу в статусе current
// и возвращает целевой статус.
func Apply(current model.Status, op Operation) (model.Status, error) {
	if !current.Valid() {
		return "", &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("недопустимый текущий статус: %q", current),
		}
	}

	target, ok := operationTargets[op]
	if !ok {
		return "", &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("неизвестная операция: %q", op),
		}
	}

	if !CanTransition(current, target) {
		return "", &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("операция %s недопустима: переход %s → %s", op, current, target),
		}
	}
	return target, nil
}

// ParseStatus преобразует строку в model.Status.
func ParseStatus(s string) (model.Status, error) {
	st := model.Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: active, trashed, deleted", s)
	}
	return st, nil
}
