package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// UserService — локальные записи пользователей IdP.
type UserService struct {
	store        repository.Store
	defaultLimit int64
	logger       *slog.Logger
}

// NewUserService создаёт сервис пользователей.
// defaultLimit — лимит хранилища для новых пользователей.
func NewUserService(store repository.Store, defaultLimit int64, logger *slog.Logger) *UserService {
	return &UserService{
		store:        store,
		defaultLimit: defaultLimit,
		logger:       logger.With(slog.String("component", "user_service")),
	}
}

// EnsureUser возвращает пользователя id, создавая его при первом обращении.
// Гонка двух первых запросов разрешается повторным чтением.
// Идентичность — id (sub), имя только отображается: если username занят
// другим sub, запись создаётся с именем, производным от sub.
func (s *UserService) EnsureUser(ctx context.Context, id, username string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: пустой идентификатор пользователя", ErrValidation)
	}

	repos := s.store.Repos()
	u, err := repos.Users.GetByID(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	for _, name := range usernameCandidates(id, username) {
		u, err = s.Create(ctx, id, name, s.defaultLimit)
		if !errors.Is(err, ErrConflict) {
			return u, err
		}
		existing, getErr := repos.Users.GetByID(ctx, id)
		if getErr == nil {
			return existing, nil
		}
		s.logger.Warn("Имя пользователя занято другим sub",
			slog.String("user_id", id),
			slog.String("username", name),
		)
	}
	return nil, err
}

// usernameCandidates — имена для новой записи в порядке предпочтения.
func usernameCandidates(id, username string) []string {
	if username == "" {
		return []string{id}
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return []string{username, username + "#" + short, username + "#" + id}
}

// Create создаёт пользователя с лимитом limit.
func (s *UserService) Create(ctx context.Context, id, username string, limit int64) (*model.User, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: лимит хранилища должен быть положительным", ErrValidation)
	}
	u := &model.User{
		ID:           id,
		Username:     username,
		StorageLimit: limit,
	}
	if err := s.store.Repos().Users.Create(ctx, u); err != nil {
		return nil, mapRepoError(err, "создание пользователя")
	}

	s.logger.Info("Пользователь создан",
		slog.String("user_id", id),
		slog.String("username", username),
		slog.Int64("storage_limit", limit),
	)
	return u, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.Repos().Users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение пользователя")
	}
	return u, nil
}
