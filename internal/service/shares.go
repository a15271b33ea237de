// shares.go — выдача ссылок доступа и проверка доступа по токену.
//
// Порядок проверок при обращении по токену:
//  1. токен не найден — ErrNotFound
//  2. срок истёк — ErrGone
//  3. пароль установлен, но не передан — ErrPasswordRequired
//  4. пароль не совпал — ErrUnauthorized
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// shareResolutionsTotal — обращения по токену с разбивкой по результату.
var shareResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dm_share_resolutions_total",
	Help: "Количество обращений по ссылкам доступа",
}, []string{"result"})

// maxTokenAttempts — попытки генерации токена при коллизии.
const maxTokenAttempts = 3

// TargetKind — тип объекта ссылки.
type TargetKind string

const (
	TargetFile   TargetKind = "file"
	TargetFolder TargetKind = "folder"
)

// Target — объект, на который выдаётся ссылка.
type Target struct {
	Kind TargetKind
	ID   string
}

// PasswordHasher — хэширование паролей ссылок (реализуется auth.Hasher).
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// ResolvedShare — ссылка и объект, к которому она даёт доступ.
// Заполнено ровно одно из File и Folder.
type ResolvedShare struct {
	Share *model.Share
	File  *model.FileWithURL
	// Folder и Contents заполняются для ссылки на папку
	Folder   *model.Folder
	Contents *FolderContents
}

// ShareService — ссылки доступа к файлам и папкам.
type ShareService struct {
	store    repository.Store
	blobs    blobstore.BlobStore
	contents *ContentsService
	urls     *URLBuilder
	hasher   PasswordHasher
	cache    *ShareCache
	now      func() time.Time
	logger   *slog.Logger
}

// NewShareService создаёт сервис ссылок. cache может быть nil.
func NewShareService(
	store repository.Store,
	blobs blobstore.BlobStore,
	contents *ContentsService,
	urls *URLBuilder,
	hasher PasswordHasher,
	cache *ShareCache,
	logger *slog.Logger,
) *ShareService {
	return &ShareService{
		store:    store,
		blobs:    blobs,
		contents: contents,
		urls:     urls,
		hasher:   hasher,
		cache:    cache,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "share_service")),
	}
}

// Issue выдаёт ссылку на файл или папку владельца ownerID.
// Пустой permission — view. password и expiresAt необязательны.
func (s *ShareService) Issue(
	ctx context.Context,
	ownerID string,
	target Target,
	permission model.Permission,
	password *string,
	expiresAt *time.Time,
) (*model.Share, error) {
	if permission == "" {
		permission = model.PermissionView
	}
	if !permission.Valid() {
		return nil, fmt.Errorf("%w: недопустимый уровень доступа %q", ErrValidation, permission)
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: срок действия должен быть в будущем", ErrValidation)
	}

	share := &model.Share{
		UserID:     ownerID,
		Permission: permission,
		ExpiresAt:  expiresAt,
	}

	repos := s.store.Repos()
	switch target.Kind {
	case TargetFile:
		f, err := ownedFile(ctx, repos, ownerID, target.ID)
		if err != nil {
			return nil, err
		}
		if f.Status != model.StatusActive {
			return nil, fmt.Errorf("%w: файл %s в корзине", ErrValidation, f.ID)
		}
		share.FileID = &f.ID
	case TargetFolder:
		f, err := activeFolder(ctx, repos, ownerID, target.ID)
		if err != nil {
			return nil, err
		}
		share.FolderID = &f.ID
	default:
		return nil, fmt.Errorf("%w: неизвестный тип объекта %q", ErrValidation, target.Kind)
	}

	if password != nil && *password != "" {
		hash, err := s.hasher.Hash(*password)
		if err != nil {
			return nil, fmt.Errorf("хэширование пароля: %w", err)
		}
		share.PasswordHash = &hash
	}

	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		if share.Token, err = newShareToken(); err != nil {
			return nil, err
		}
		err = repos.Shares.Create(ctx, share)
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, mapRepoError(err, "создание ссылки")
	}

	s.logger.Info("Ссылка создана",
		slog.String("share_id", share.ID),
		slog.String("user_id", ownerID),
		slog.String("target_kind", string(target.Kind)),
		slog.String("target_id", target.ID),
		slog.String("permission", string(permission)),
	)
	return share, nil
}

// newShareToken — 64 hex-символа из двух случайных UUID v4.
func newShareToken() (string, error) {
	buf := make([]byte, 0, 32)
	for range 2 {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("генерация токена: %w", err)
		}
		buf = append(buf, id[:]...)
	}
	return hex.EncodeToString(buf), nil
}

// Resolve проверяет доступ по токену и возвращает объект ссылки.
func (s *ShareService) Resolve(ctx context.Context, token string, password *string) (*ResolvedShare, error) {
	share, err := s.gate(ctx, token, password)
	if err != nil {
		return nil, err
	}

	pw := ""
	if password != nil {
		pw = *password
	}
	repos := s.store.Repos()
	res := &ResolvedShare{Share: share}

	switch {
	case share.FileID != nil:
		f, err := repos.Files.GetByID(ctx, *share.FileID)
		if err != nil || f.Status != model.StatusActive {
			shareResolutionsTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: файл ссылки недоступен", ErrNotFound)
		}
		res.File = &model.FileWithURL{File: f, URL: s.urls.Content(f.ID, false, token, pw)}
	case share.FolderID != nil:
		folder, err := repos.Folders.GetByID(ctx, *share.FolderID)
		if err != nil || folder.Status != model.StatusActive {
			shareResolutionsTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: папка ссылки недоступна", ErrNotFound)
		}
		contents, err := s.contents.listShared(ctx, folder, token, pw)
		if err != nil {
			return nil, err
		}
		res.Folder = folder
		res.Contents = contents
	}

	shareResolutionsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// gate выполняет проверки токена, срока и пароля.
func (s *ShareService) gate(ctx context.Context, token string, password *string) (*model.Share, error) {
	share, err := s.lookup(ctx, token)
	if err != nil {
		shareResolutionsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if share.IsExpired(s.now()) {
		shareResolutionsTotal.WithLabelValues("gone").Inc()
		return nil, ErrGone
	}
	if share.HasPassword() {
		if password == nil || *password == "" {
			shareResolutionsTotal.WithLabelValues("password_required").Inc()
			return nil, ErrPasswordRequired
		}
		ok, err := s.hasher.Verify(*password, *share.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("проверка пароля ссылки: %w", err)
		}
		if !ok {
			shareResolutionsTotal.WithLabelValues("unauthorized").Inc()
			return nil, ErrUnauthorized
		}
	}
	return share, nil
}

// lookup ищет ссылку сначала в кэше, затем в хранилище.
func (s *ShareService) lookup(ctx context.Context, token string) (*model.Share, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: пустой токен", ErrNotFound)
	}
	if share, ok := s.cache.Get(token); ok {
		return share, nil
	}
	share, err := s.store.Repos().Shares.GetByToken(ctx, token)
	if err != nil {
		return nil, mapRepoError(err, "ссылка")
	}
	s.cache.Set(share)
	return share, nil
}

// AuthorizeFileWithinShare разрешает доступ к файлу, если он и есть
// объект ссылки либо лежит непосредственно в расшаренной папке.
func AuthorizeFileWithinShare(share *model.Share, file *model.File) bool {
	if share == nil || file == nil {
		return false
	}
	if share.FileID != nil {
		return *share.FileID == file.ID
	}
	if share.FolderID != nil && file.FolderID != nil {
		return *share.FolderID == *file.FolderID
	}
	return false
}

// OpenSharedFile открывает содержимое файла по ссылке.
// Вызывающий код обязан закрыть reader.
func (s *ShareService) OpenSharedFile(ctx context.Context, token string, password *string, fileID string) (*model.File, io.ReadCloser, error) {
	share, err := s.gate(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.store.Repos().Files.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, mapRepoError(err, "файл "+fileID)
	}
	if f.UserID != share.UserID || !AuthorizeFileWithinShare(share, f) {
		return nil, nil, fmt.Errorf("%w: файл %s не входит в ссылку", ErrForbidden, fileID)
	}
	if f.Status != model.StatusActive {
		return nil, nil, fmt.Errorf("%w: файл %s недоступен", ErrNotFound, fileID)
	}

	rc, err := openBlob(ctx, s.blobs, f)
	if err != nil {
		return nil, nil, err
	}
	shareResolutionsTotal.WithLabelValues("ok").Inc()
	return f, rc, nil
}

// Delete удаляет ссылку владельца.
func (s *ShareService) Delete(ctx context.Context, ownerID, shareID string) error {
	repos := s.store.Repos()
	share, err := repos.Shares.GetByID(ctx, shareID)
	if err != nil {
		return mapRepoError(err, "ссылка "+shareID)
	}
	if share.UserID != ownerID {
		return fmt.Errorf("%w: ссылка %s принадлежит другому пользователю", ErrForbidden, shareID)
	}
	if err := repos.Shares.Delete(ctx, shareID); err != nil {
		return mapRepoError(err, "удаление ссылки")
	}
	s.cache.Invalidate(share.Token)

	s.logger.Info("Ссылка удалена",
		slog.String("share_id", shareID),
		slog.String("user_id", ownerID),
	)
	return nil
}

// ListByUser возвращает ссылки владельца.
func (s *ShareService) ListByUser(ctx context.Context, ownerID string) ([]*model.Share, error) {
	shares, err := s.store.Repos().Shares.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение ссылок: %w", err)
	}
	return shares, nil
}

// DeleteExpired удаляет истёкшие ссылки и возвращает их количество.
func (s *ShareService) DeleteExpired(ctx context.Context) (int, error) {
	tokens, err := s.store.Repos().Shares.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("удаление истёкших ссылок: %w", err)
	}
	s.cache.Invalidate(tokens...)
	return len(tokens), nil
}
