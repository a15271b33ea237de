// files.go — загрузка и операции над метаданными файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// filesUploadedTotal — количество успешно загруженных файлов.
var filesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dm_files_uploaded_total",
	Help: "Общее количество загруженных файлов",
})

// defaultMIMEType — тип содержимого, если клиент его не передал.
const defaultMIMEType = "application/octet-stream"

// UploadRequest — параметры загрузки файла.
type UploadRequest struct {
	UserID string
	// FolderID — целевая папка (nil — корень)
	FolderID *string
	Name     string
	Type     string
	// Size — заявленный размер. Фактический размер содержимого обязан совпасть.
	Size int64
	Body io.Reader
}

// FileService — операции над файлами пользователя.
type FileService struct {
	store        repository.Store
	blobs        blobstore.BlobStore
	quota        *QuotaService
	urls         *URLBuilder
	maxUpload    int64
	allowedTypes []string
	logger       *slog.Logger
}

// NewFileService создаёт сервис файлов.
// maxUpload — предельный размер одного файла (0 — без ограничения).
// allowedTypes — допустимые MIME-типы; пустой список — любые.
// Поддерживаются шаблоны вида image/*.
func NewFileService(
	store repository.Store,
	blobs blobstore.BlobStore,
	quota *QuotaService,
	urls *URLBuilder,
	maxUpload int64,
	allowedTypes []string,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		store:        store,
		blobs:        blobs,
		quota:        quota,
		urls:         urls,
		maxUpload:    maxUpload,
		allowedTypes: allowedTypes,
		logger:       logger.With(slog.String("component", "file_service")),
	}
}

// Upload загружает файл.
// Порядок: проверки → резерв квоты → запись содержимого → запись метаданных.
// При ошибке после резерва квота возвращается, записанное содержимое удаляется.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) (*model.FileWithURL, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if req.Size <= 0 {
		return nil, fmt.Errorf("%w: размер файла должен быть положительным", ErrValidation)
	}
	if s.maxUpload > 0 && req.Size > s.maxUpload {
		return nil, fmt.Errorf("%w: размер %d превышает допустимые %d байт", ErrValidation, req.Size, s.maxUpload)
	}
	contentType, err := s.checkType(req.Type)
	if err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	if req.FolderID != nil {
		if _, err := activeFolder(ctx, repos, req.UserID, *req.FolderID); err != nil {
			return nil, err
		}
	}

	if _, err := s.quota.Reserve(ctx, nil, req.UserID, req.Size); err != nil {
		return nil, err
	}
	reserved := true
	defer func() {
		if reserved {
			s.releaseReservation(ctx, req.UserID, req.Size)
		}
	}()

	key := blobstore.NewKey(req.UserID, name, time.Now())
	// Чтение ограничено на байт больше заявленного, чтобы обнаружить превышение
	put, err := s.blobs.Put(ctx, key, io.LimitReader(req.Body, req.Size+1))
	if err != nil {
		return nil, fmt.Errorf("запись содержимого: %w", err)
	}
	if put.Size != req.Size {
		s.deleteBlob(ctx, key)
		return nil, fmt.Errorf("%w: получено %d байт, заявлено %d", ErrValidation, put.Size, req.Size)
	}

	f := &model.File{
		Name:         name,
		OriginalName: name,
		Type:         contentType,
		Size:         req.Size,
		UserID:       req.UserID,
		FolderID:     req.FolderID,
		Path:         key,
		Status:       model.StatusActive,
	}
	if err := repos.Files.Create(ctx, f); err != nil {
		s.deleteBlob(ctx, key)
		return nil, mapRepoError(err, "сохранение метаданных файла")
	}
	reserved = false

	filesUploadedTotal.Inc()
	s.logger.Info("Файл загружен",
		slog.String("file_id", f.ID),
		slog.String("user_id", req.UserID),
		slog.String("name", name),
		slog.Int64("size", req.Size),
		slog.String("checksum", put.Checksum),
	)
	return s.WithURL(f), nil
}

// checkType нормализует MIME-тип и сверяет его со списком допустимых.
func (s *FileService) checkType(raw string) (string, error) {
	contentType := defaultMIMEType
	if strings.TrimSpace(raw) != "" {
		mediaType, _, err := mime.ParseMediaType(raw)
		if err != nil {
			return "", fmt.Errorf("%w: некорректный MIME-тип %q", ErrValidation, raw)
		}
		contentType = mediaType
	}
	if len(s.allowedTypes) == 0 {
		return contentType, nil
	}
	for _, allowed := range s.allowedTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == contentType {
			return contentType, nil
		}
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok && strings.HasPrefix(contentType, prefix+"/") {
			return contentType, nil
		}
	}
	return "", fmt.Errorf("%w: тип %s не разрешён", ErrValidation, contentType)
}

func (s *FileService) releaseReservation(ctx context.Context, userID string, size int64) {
	if _, err := s.quota.Adjust(context.WithoutCancel(ctx), nil, userID, -size); err != nil {
		s.logger.Error("Ошибка возврата квоты",
			slog.String("user_id", userID),
			slog.Int64("size", size),
			slog.String("error", err.Error()),
		)
	}
}

func (s *FileService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		blobDeleteErrorsTotal.Inc()
		s.logger.Error("Ошибка удаления содержимого",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Get возвращает файл владельца.
func (s *FileService) Get(ctx context.Context, userID, fileID string) (*model.FileWithURL, error) {
	f, err := ownedFile(ctx, s.store.Repos(), userID, fileID)
	if err != nil {
		return nil, err
	}
	return s.WithURL(f), nil
}

// FileChanges — изменения метаданных файла из одного запроса.
// SetFolder=true и FolderID=nil означает перенос в корень.
type FileChanges struct {
	Name      *string
	FolderID  *string
	SetFolder bool
}

// Rename переименовывает файл.
func (s *FileService) Rename(ctx context.Context, userID, fileID, name string) (*model.FileWithURL, error) {
	return s.Update(ctx, userID, fileID, FileChanges{Name: &name})
}

// ToggleFavorite инвертирует отметку «избранное».
func (s *FileService) ToggleFavorite(ctx context.Context, userID, fileID string) (*model.FileWithURL, error) {
	return s.update(ctx, userID, fileID, func(_ *repository.Repositories, f *model.File) (model.FileUpdate, error) {
		fav := !f.Favorite
		return model.FileUpdate{Favorite: &fav}, nil
	})
}

// Move переносит файл в папку folderID (nil — корень).
func (s *FileService) Move(ctx context.Context, userID, fileID string, folderID *string) (*model.FileWithURL, error) {
	return s.Update(ctx, userID, fileID, FileChanges{FolderID: folderID, SetFolder: true})
}

// Update применяет перенос и переименование одной транзакцией.
// Ошибка любой части оставляет файл без изменений.
func (s *FileService) Update(ctx context.Context, userID, fileID string, ch FileChanges) (*model.FileWithURL, error) {
	if ch.Name == nil && !ch.SetFolder {
		return nil, fmt.Errorf("%w: нет изменений", ErrValidation)
	}
	upd := model.FileUpdate{FolderID: ch.FolderID, SetFolder: ch.SetFolder}
	if ch.Name != nil {
		name, err := validateName(*ch.Name)
		if err != nil {
			return nil, err
		}
		upd.Name = &name
	}

	return s.update(ctx, userID, fileID, func(r *repository.Repositories, _ *model.File) (model.FileUpdate, error) {
		if ch.SetFolder && ch.FolderID != nil {
			if _, err := activeFolder(ctx, r, userID, *ch.FolderID); err != nil {
				return model.FileUpdate{}, err
			}
		}
		return upd, nil
	})
}

// update — чтение, проверка владельца и частичное обновление в одной транзакции.
func (s *FileService) update(
	ctx context.Context,
	userID, fileID string,
	build func(r *repository.Repositories, f *model.File) (model.FileUpdate, error),
) (*model.FileWithURL, error) {
	var result *model.File
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		f, err := ownedFile(ctx, r, userID, fileID)
		if err != nil {
			return err
		}
		upd, err := build(r, f)
		if err != nil {
			return err
		}
		result, err = r.Files.Update(ctx, fileID, upd)
		return mapRepoError(err, "обновление файла")
	})
	if err != nil {
		return nil, err
	}
	return s.WithURL(result), nil
}

// Search ищет активные файлы по подстроке имени. typeFilter — префикс MIME-типа.
func (s *FileService) Search(ctx context.Context, userID, query, typeFilter string) ([]*model.FileWithURL, error) {
	query = strings.TrimSpace(query)
	typeFilter = strings.ToLower(strings.TrimSpace(typeFilter))
	if query == "" && typeFilter == "" {
		return nil, fmt.Errorf("%w: пустой поисковый запрос", ErrValidation)
	}
	files, err := s.store.Repos().Files.Search(ctx, userID, query, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("поиск файлов: %w", err)
	}
	return s.withURLs(files), nil
}

// ListFavorites возвращает активные избранные файлы.
func (s *FileService) ListFavorites(ctx context.Context, userID string) ([]*model.FileWithURL, error) {
	files, err := s.store.Repos().Files.FindFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение избранного: %w", err)
	}
	return s.withURLs(files), nil
}

// OpenContent открывает содержимое файла владельца.
// Вызывающий код обязан закрыть reader.
func (s *FileService) OpenContent(ctx context.Context, userID, fileID string) (*model.File, io.ReadCloser, error) {
	f, err := ownedFile(ctx, s.store.Repos(), userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := openBlob(ctx, s.blobs, f)
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

// WithURL дополняет файл ссылкой на содержимое для владельца.
func (s *FileService) WithURL(f *model.File) *model.FileWithURL {
	return &model.FileWithURL{File: f, URL: s.urls.Content(f.ID, false, "", "")}
}

func (s *FileService) withURLs(files []*model.File) []*model.FileWithURL {
	result := make([]*model.FileWithURL, 0, len(files))
	for _, f := range files {
		result = append(result, s.WithURL(f))
	}
	return result
}

// openBlob открывает содержимое файла. Отсутствие blob-а — ErrNotFound.
func openBlob(ctx context.Context, blobs blobstore.BlobStore, f *model.File) (io.ReadCloser, error) {
	rc, err := blobs.Get(ctx, f.Path)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: содержимое файла %s отсутствует", ErrNotFound, f.ID)
		}
		return nil, fmt.Errorf("чтение содержимого: %w", err)
	}
	return rc, nil
}
