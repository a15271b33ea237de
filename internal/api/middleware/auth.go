// auth.go — JWT middleware для аутентификации пользователей Drive Module.
// Проверяет подпись токена по JWKS Identity Provider (RS256), извлекает
// sub и имя пользователя и при первом запросе создаёт локальную запись
// пользователя с квотой по умолчанию.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/drive-module/internal/api/errors"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — данные аутентифицированного пользователя.
type AuthClaims struct {
	// Subject — sub из JWT, он же ID пользователя Drive Module.
	Subject string
	// Username — значение настроенного username claim (по умолчанию preferred_username).
	Username string
	// Email — email из JWT.
	Email string
}

// UserProvisioner создаёт локального пользователя для идентичности IdP.
// Реализуется service.UserService.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, id, username string) (*model.User, error)
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks          keyfunc.Keyfunc
	users         UserProvisioner
	issuer        string
	usernameClaim string
	jwtLeeway     time.Duration
	logger        *slog.Logger
}

// NewJWTAuth создаёт JWT middleware с JWKS из Identity Provider.
// issuer — ожидаемый issuer JWT (пустой — не проверяется).
// usernameClaim — claim с именем пользователя.
// users — провайдер локальных пользователей (может быть nil).
func NewJWTAuth(
	jwksURL string,
	issuer string,
	usernameClaim string,
	users UserProvisioner,
	refreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    http.DefaultClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	a := NewJWTAuthWithKeyfunc(k, issuer, usernameClaim, users, logger)
	a.jwtLeeway = jwtLeeway
	return a, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	usernameClaim string,
	users UserProvisioner,
	logger *slog.Logger,
) *JWTAuth {
	if usernameClaim == "" {
		usernameClaim = "preferred_username"
	}
	return &JWTAuth{
		jwks:          kf,
		users:         users,
		issuer:        issuer,
		usernameClaim: usernameClaim,
		logger:        logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), обеспечивает наличие
// локального пользователя и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(w, r)
			if !ok {
				return
			}

			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			rawClaims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			claims := &AuthClaims{
				Subject:  subject,
				Username: stringClaim(rawClaims, j.usernameClaim),
				Email:    stringClaim(rawClaims, "email"),
			}

			if j.users != nil {
				if _, err := j.users.EnsureUser(r.Context(), claims.Subject, claims.Username); err != nil {
					j.logger.Error("Ошибка создания пользователя",
						slog.String("user_id", claims.Subject),
						slog.String("error", err.Error()),
					)
					apierrors.InternalError(w, "Не удалось инициализировать пользователя")
					return
				}
			}

			setRequestUser(r.Context(), claims.Subject)
			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
// При ошибке сам пишет ответ 401 и возвращает false.
func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
		return "", false
	}

	if parts[1] == "" {
		apierrors.Unauthorized(w, "Пустой Bearer token")
		return "", false
	}
	return parts[1], true
}

// stringClaim возвращает строковый claim или пустую строку.
func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если claims не найдены.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// WithClaims помещает claims в контекст. Используется в тестах handlers.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// --- ReadinessChecker для Identity Provider ---

// IDPReadinessChecker — проверка доступности IdP через JWKS endpoint.
type IDPReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewIDPReadinessChecker создаёт checker доступности JWKS.
func NewIDPReadinessChecker(jwksURL string, timeout time.Duration) *IDPReadinessChecker {
	return &IDPReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint.
func (k *IDPReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
