package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	pkgauth "github.com/ecoride-app/ecoride-backend/pkg/auth"
	"github.com/ecoride-app/ecoride-backend/pkg/auth/session"
	"github.com/ecoride-app/ecoride-backend/pkg/config"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/security"
)

const (
	loginAttemptLimit  = 10
	loginAttemptWindow = time.Minute
)

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionStore interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type loginLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type auditNotifier interface {
	EmitAsync(ctx context.Context, event auditlog.Event)
}

// LoginInput carries the credentials presented at /login.
type LoginInput struct {
	Email    string
	Password string
}

// TokenPair is the signed access token plus its refresh counterpart.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// LoginResult is the authenticated user and their fresh token pair.
type LoginResult struct {
	User   *models.User
	Tokens TokenPair
}

// Service authenticates members. Sessions live in Redis keyed by the JWT ID,
// so revoking the session kills the token before its natural expiry.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type service struct {
	accounts accountStore
	sessions sessionStore
	limiter  loginLimiter
	audit    auditNotifier
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// NewService builds the authentication service.
func NewService(
	accounts accountStore,
	sessions sessionStore,
	limiter loginLimiter,
	audit auditNotifier,
	jwtCfg config.JWTConfig,
) (Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("login limiter required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit notifier required")
	}
	return &service{
		accounts: accounts,
		sessions: sessions,
		limiter:  limiter,
		audit:    audit,
		jwtCfg:   jwtCfg,
		now:      time.Now,
	}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "login:"+email, loginAttemptLimit, loginAttemptWindow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimited, "too many login attempts, retry later")
	}

	user, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if user.Status == enums.UserStatusSuspended {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is suspended")
	}

	accessID := session.NewAccessID()
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Pseudo: user.Pseudo,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}

	if err := s.accounts.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}
	s.audit.EmitAsync(ctx, auditlog.Event{
		Action:    enums.AuditUserLoggedIn,
		Actor:     &auditlog.ActorRef{UserID: user.ID, Role: user.Role.String()},
		SubjectID: &user.ID,
		Version:   1,
	})

	return &LoginResult{
		User: user,
		Tokens: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute,
		},
	}, nil
}

// Refresh exchanges a possibly expired access token plus its refresh token
// for a new pair. The old session is invalidated in the same step.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}

	newAccess, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: claims.UserID,
		Pseudo: claims.Pseudo,
		Role:   claims.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		ExpiresIn:    time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access id required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}
	return nil
}
