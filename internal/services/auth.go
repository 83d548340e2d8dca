package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/platform/sendgrid"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

type AuthConfig struct {
	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	InviteTokenTTL  time.Duration
	RecoveryTTL     time.Duration
	FrontOfficeURL  string
}

type LoginResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *types.User `json:"user"`
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, accessToken string, userID uuid.UUID) error
	// ValidateAccessToken returns the authenticated user id, or an
	// unauthorized error for expired, malformed or blacklisted tokens.
	ValidateAccessToken(ctx context.Context, accessToken string) (uuid.UUID, error)

	Invite(ctx context.Context, email, name, role string) error
	Activate(ctx context.Context, inviteToken, password string) (*LoginResult, error)
	RequestRecovery(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, recoveryToken, password string) error
}

type authService struct {
	db        *gorm.DB
	log       *logger.Logger
	cfg       AuthConfig
	userRepo  repos.UserRepo
	tokenRepo repos.UserTokenRepo
	mailer    sendgrid.Client
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg AuthConfig,
	userRepo repos.UserRepo,
	tokenRepo repos.UserTokenRepo,
	mailer sendgrid.Client,
) AuthService {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if cfg.InviteTokenTTL <= 0 {
		cfg.InviteTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.RecoveryTTL <= 0 {
		cfg.RecoveryTTL = 2 * time.Hour
	}
	return &authService{
		db:        db,
		log:       baseLog.With("service", "AuthService"),
		cfg:       cfg,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		mailer:    mailer,
	}
}

var errInvalidCredentials = apierr.New(401, "invalid_credentials", fmt.Errorf("invalid email or password"))

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, nil, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, apierr.New(401, "account_inactive", fmt.Errorf("account isn't activated yet"))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}
	return s.issueTokens(ctx, nil, user)
}

// Refresh rotates the refresh token: the presented one is consumed and a new
// pair is issued.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	var result *LoginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.tokenRepo.GetActive(ctx, tx, types.TokenKindRefresh, refreshToken)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.New(401, "invalid_refresh_token", fmt.Errorf("refresh token is invalid or expired"))
			}
			return err
		}
		if err := s.tokenRepo.Consume(ctx, tx, row.ID); err != nil {
			return err
		}
		user, err := s.userRepo.GetByID(ctx, tx, row.UserID)
		if err != nil {
			return err
		}
		result, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logout blacklists the presented access token for its remaining lifetime and
// drops the user's refresh tokens.
func (s *authService) Logout(ctx context.Context, accessToken string, userID uuid.UUID) error {
	claims, err := s.parseAccess(accessToken)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.cfg.AccessTokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.tokenRepo.Create(ctx, tx, &types.UserToken{
			UserID:    userID,
			Kind:      types.TokenKindBlacklist,
			Token:     accessToken,
			ExpiresAt: expiresAt,
		}); err != nil {
			return err
		}
		return s.tokenRepo.DeleteByUserAndKind(ctx, tx, userID, types.TokenKindRefresh)
	})
}

func (s *authService) ValidateAccessToken(ctx context.Context, accessToken string) (uuid.UUID, error) {
	claims, err := s.parseAccess(accessToken)
	if err != nil {
		return uuid.Nil, err
	}
	blacklisted, err := s.tokenRepo.Exists(ctx, nil, types.TokenKindBlacklist, accessToken)
	if err != nil {
		return uuid.Nil, err
	}
	if blacklisted {
		return uuid.Nil, apierr.New(401, "token_revoked", fmt.Errorf("token has been revoked"))
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apierr.New(401, "invalid_token", fmt.Errorf("malformed subject"))
	}
	return userID, nil
}

// Invite creates an inactive account and mails a single-use activation link.
// Re-inviting an inactive account replaces the outstanding invite.
func (s *authService) Invite(ctx context.Context, email, name, role string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apierr.BadRequest("invalid_email", fmt.Errorf("email is required"))
	}
	if role == "" {
		role = "admin"
	}
	var user *types.User
	var token string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.userRepo.GetByEmail(ctx, tx, email)
		switch {
		case err == nil:
			if existing.Active {
				return apierr.Conflict("email_taken", fmt.Errorf("an active account already uses %s", email))
			}
			user = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			user, err = s.userRepo.Create(ctx, tx, &types.User{
				Email:  email,
				Name:   name,
				Role:   role,
				Active: false,
			})
			if err != nil {
				return err
			}
		default:
			return err
		}
		if err := s.tokenRepo.DeleteByUserAndKind(ctx, tx, user.ID, types.TokenKindInvite); err != nil {
			return err
		}
		token, err = randomToken()
		if err != nil {
			return err
		}
		_, err = s.tokenRepo.Create(ctx, tx, &types.UserToken{
			UserID:    user.ID,
			Kind:      types.TokenKindInvite,
			Token:     token,
			ExpiresAt: time.Now().Add(s.cfg.InviteTokenTTL),
		})
		return err
	})
	if err != nil {
		return err
	}
	s.sendMail(user.Email, "You've been invited",
		fmt.Sprintf("You've been invited to the planning back office. Activate your account: %s/activate?token=%s", s.cfg.FrontOfficeURL, token))
	return nil
}

func (s *authService) Activate(ctx context.Context, inviteToken, password string) (*LoginResult, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	var result *LoginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.tokenRepo.GetActive(ctx, tx, types.TokenKindInvite, inviteToken)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.BadRequest("invalid_invite", fmt.Errorf("invite is invalid or expired"))
			}
			return err
		}
		if err := s.tokenRepo.Consume(ctx, tx, row.ID); err != nil {
			return err
		}
		user, err := s.userRepo.GetByID(ctx, tx, row.UserID)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user.PasswordHash = string(hash)
		user.Active = true
		if err := s.userRepo.Update(ctx, tx, user); err != nil {
			return err
		}
		result, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RequestRecovery never discloses whether the email exists.
func (s *authService) RequestRecovery(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	var token string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tokenRepo.DeleteByUserAndKind(ctx, tx, user.ID, types.TokenKindRecovery); err != nil {
			return err
		}
		token, err = randomToken()
		if err != nil {
			return err
		}
		_, err = s.tokenRepo.Create(ctx, tx, &types.UserToken{
			UserID:    user.ID,
			Kind:      types.TokenKindRecovery,
			Token:     token,
			ExpiresAt: time.Now().Add(s.cfg.RecoveryTTL),
		})
		return err
	})
	if err != nil {
		return err
	}
	s.sendMail(user.Email, "Password recovery",
		fmt.Sprintf("Reset your password: %s/reset-password?token=%s", s.cfg.FrontOfficeURL, token))
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, recoveryToken, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.tokenRepo.GetActive(ctx, tx, types.TokenKindRecovery, recoveryToken)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.BadRequest("invalid_recovery", fmt.Errorf("recovery token is invalid or expired"))
			}
			return err
		}
		if err := s.tokenRepo.Consume(ctx, tx, row.ID); err != nil {
			return err
		}
		user, err := s.userRepo.GetByID(ctx, tx, row.UserID)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user.PasswordHash = string(hash)
		if err := s.userRepo.Update(ctx, tx, user); err != nil {
			return err
		}
		// a recovered account loses its existing sessions
		return s.tokenRepo.DeleteByUserAndKind(ctx, tx, user.ID, types.TokenKindRefresh)
	})
}

func (s *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*LoginResult, error) {
	now := time.Now()
	claims := accessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	if _, err := s.tokenRepo.Create(ctx, tx, &types.UserToken{
		UserID:    user.ID,
		Kind:      types.TokenKindRefresh,
		Token:     refresh,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

func (s *authService) parseAccess(accessToken string) (*accessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, apierr.New(401, "invalid_token", err)
	}
	return &claims, nil
}

// sendMail is fire-and-forget: a mail failure never fails the request that
// triggered it.
func (s *authService) sendMail(to, subject, body string) {
	if s.mailer == nil {
		s.log.Debug("mailer not configured, skipping email", "subject", subject)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.mailer.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: to}},
			Subject: subject,
			Text:    body,
		}); err != nil {
			s.log.Warn("email send failed", "subject", subject, "error", err)
		}
	}()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return apierr.BadRequest("weak_password", fmt.Errorf("password must be at least 8 characters"))
	}
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
