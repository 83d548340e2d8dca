package services

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

func newAuthService(t *testing.T, gdb *gorm.DB) AuthService {
	t.Helper()
	log := newTestLogger(t)
	return NewAuthService(
		gdb,
		log,
		AuthConfig{JWTSecret: []byte("test-secret")},
		repos.NewUserRepo(gdb, log),
		repos.NewUserTokenRepo(gdb, log),
		nil,
	)
}

func seedActiveUser(t *testing.T, gdb *gorm.DB, email, password string) *types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &types.User{
		Email:        email,
		Name:         "Analyst",
		Role:         "admin",
		Active:       true,
		PasswordHash: string(hash),
	}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestLogin(t *testing.T) {
	gdb := newTestDB(t)
	svc := newAuthService(t, gdb)
	ctx := context.Background()
	user := seedActiveUser(t, gdb, "analyst@city.gov", "correct horse")

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@city.gov", "whatever")
		wantAPIError(t, err, 401, "invalid_credentials")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, user.Email, "wrong")
		wantAPIError(t, err, 401, "invalid_credentials")
	})

	t.Run("email is case-insensitive", func(t *testing.T) {
		result, err := svc.Login(ctx, "  Analyst@City.GOV ", "correct horse")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		got, err := svc.ValidateAccessToken(ctx, result.AccessToken)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if got != user.ID {
			t.Fatalf("token subject %s, want %s", got, user.ID)
		}
	})

	t.Run("inactive account", func(t *testing.T) {
		inactive := &types.User{Email: "new@city.gov", Role: "admin"}
		if err := gdb.Create(inactive).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
		_, err := svc.Login(ctx, inactive.Email, "anything")
		wantAPIError(t, err, 401, "account_inactive")
	})
}

func TestRefreshRotation(t *testing.T) {
	gdb := newTestDB(t)
	svc := newAuthService(t, gdb)
	ctx := context.Background()
	user := seedActiveUser(t, gdb, "analyst@city.gov", "correct horse")

	first, err := svc.Login(ctx, user.Email, "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	t.Run("consumed token is single-use", func(t *testing.T) {
		_, err := svc.Refresh(ctx, first.RefreshToken)
		wantAPIError(t, err, 401, "invalid_refresh_token")
	})

	t.Run("rotated token still works", func(t *testing.T) {
		if _, err := svc.Refresh(ctx, second.RefreshToken); err != nil {
			t.Fatalf("refresh rotated: %v", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "not-a-token")
		wantAPIError(t, err, 401, "invalid_refresh_token")
	})
}

func TestLogoutRevokesSession(t *testing.T) {
	gdb := newTestDB(t)
	svc := newAuthService(t, gdb)
	ctx := context.Background()
	user := seedActiveUser(t, gdb, "analyst@city.gov", "correct horse")

	result, err := svc.Login(ctx, user.Email, "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, result.AccessToken, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err = svc.ValidateAccessToken(ctx, result.AccessToken)
	wantAPIError(t, err, 401, "token_revoked")

	_, err = svc.Refresh(ctx, result.RefreshToken)
	wantAPIError(t, err, 401, "invalid_refresh_token")
}

func TestInviteAndActivate(t *testing.T) {
	gdb := newTestDB(t)
	svc := newAuthService(t, gdb)
	ctx := context.Background()

	if err := svc.Invite(ctx, "Planner@City.gov", "Planner", ""); err != nil {
		t.Fatalf("invite: %v", err)
	}

	var invite types.UserToken
	if err := gdb.Where("kind = ?", types.TokenKindInvite).First(&invite).Error; err != nil {
		t.Fatalf("invite token row: %v", err)
	}

	t.Run("weak password rejected", func(t *testing.T) {
		_, err := svc.Activate(ctx, invite.Token, "short")
		wantAPIError(t, err, 400, "weak_password")
	})

	result, err := svc.Activate(ctx, invite.Token, "long enough password")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !result.User.Active {
		t.Fatal("activation must flag the account active")
	}
	if result.User.Email != "planner@city.gov" {
		t.Fatalf("email not normalized: %q", result.User.Email)
	}

	t.Run("invite is single-use", func(t *testing.T) {
		_, err := svc.Activate(ctx, invite.Token, "long enough password")
		wantAPIError(t, err, 400, "invalid_invite")
	})

	t.Run("re-inviting an active account conflicts", func(t *testing.T) {
		err := svc.Invite(ctx, "planner@city.gov", "Planner", "")
		wantAPIError(t, err, 409, "email_taken")
	})

	if _, err := svc.Login(ctx, "planner@city.gov", "long enough password"); err != nil {
		t.Fatalf("login after activation: %v", err)
	}
}

func TestPasswordRecovery(t *testing.T) {
	gdb := newTestDB(t)
	svc := newAuthService(t, gdb)
	ctx := context.Background()
	user := seedActiveUser(t, gdb, "analyst@city.gov", "old password")

	t.Run("unknown email is silent", func(t *testing.T) {
		if err := svc.RequestRecovery(ctx, "nobody@city.gov"); err != nil {
			t.Fatalf("recovery for unknown email must not error: %v", err)
		}
	})

	if err := svc.RequestRecovery(ctx, user.Email); err != nil {
		t.Fatalf("request recovery: %v", err)
	}
	var recovery types.UserToken
	if err := gdb.Where("kind = ?", types.TokenKindRecovery).First(&recovery).Error; err != nil {
		t.Fatalf("recovery token row: %v", err)
	}

	if err := svc.ResetPassword(ctx, recovery.Token, "new password"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := svc.Login(ctx, user.Email, "old password"); err == nil {
		t.Fatal("old password must stop working")
	}
	if _, err := svc.Login(ctx, user.Email, "new password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	t.Run("recovery token is single-use", func(t *testing.T) {
		err := svc.ResetPassword(ctx, recovery.Token, "another password")
		wantAPIError(t, err, 400, "invalid_recovery")
	})
}
