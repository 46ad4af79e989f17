package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Skotchmaster/marketplace/internal/credential"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/session"
	"github.com/Skotchmaster/marketplace/internal/transport/forms"
)

const MsgPasswordTooLong = "Password is too long."

// dummyHash is compared against when the user does not exist, so that a
// failed login costs one bcrypt comparison either way.
var dummyHash = sync.OnceValue(func() string {
	h, _ := credential.Hash("marketplace-timing-equalizer")
	return h
})

type AuthService struct {
	Repo     *repo.GormRepo
	Sessions session.Store
	Events   events.Publisher
}

func (s *AuthService) Signup(ctx context.Context, form forms.SignupForm) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	form.Normalize()
	if err := form.Validate(); err != nil {
		l.Info("signup_rejected", "reason", err.Error())
		return nil, invalid(err)
	}

	pwHash, err := credential.Hash(form.Password)
	if err != nil {
		if errors.Is(err, credential.ErrPasswordTooLong) {
			return nil, &ValidationError{Message: MsgPasswordTooLong, Err: err}
		}
		return nil, err
	}

	user := &models.User{
		Fullname: form.Fullname,
		Username: form.Username,
		Email:    form.Email,
		Password: pwHash,
	}

	err = s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		existing, err := tx.FindUserByUsernameOrEmailPair(ctx, form.Username, form.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrUniqueness
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrUniqueness
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUniqueness) {
			l.Info("signup_rejected", "reason", "duplicate", "username", form.Username)
			return nil, ErrUniqueness
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	l.Info("signup_successful", "user_id", user.ID, "username", user.Username)
	s.publish(ctx, events.Event{Type: events.UserRegistered, UserID: user.ID, Username: user.Username})
	return user, nil
}

// Login verifies credentials and opens a new server-side session. A session
// the caller already holds is discarded first.
func (s *AuthService) Login(ctx context.Context, prior session.AuthContext, form forms.LoginForm) (*session.Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, invalid(err)
	}

	user, err := s.Repo.FindUserByUsername(ctx, form.Username)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if user == nil {
		credential.Verify(form.Password, dummyHash())
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}
	if !credential.Verify(form.Password, user.Password) {
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	if prior.SessionID != "" {
		if err := s.Sessions.Delete(ctx, prior.SessionID); err != nil {
			l.Error("session_delete_failed", "error", err)
		}
	}

	sess, err := s.Sessions.Create(ctx, user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	l.Info("login_successful", "user_id", user.ID, "username", user.Username)
	s.publish(ctx, events.Event{Type: events.UserLoggedIn, UserID: user.ID, Username: user.Username})
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, auth session.AuthContext) error {
	if auth.SessionID == "" {
		return nil
	}
	if err := s.Sessions.Delete(ctx, auth.SessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	logging.FromContext(ctx).Info("logout_successful", "svc", "auth.logout", "username", auth.Username)
	return nil
}

func (s *AuthService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.TopicUsers, ev); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "event", ev.Type, "error", err)
	}
}
