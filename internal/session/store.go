package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type Session = models.Session

// Store persists sessions server-side, keyed by the id carried in the cookie.
type Store interface {
	Create(ctx context.Context, userID uint, username string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

func newSession(userID uint, username string, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

type GormStore struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{DB: db, TTL: ttl, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *GormStore) Create(ctx context.Context, userID uint, username string) (*Session, error) {
	sess := newSession(userID, username, s.TTL, s.Now())
	if err := s.DB.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Expired(s.Now()) {
		_ = s.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Purge removes expired sessions.
func (s *GormStore) Purge(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", s.Now()).Delete(&Session{})
	return res.RowsAffected, res.Error
}
