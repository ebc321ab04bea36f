package memstore

import (
	"context"
	"time"

	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

type UserRepository struct {
	s *Store
}

func cloneUser(u types.User) types.User {
	u.OTPExpiresAt = cloneTime(u.OTPExpiresAt)
	return u
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) GetByMobile(_ context.Context, mobile string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Mobile == mobile {
			return cloneUser(user), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Mobile == user.Mobile {
			return types.User{}, store.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = types.NewID()
	}
	if _, taken := r.s.users[user.ID]; taken {
		return types.User{}, store.ErrDuplicate
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user = cloneUser(user)
	r.s.users[user.ID] = user
	return cloneUser(user), nil
}

func (r *UserRepository) SetCode(_ context.Context, id, code string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.OTP = code
	user.OTPExpiresAt = &expiresAt
	user.UpdatedAt = r.s.now()
	r.s.users[id] = user
	return nil
}

func (r *UserRepository) SetRole(_ context.Context, id string, role types.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = r.s.now()
	r.s.users[id] = user
	return nil
}

func (r *UserRepository) ConsumeCode(_ context.Context, id, code string, now time.Time, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok || user.OTP == "" || user.OTP != code || user.OTPExpiresAt == nil || user.OTPExpiresAt.Before(now) {
		return store.ErrNotFound
	}
	user.OTP = ""
	user.OTPExpiresAt = nil
	if passwordHash != "" {
		user.PasswordHash = passwordHash
	}
	user.UpdatedAt = now
	r.s.users[id] = user
	return nil
}
