// Package users keeps the registered accounts shown on the compass screen.
package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// GuestID is the id used when no one is signed in.
const GuestID = -1

// DefaultActivity is recorded when registration names no sports activity.
const DefaultActivity = "Ninguna"

type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	SportsActivity string    `json:"sportsActivity"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Registration is the input to Register.
type Registration struct {
	Email          string `json:"email" validate:"required,email"`
	FullName       string `json:"fullName" validate:"required"`
	SportsActivity string `json:"sportsActivity"`
	Password       string `json:"password" validate:"required,min=8"`
}

// Lookup is the read side used by the feature controllers.
type Lookup interface {
	GetByID(ctx context.Context, id int) (*User, error)
}

type account struct {
	user User
	hash string
}

// MemoryRepository stores users in memory, keyed by id and by email.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int
	byID    map[int]*account
	byEmail map[string]*account
	cost    int
}

// NewMemoryRepository creates an empty repository. cost is the bcrypt cost;
// zero means bcrypt.DefaultCost.
func NewMemoryRepository(cost int) *MemoryRepository {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &MemoryRepository{
		nextID:  1,
		byID:    make(map[int]*account),
		byEmail: make(map[string]*account),
		cost:    cost,
	}
}

// preHash lets passwords longer than bcrypt's 72 byte limit count in full.
func preHash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:]))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. The email must not be registered yet.
func (r *MemoryRepository) Register(ctx context.Context, reg Registration) (*User, error) {
	email := normalizeEmail(reg.Email)
	name := strings.TrimSpace(reg.FullName)
	if email == "" || name == "" || reg.Password == "" {
		return nil, errors.New("email, full name and password must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword(preHash(reg.Password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	activity := strings.TrimSpace(reg.SportsActivity)
	if activity == "" {
		activity = DefaultActivity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	acc := &account{
		user: User{
			ID:             r.nextID,
			Email:          email,
			FullName:       name,
			SportsActivity: activity,
			CreatedAt:      time.Now().UTC(),
		},
		hash: string(hash),
	}
	r.nextID++
	r.byID[acc.user.ID] = acc
	r.byEmail[email] = acc

	u := acc.user
	return &u, nil
}

// Authenticate returns the user for a matching email and password.
func (r *MemoryRepository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	r.mu.RLock()
	acc, ok := r.byEmail[normalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.hash), preHash(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := acc.user
	return &u, nil
}

// GetByID returns nil, nil for an unknown id.
func (r *MemoryRepository) GetByID(ctx context.Context, id int) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	u := acc.user
	return &u, nil
}
