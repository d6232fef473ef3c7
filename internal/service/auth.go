package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"namocoins/internal/database"
	"namocoins/internal/model"
)

const (
	MinPasswordLen = 6
	TokenTTL       = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingFields      = errors.New("please fill all fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	ErrInvalidHandle      = errors.New("minecraft username must be 3-16 letters, digits or underscores")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByLogin(ctx context.Context, identifier string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type Registration struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	MinecraftUsername string `json:"minecraft_username"`
	Phone             string `json:"phone"`
	Password          string `json:"password"`
	ConfirmPassword   string `json:"confirm_password"`
}

// AdminCredentials come from configuration. PasswordHash is an encoded
// argon2id hash as printed by HashAdminPassword.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

type AuthService struct {
	store  UserStore
	secret []byte
	admin  AdminCredentials
}

func NewAuthService(store UserStore, secret string, admin AdminCredentials) *AuthService {
	return &AuthService{store: store, secret: []byte(secret), admin: admin}
}

func (s *AuthService) Register(ctx context.Context, r Registration) (*model.User, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.MinecraftUsername = strings.TrimSpace(r.MinecraftUsername)
	r.Phone = strings.TrimSpace(r.Phone)

	if r.Email == "" || r.Name == "" || r.MinecraftUsername == "" || r.Phone == "" ||
		r.Password == "" || r.ConfirmPassword == "" {
		return nil, ErrMissingFields
	}
	if !ValidPlayerHandle(r.MinecraftUsername) {
		return nil, ErrInvalidHandle
	}
	if r.Password != r.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if len(r.Password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:                uuid.NewString(),
		Email:             r.Email,
		Name:              r.Name,
		MinecraftUsername: r.MinecraftUsername,
		Phone:             r.Phone,
		PasswordHash:      hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Authenticate accepts either the email or the display name as identifier.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.UserByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) AuthenticateAdmin(email, password string) error {
	if s.admin.Email == "" || s.admin.PasswordHash == "" {
		log.Warn("admin login attempted but ADMIN_EMAIL/ADMIN_PASSWORD_HASH are not set")
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(s.admin.Email)) != 1 {
		return ErrInvalidCredentials
	}
	if !verifyArgon2id(password, s.admin.PasswordHash) {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken signs an HS256 token for the caller, valid for TokenTTL.
func (s *AuthService) IssueToken(caller model.Caller) (string, error) {
	claims := jwt.MapClaims{
		"exp": jwt.NewNumericDate(time.Now().Add(TokenTTL)),
	}
	if caller.UserID != "" {
		claims["user_id"] = caller.UserID
	}
	if caller.Admin {
		claims["admin"] = true
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

const (
	argonMemory      uint32 = 64 * 1024
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLen      uint32 = 32
	argonSaltLen            = 16
)

// HashAdminPassword encodes password as
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
func HashAdminPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("malformed argon2id hash")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("parse argon2id parameters")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("decode argon2id salt")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("decode argon2id hash")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
