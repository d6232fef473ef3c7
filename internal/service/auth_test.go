package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namocoins/internal/model"
)

func validRegistration() Registration {
	return Registration{
		Email:             " Steve@Example.com ",
		Name:              "steve",
		MinecraftUsername: "Steve",
		Phone:             "9876543210",
		Password:          "hunter22",
		ConfirmPassword:   "hunter22",
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewAuthService(newMemStore(), "secret", AdminCredentials{})
	ctx := context.Background()

	u, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "steve@example.com", u.Email)
	assert.Zero(t, u.CoinBalance)

	byEmail, err := svc.Authenticate(ctx, "steve@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := svc.Authenticate(ctx, "steve", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = svc.Authenticate(ctx, "steve", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	svc := NewAuthService(newMemStore(), "secret", AdminCredentials{})

	missing := validRegistration()
	missing.Phone = " "
	_, err := svc.Register(context.Background(), missing)
	assert.ErrorIs(t, err, ErrMissingFields)

	mismatch := validRegistration()
	mismatch.ConfirmPassword = "hunter23"
	_, err = svc.Register(context.Background(), mismatch)
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	for _, handle := range []string{"steve 100000", "Steve;op Steve", "st"} {
		bad := validRegistration()
		bad.MinecraftUsername = handle
		_, err = svc.Register(context.Background(), bad)
		assert.ErrorIs(t, err, ErrInvalidHandle, handle)
	}

	short := validRegistration()
	short.Password, short.ConfirmPassword = "abc", "abc"
	_, err = svc.Register(context.Background(), short)
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestAuthenticateAdmin(t *testing.T) {
	hash, err := HashAdminPassword("letmein")
	require.NoError(t, err)
	assert.Regexp(t, `^\$argon2id\$v=19\$m=65536,t=3,p=2\$`, hash)

	svc := NewAuthService(newMemStore(), "secret", AdminCredentials{Email: "admin@example.com", PasswordHash: hash})

	assert.NoError(t, svc.AuthenticateAdmin("admin@example.com", "letmein"))
	assert.ErrorIs(t, svc.AuthenticateAdmin("admin@example.com", "nope"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.AuthenticateAdmin("other@example.com", "letmein"), ErrInvalidCredentials)

	unset := NewAuthService(newMemStore(), "secret", AdminCredentials{})
	assert.ErrorIs(t, unset.AuthenticateAdmin("", ""), ErrInvalidCredentials)

	broken := NewAuthService(newMemStore(), "secret", AdminCredentials{Email: "admin@example.com", PasswordHash: "plain"})
	assert.ErrorIs(t, broken.AuthenticateAdmin("admin@example.com", "plain"), ErrInvalidCredentials)
}

func TestIssueToken(t *testing.T) {
	svc := NewAuthService(newMemStore(), "secret", AdminCredentials{})

	signed, err := svc.IssueToken(model.AdminCaller())
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, true, claims["admin"])
	assert.NotContains(t, claims, "user_id")

	signed, err = svc.IssueToken(model.UserCaller("u-1"))
	require.NoError(t, err)
	token, err = jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims = token.Claims.(jwt.MapClaims)
	assert.Equal(t, "u-1", claims["user_id"])
	assert.NotContains(t, claims, "admin")
}

func TestBalance(t *testing.T) {
	store := newMemStore()
	u := store.addUser(model.User{Email: "a@example.com", MinecraftUsername: "Alex", CoinBalance: 436})
	svc := NewBalanceService(store)

	b, err := svc.Get(context.Background(), model.UserCaller(u.ID))
	require.NoError(t, err)
	assert.Equal(t, 436, b.Coins)
	assert.Equal(t, "Alex", b.MinecraftUsername)

	_, err = svc.Get(context.Background(), model.AdminCaller())
	assert.ErrorIs(t, err, ErrForbidden)
}
