package model

import (
	"time"
)

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	MinecraftUsername string    `json:"minecraft_username"`
	Phone             string    `json:"phone"`
	PasswordHash      []byte    `json:"-"`
	CoinBalance       int       `json:"coin_balance"`
	CreatedAt         time.Time `json:"created_at"`
}

// Caller identifies who invokes a service operation.
type Caller struct {
	UserID string
	Admin  bool
}

func AdminCaller() Caller {
	return Caller{Admin: true}
}

func UserCaller(userID string) Caller {
	return Caller{UserID: userID}
}
