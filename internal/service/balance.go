package service

import (
	"context"
	"errors"
	"fmt"

	"namocoins/internal/database"
	"namocoins/internal/model"
)

type BalanceReader interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type BalanceService struct {
	users BalanceReader
}

func NewBalanceService(users BalanceReader) *BalanceService {
	return &BalanceService{users: users}
}

type Balance struct {
	Coins             int    `json:"coins"`
	MinecraftUsername string `json:"minecraft_username"`
}

func (s *BalanceService) Get(ctx context.Context, caller model.Caller) (*Balance, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}

	u, err := s.users.UserByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &Balance{Coins: u.CoinBalance, MinecraftUsername: u.MinecraftUsername}, nil
}
