package service

import (
	"errors"

	"namocoins/internal/model"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidStatus   = model.ErrInvalidStatus
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product fields")
)
