package service

import "errors"

// Ошибки, видимые пользователю. Ошибки хранилища и канала доставки
// оборачиваются через fmt.Errorf и наружу уходят как 500.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("status can only move forward")
	ErrProofRequired      = errors.New("proof image required to resolve an incident")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
)
