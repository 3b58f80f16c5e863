package iam

import "errors"

var (
	ErrInvalidInput = errors.New("iam: invalid input")
	ErrNotFound     = errors.New("iam: not found")
	ErrConflict     = errors.New("iam: resource conflict")

	// Identity-layer failures, surfaced as 401. None are retried: a failed
	// verification is terminal for the request.
	ErrInvalidToken      = errors.New("iam: invalid token")
	ErrTokenExpired      = errors.New("iam: token expired")
	ErrTokenRevoked      = errors.New("iam: token revoked")
	ErrPrincipalNotFound = errors.New("iam: principal not found")

	ErrInvalidCredentials = errors.New("iam: invalid credentials")
)
