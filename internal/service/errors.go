package service

import "errors"

var (
	// ErrUnauthorized means no usable credential accompanied the request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoPermission means the resolved role does not allow the operation.
	ErrNoPermission = errors.New("no permission")

	// ErrInvalidShareLink covers unknown, expired and mismatched share tokens.
	ErrInvalidShareLink = errors.New("invalid share link")

	// ErrProjectNotFound means the referenced project does not exist.
	ErrProjectNotFound = errors.New("project not found")
)
