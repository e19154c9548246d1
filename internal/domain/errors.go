package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited indicates rate limit exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrNotConfigured indicates a missing credential or endpoint
	ErrNotConfigured = errors.New("service not configured")
	// ErrNotReady indicates a collaborator has not been initialized yet
	ErrNotReady = errors.New("service not ready")
	// ErrUpstream indicates an embedding, completion or vector index call failed
	ErrUpstream = errors.New("upstream call failed")
	// ErrCollectionExists is returned when creating a collection that already exists
	ErrCollectionExists = errors.New("collection already exists")
)
