package clip

import "errors"

// Failure taxonomy. Every failure a component reports wraps one of
// these sentinels so callers can branch with errors.Is.
var (
	// ErrPermissionDenied: the OS accessibility/input grant is missing.
	// Fail-fast; no clipboard mutation has happened.
	ErrPermissionDenied = errors.New("clip: permission denied")

	// ErrDeliveryFailed: both synthetic injection and the scripted
	// fallback failed. The payload is left on the clipboard so the user
	// can paste manually.
	ErrDeliveryFailed = errors.New("clip: delivery failed")

	// ErrIntegrity: decryption failed on tampered or corrupt data.
	ErrIntegrity = errors.New("clip: ciphertext integrity check failed")

	// ErrStorage: a persistent write failed; the in-memory change was
	// rolled back.
	ErrStorage = errors.New("clip: storage failure")

	// ErrImageTooLarge: an image payload exceeded the ingestion ceiling.
	// Soft failure; no history item is created.
	ErrImageTooLarge = errors.New("clip: image too large")

	// ErrNotFound: referenced item or folder does not exist.
	ErrNotFound = errors.New("clip: not found")
)
