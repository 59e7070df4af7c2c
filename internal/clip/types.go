// Package clip defines the domain types shared across clipd: content
// kinds, clipboard items, folders, payloads, and fingerprints.
package clip

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind classifies clipboard content. It is a closed enum; code that
// switches on Kind should handle every value.
type Kind uint8

const (
	KindText Kind = iota
	KindURL
	KindCode
	KindEmail
	KindNumber
	KindColor
	KindImage
)

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindURL:
		return "url"
	case KindCode:
		return "code"
	case KindEmail:
		return "email"
	case KindNumber:
		return "number"
	case KindColor:
		return "color"
	case KindImage:
		return "image"
	}
	return "unknown"
}

// ParseKind maps a stored kind name back to its enum value.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "text":
		return KindText, true
	case "url":
		return KindURL, true
	case "code":
		return KindCode, true
	case "email":
		return KindEmail, true
	case "number":
		return KindNumber, true
	case "color":
		return KindColor, true
	case "image":
		return KindImage, true
	}
	return KindText, false
}

// Payload is raw clipboard content before classification or encryption.
// Exactly one of Text or Image is set.
type Payload struct {
	Text  string
	Image []byte // PNG encoded
}

// IsImage reports whether the payload carries image bytes.
func (p Payload) IsImage() bool {
	return len(p.Image) > 0
}

// Empty reports whether the payload carries no content at all.
func (p Payload) Empty() bool {
	return p.Text == "" && len(p.Image) == 0
}

// Fingerprint returns the change fingerprint for a payload: a
// domain-separated sha256 over the raw pre-encryption bytes. It is
// stable across encryption toggling, which is what makes dedup work
// regardless of at-rest state.
func (p Payload) Fingerprint() string {
	h := sha256.New()
	if p.IsImage() {
		h.Write([]byte("clipd:image:"))
		h.Write(p.Image)
	} else {
		h.Write([]byte("clipd:text:"))
		h.Write([]byte(p.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Item is one entry in the clipboard history.
//
// Exactly one of {ClearText, CipherText} is populated for text items,
// and exactly one of {ClearImage, CipherImage} for image items, decided
// by the encryption state at write time. Items written while encryption
// was disabled stay clear even after it is enabled; readers check which
// field is populated.
type Item struct {
	ID          string
	Kind        Kind
	ClearText   string
	CipherText  []byte
	ClearImage  []byte
	CipherImage []byte

	// Preview is display text derived at classification time. While
	// encryption is enabled it is persisted sealed (CipherPreview), so
	// list rendering and search decrypt only previews, never bodies.
	Preview       string
	CipherPreview []byte
	IconKey       string

	Fingerprint string
	SourceApp   string
	CreatedAt   time.Time

	Pinned   bool
	PinnedAt *time.Time
	Favorite bool
	FolderID *string

	// Unavailable marks an item whose ciphertext failed integrity
	// verification. It stays listed but cannot be pasted.
	Unavailable bool
}

// Encrypted reports whether the item's payload is held as ciphertext.
func (it *Item) Encrypted() bool {
	return len(it.CipherText) > 0 || len(it.CipherImage) > 0
}

// Folder groups history items. Deleting a folder detaches its items.
type Folder struct {
	ID        string
	Name      string
	ColorTag  string
	ParentID  *string
	CreatedAt time.Time
}

// MaxFolderDepth bounds folder nesting.
const MaxFolderDepth = 3

// DeliveryResult is the outcome of one paste request.
type DeliveryResult uint8

const (
	DeliverySuccess DeliveryResult = iota
	DeliveryPermissionDenied
	DeliveryFailed
)

func (r DeliveryResult) String() string {
	switch r {
	case DeliverySuccess:
		return "success"
	case DeliveryPermissionDenied:
		return "permission-denied"
	case DeliveryFailed:
		return "failed"
	}
	return "unknown"
}
