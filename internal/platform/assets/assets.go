// Package assets uploads member attachments (proof of studies, disability
// certificates) to an asset host and returns where they can be fetched.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrAssetNotFound      = errors.New("asset not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the largest accepted attachment (10 MB).
const MaxFileSize = 10 << 20

// AllowedContentTypes are the scan formats staff upload.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// Kind tags what an attachment proves.
type Kind string

const (
	KindStudentProof    Kind = "constancia_estudios"
	KindDisabilityProof Kind = "certificado_discapacidad"
)

// Asset describes an uploaded file.
type Asset struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Kind        Kind      `json:"kind"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Host stores file content and returns the hosted asset.
type Host interface {
	Upload(ctx context.Context, meta Asset, content io.Reader) (*Asset, error)
}

// ValidateMeta checks the fields callers must supply before upload.
func ValidateMeta(meta Asset) error {
	if strings.TrimSpace(meta.FileName) == "" {
		return ErrMissingFileName
	}
	if !AllowedContentTypes[normalizeContentType(meta.ContentType)] {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, meta.ContentType)
	}
	return nil
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// readLimited reads at most MaxFileSize bytes and returns the content with
// its SHA-256.
func readLimited(content io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read content: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
