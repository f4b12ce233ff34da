package assets

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func pdfMeta() Asset {
	return Asset{OwnerID: "m-1", Kind: KindStudentProof, FileName: "constancia.pdf", ContentType: "application/pdf"}
}

func TestValidateMeta(t *testing.T) {
	tests := []struct {
		name string
		meta Asset
		want error
	}{
		{"valid pdf", pdfMeta(), nil},
		{"png with params", Asset{FileName: "a.png", ContentType: "image/PNG; charset=binary"}, nil},
		{"missing name", Asset{FileName: "  ", ContentType: "application/pdf"}, ErrMissingFileName},
		{"bad type", Asset{FileName: "a.exe", ContentType: "application/x-msdownload"}, ErrInvalidContentType},
	}
	for _, tt := range tests {
		err := ValidateMeta(tt.meta)
		if tt.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestMemoryHost_UploadAndGet(t *testing.T) {
	h := NewMemoryHost()
	ctx := context.Background()

	a, err := h.Upload(ctx, pdfMeta(), strings.NewReader("%PDF-1.4 contents"))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if a.ID == "" || a.URL != "memory://"+a.ID {
		t.Errorf("unexpected id/url: %s %s", a.ID, a.URL)
	}
	if a.Size != int64(len("%PDF-1.4 contents")) {
		t.Errorf("unexpected size %d", a.Size)
	}
	if len(a.Hash) != 64 {
		t.Errorf("expected sha256 hex, got %q", a.Hash)
	}

	got, content, err := h.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.FileName != "constancia.pdf" || string(content) != "%PDF-1.4 contents" {
		t.Errorf("unexpected stored asset: %+v %q", got, content)
	}
}

func TestMemoryHost_GetNotFound(t *testing.T) {
	if _, _, err := NewMemoryHost().Get(context.Background(), "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestMemoryHost_TooLarge(t *testing.T) {
	big := bytes.Repeat([]byte("x"), MaxFileSize+1)
	_, err := NewMemoryHost().Upload(context.Background(), pdfMeta(), bytes.NewReader(big))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestMemoryHost_ListByOwner(t *testing.T) {
	h := NewMemoryHost()
	ctx := context.Background()

	for _, owner := range []string{"m-1", "m-2", "m-1"} {
		meta := pdfMeta()
		meta.OwnerID = owner
		if _, err := h.Upload(ctx, meta, strings.NewReader("x")); err != nil {
			t.Fatalf("Upload() error: %v", err)
		}
	}
	if got := h.ListByOwner(ctx, "m-1"); len(got) != 2 {
		t.Errorf("expected 2 assets for m-1, got %d", len(got))
	}
	if got := h.ListByOwner(ctx, "nobody"); len(got) != 0 {
		t.Errorf("expected none, got %d", len(got))
	}
}
