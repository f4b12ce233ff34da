package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"
)

// HTTPHostConfig points at an unsigned-upload endpoint of a hosted asset
// service.
type HTTPHostConfig struct {
	UploadURL string
	// Preset names the server-side upload policy (folder, allowed formats).
	Preset  string
	Timeout time.Duration
}

// HTTPHost posts files as multipart/form-data and reads back the hosted URL.
type HTTPHost struct {
	cfg    HTTPHostConfig
	client *http.Client
	nowFn  func() time.Time
}

func NewHTTPHost(cfg HTTPHostConfig, client *http.Client) *HTTPHost {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPHost{cfg: cfg, client: client, nowFn: time.Now}
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (h *HTTPHost) Upload(ctx context.Context, meta Asset, content io.Reader) (*Asset, error) {
	if err := ValidateMeta(meta); err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}
	meta.ContentType = normalizeContentType(meta.ContentType)

	body, contentType, err := h.encode(meta, data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.UploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", meta.FileName, err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("asset host returned %d: %s", resp.StatusCode, msg)
	}

	url := out.SecureURL
	if url == "" {
		url = out.URL
	}
	if url == "" {
		return nil, errors.New("asset host response has no url")
	}

	meta.ID = out.PublicID
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	meta.Size = int64(len(data))
	meta.Hash = hash
	meta.URL = url
	meta.CreatedAt = h.nowFn().UTC()
	return &meta, nil
}

func (h *HTTPHost) encode(meta Asset, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if h.cfg.Preset != "" {
		if err := w.WriteField("upload_preset", h.cfg.Preset); err != nil {
			return nil, "", fmt.Errorf("write preset: %w", err)
		}
	}
	if meta.OwnerID != "" {
		if err := w.WriteField("folder", "afiliados/"+meta.OwnerID); err != nil {
			return nil, "", fmt.Errorf("write folder: %w", err)
		}
	}
	if meta.Kind != "" {
		if err := w.WriteField("tags", string(meta.Kind)); err != nil {
			return nil, "", fmt.Errorf("write tags: %w", err)
		}
	}

	part := make(textproto.MIMEHeader)
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, meta.FileName))
	part.Set("Content-Type", meta.ContentType)
	fw, err := w.CreatePart(part)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
