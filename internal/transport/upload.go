package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

// UploadTransport POSTs the artifact to an anonymous temporary file
// host and hands the inference service the resulting download URL.
type UploadTransport struct {
	httpClient *http.Client
	uploadURL  string
}

func NewUploadTransport(cfg *config.Config) *UploadTransport {
	return &UploadTransport{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		uploadURL:  cfg.UploadURL,
	}
}

type uploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (t *UploadTransport) Prepare(ctx context.Context, path string) (types.AudioRef, error) {
	log := logger.New().WithField("module", "transport")

	f, err := os.Open(path)
	if err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "open audio: %v", err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "multipart: %v", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "copy audio: %v", err)
	}
	_ = w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, &b)
	if err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "build upload request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "upload: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "upload status %d: %s", resp.StatusCode, string(body))
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err != nil || ur.Data.URL == "" {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "unexpected upload response: %s", string(body))
	}

	direct, err := NormalizeURL(ur.Data.URL)
	if err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "normalize url: %v", err)
	}

	log.WithField("url", direct).Info("audio uploaded")
	return types.AudioRef{URL: direct}, nil
}

// NormalizeURL rewrites the host's page URL into its direct-download
// form: strips the stray trailing semicolon the API appends and inserts
// the /dl/ path segment when absent.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), ";")
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.Errorf("no host in %q", raw)
	}
	if !strings.HasPrefix(u.Path, "/dl/") {
		u.Path = "/dl" + u.Path
	}
	return u.String(), nil
}
