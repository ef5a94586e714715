package transport

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/pkg/errors"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

// ErrTransport means the audio reference could not be prepared for the
// inference service.
var ErrTransport = errors.New("audio transport failed")

// AudioTransport turns a local audio file into the reference shape the
// inference service accepts: inline payload data or a fetchable URL.
type AudioTransport interface {
	Prepare(ctx context.Context, path string) (types.AudioRef, error)
}

// Select picks the transport implementation the deployment is
// configured for.
func Select(cfg *config.Config) AudioTransport {
	if cfg.TransportMode == config.TransportInline {
		return &InlineTransport{}
	}
	return NewUploadTransport(cfg)
}

// InlineTransport reads the whole artifact into memory and encodes it
// as base64 payload data.
type InlineTransport struct{}

func (t *InlineTransport) Prepare(_ context.Context, path string) (types.AudioRef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.AudioRef{}, errors.Wrapf(ErrTransport, "read audio: %v", err)
	}
	return types.AudioRef{Data: base64.StdEncoding.EncodeToString(raw)}, nil
}
