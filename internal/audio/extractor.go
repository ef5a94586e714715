package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
)

// ErrExtraction means the transcoder failed or produced no output file.
var ErrExtraction = errors.New("audio extraction failed")

// Extractor shells out to ffmpeg to strip the audio track from a source
// URL into a local MP3. The source may be a remote stream; ffmpeg reads
// it directly.
type Extractor struct {
	ffmpegPath string
	scratchDir string
}

func NewExtractor(cfg *config.Config) *Extractor {
	return &Extractor{
		ffmpegPath: cfg.FFmpegPath,
		scratchDir: cfg.ScratchDir,
	}
}

// buildArgs returns the fixed encoding profile: no video, stereo,
// 44.1kHz, 192kbps MP3.
func buildArgs(sourceURL, outPath string) []string {
	return []string{
		"-i", sourceURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "44100",
		"-ac", "2",
		"-ab", "192k",
		"-f", "mp3",
		outPath,
	}
}

// Extract transcodes the source into a uniquely named scratch file and
// returns its path. Transcoder failures come back as ErrExtraction with
// stderr context; they never escape as a panic. The scratch file is not
// cleaned up here.
func (e *Extractor) Extract(ctx context.Context, sourceURL string) (string, error) {
	log := logger.New().WithField("module", "audio")

	outPath := filepath.Join(e.scratchDir, fmt.Sprintf("audio_%s.mp3", strings.ReplaceAll(uuid.New().String(), "-", "")))
	log.WithField("out_path", outPath).Info("extracting audio track")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, buildArgs(sourceURL, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.WithError(err).WithField("stderr", tail(stderr.String())).Error("ffmpeg failed")
		return "", errors.Wrapf(ErrExtraction, "ffmpeg: %v: %s", err, tail(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return "", errors.Wrap(ErrExtraction, "ffmpeg produced no output")
	}

	log.WithField("bytes", info.Size()).Info("audio extracted")
	return outPath, nil
}

// tail keeps error messages readable; ffmpeg stderr is verbose and the
// useful part is at the end.
func tail(s string) string {
	const max = 512
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
