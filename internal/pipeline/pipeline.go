package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sac2665/apex-transcriber-backend/internal/brightcove"
	"github.com/sac2665/apex-transcriber-backend/internal/cues"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
	"github.com/sac2665/apex-transcriber-backend/internal/whisper"
)

// Caller-visible messages. Internal error kinds stay distinguishable in
// the logs only.
const (
	msgNotFound            = "Video not found or no MP4/MOV available."
	msgTranscriptionFailed = "Transcription failed."
)

// TokenProvider exchanges client credentials for a bearer token.
type TokenProvider interface {
	AcquireToken(ctx context.Context) (string, error)
}

// SourceResolver picks a playable source for a video, or nil when none
// is acceptable.
type SourceResolver interface {
	ResolveSource(ctx context.Context, videoID, token string) (*types.MediaSource, error)
}

// AudioExtractor produces a local audio file from a source URL.
type AudioExtractor interface {
	Extract(ctx context.Context, sourceURL string) (string, error)
}

// AudioTransport shapes a local audio file into a job-submittable
// reference.
type AudioTransport interface {
	Prepare(ctx context.Context, path string) (types.AudioRef, error)
}

// Transcriber runs one asynchronous transcription job to completion.
type Transcriber interface {
	Transcribe(ctx context.Context, ref types.AudioRef) ([]types.TranscriptSegment, error)
}

// Exporter persists cue rows and returns an opaque download filename.
type Exporter interface {
	Write(rows []types.CueRow) (string, error)
}

// Result is the single shape every run resolves to: a download
// reference on success, or one error string. Never both, never partial.
type Result struct {
	DownloadURL string `json:"downloadUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

type Pipeline struct {
	tokens      TokenProvider
	sources     SourceResolver
	audio       AudioExtractor
	transport   AudioTransport
	transcriber Transcriber
	exporter    Exporter
}

func New(tokens TokenProvider, sources SourceResolver, audio AudioExtractor, transport AudioTransport, transcriber Transcriber, exporter Exporter) *Pipeline {
	return &Pipeline{
		tokens:      tokens,
		sources:     sources,
		audio:       audio,
		transport:   transport,
		transcriber: transcriber,
		exporter:    exporter,
	}
}

// Run executes the whole pipeline for one video and never lets an
// internal fault escape: every failure, including a collaborator panic,
// comes back as a Result with one error string.
func (p *Pipeline) Run(ctx context.Context, videoID string) (result Result) {
	log := logger.New().WithField("module", "pipeline").WithField("video_id", videoID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("unhandled fault in pipeline")
			result = Result{Error: fmt.Sprintf("internal error: %v", r)}
		}
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("pipeline finished")
	}()

	token, err := p.tokens.AcquireToken(ctx)
	if err != nil {
		return p.fail(log, "token", err)
	}

	source, err := p.sources.ResolveSource(ctx, videoID, token)
	if err != nil {
		return p.fail(log, "resolve_source", err)
	}
	if source == nil {
		log.Info("no acceptable media source")
		return Result{Error: msgNotFound}
	}

	audioPath, err := p.audio.Extract(ctx, source.Src)
	if err != nil {
		return p.fail(log, "extract_audio", err)
	}

	ref, err := p.transport.Prepare(ctx, audioPath)
	if err != nil {
		return p.fail(log, "transport", err)
	}

	segments, err := p.transcriber.Transcribe(ctx, ref)
	if err != nil {
		return p.fail(log, "transcribe", err)
	}

	rows := cues.Extract(segments)

	filename, err := p.exporter.Write(rows)
	if err != nil {
		return p.fail(log, "export", err)
	}

	log.WithField("rows", len(rows)).Info("pipeline succeeded")
	return Result{DownloadURL: "/api/download/" + filename}
}

// fail logs the step and internal error kind, then collapses everything
// into the uniform caller-visible shape.
func (p *Pipeline) fail(log *logrus.Entry, step string, err error) Result {
	log.WithFields(logrus.Fields{"step": step, "error": err.Error()}).Warn("pipeline step failed")

	switch {
	case errors.Is(err, whisper.ErrJobFailed):
		return Result{Error: msgTranscriptionFailed}
	case errors.Is(err, whisper.ErrPollDeadline):
		return Result{Error: "Transcription timed out."}
	case errors.Is(err, brightcove.ErrAuth):
		return Result{Error: "Authentication with the video platform failed."}
	default:
		return Result{Error: err.Error()}
	}
}
