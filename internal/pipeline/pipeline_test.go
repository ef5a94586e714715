package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/sac2665/apex-transcriber-backend/internal/types"
	"github.com/sac2665/apex-transcriber-backend/internal/whisper"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) AcquireToken(context.Context) (string, error) { return f.token, f.err }

type fakeSources struct {
	source *types.MediaSource
	err    error
}

func (f *fakeSources) ResolveSource(context.Context, string, string) (*types.MediaSource, error) {
	return f.source, f.err
}

type fakeExtractor struct {
	path string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, string) (string, error) { return f.path, f.err }

type fakeTransport struct {
	ref types.AudioRef
	err error
}

func (f *fakeTransport) Prepare(context.Context, string) (types.AudioRef, error) {
	return f.ref, f.err
}

type fakeTranscriber struct {
	segments []types.TranscriptSegment
	err      error
}

func (f *fakeTranscriber) Transcribe(context.Context, types.AudioRef) ([]types.TranscriptSegment, error) {
	return f.segments, f.err
}

type fakeExporter struct {
	filename string
	err      error
	rows     []types.CueRow
}

func (f *fakeExporter) Write(rows []types.CueRow) (string, error) {
	f.rows = rows
	return f.filename, f.err
}

type panicExporter struct{}

func (panicExporter) Write([]types.CueRow) (string, error) { panic("exporter blew up") }

func happyPipeline(exp Exporter) *Pipeline {
	return New(
		&fakeTokens{token: "tok"},
		&fakeSources{source: &types.MediaSource{Src: "https://cdn/x.mp4", Container: "MP4"}},
		&fakeExtractor{path: "/tmp/audio.mp3"},
		&fakeTransport{ref: types.AudioRef{URL: "https://host/dl/audio.mp3"}},
		&fakeTranscriber{segments: []types.TranscriptSegment{
			{Start: 0, End: 4, Text: "Keep cadence between 60 90 rpm"},
			{Start: 5, End: 9, Text: "Set resistance 3 7 now"},
		}},
		exp,
	)
}

func TestRunSuccess(t *testing.T) {
	exp := &fakeExporter{filename: "output_abc.xlsx"}
	res := happyPipeline(exp).Run(context.Background(), "vid-1")

	if res.Error != "" {
		t.Fatalf("unexpected error: %q", res.Error)
	}
	if res.DownloadURL != "/api/download/output_abc.xlsx" {
		t.Errorf("downloadUrl = %q", res.DownloadURL)
	}
	if len(exp.rows) != 2 {
		t.Fatalf("exported rows = %d, want 2", len(exp.rows))
	}
	if exp.rows[0].RPMLow == nil || *exp.rows[0].RPMLow != 60 {
		t.Errorf("row 0 = %+v", exp.rows[0])
	}
	if exp.rows[1].ResistanceHigh == nil || *exp.rows[1].ResistanceHigh != 7 {
		t.Errorf("row 1 = %+v", exp.rows[1])
	}
}

func TestRunNoSourceIsNotFound(t *testing.T) {
	p := New(
		&fakeTokens{token: "tok"},
		&fakeSources{source: nil},
		&fakeExtractor{}, &fakeTransport{}, &fakeTranscriber{}, &fakeExporter{},
	)
	res := p.Run(context.Background(), "vid-1")
	if res.Error != "Video not found or no MP4/MOV available." {
		t.Errorf("error = %q, want the not-found message", res.Error)
	}
	if res.DownloadURL != "" {
		t.Errorf("no download ref expected, got %q", res.DownloadURL)
	}
}

func TestRunTokenFailure(t *testing.T) {
	p := New(
		&fakeTokens{err: errors.New("exchange rejected")},
		&fakeSources{}, &fakeExtractor{}, &fakeTransport{}, &fakeTranscriber{}, &fakeExporter{},
	)
	res := p.Run(context.Background(), "vid-1")
	if res.Error == "" || res.DownloadURL != "" {
		t.Errorf("result = %+v, want error only", res)
	}
}

func TestRunTranscriptionFailure(t *testing.T) {
	p := New(
		&fakeTokens{token: "tok"},
		&fakeSources{source: &types.MediaSource{Src: "https://cdn/x.mp4", Container: "MP4"}},
		&fakeExtractor{path: "/tmp/audio.mp3"},
		&fakeTransport{ref: types.AudioRef{URL: "u"}},
		&fakeTranscriber{err: errors.Wrap(whisper.ErrJobFailed, "status failed")},
		&fakeExporter{},
	)
	res := p.Run(context.Background(), "vid-1")
	if res.Error != "Transcription failed." {
		t.Errorf("error = %q, want the transcription-failed message", res.Error)
	}
	if res.DownloadURL != "" {
		t.Errorf("no partial result allowed, got %q", res.DownloadURL)
	}
}

func TestRunPollDeadlineIsDistinct(t *testing.T) {
	p := New(
		&fakeTokens{token: "tok"},
		&fakeSources{source: &types.MediaSource{Src: "https://cdn/x.mp4", Container: "MP4"}},
		&fakeExtractor{path: "/tmp/audio.mp3"},
		&fakeTransport{ref: types.AudioRef{URL: "u"}},
		&fakeTranscriber{err: errors.Wrap(whisper.ErrPollDeadline, "still processing")},
		&fakeExporter{},
	)
	res := p.Run(context.Background(), "vid-1")
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("error = %q, want a timed-out message distinct from job failure", res.Error)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	res := happyPipeline(panicExporter{}).Run(context.Background(), "vid-1")
	if res.Error == "" || !strings.Contains(res.Error, "internal error") {
		t.Errorf("panic must become an error result, got %+v", res)
	}
}

func TestRunShortCircuitsOnExtractionFailure(t *testing.T) {
	tr := &fakeTranscriber{segments: []types.TranscriptSegment{{Start: 0, End: 1, Text: "x"}}}
	p := New(
		&fakeTokens{token: "tok"},
		&fakeSources{source: &types.MediaSource{Src: "https://cdn/x.mp4", Container: "MP4"}},
		&fakeExtractor{err: errors.New("ffmpeg exit 1")},
		&fakeTransport{}, tr, &fakeExporter{},
	)
	res := p.Run(context.Background(), "vid-1")
	if res.Error == "" {
		t.Fatal("expected error result")
	}
	if res.DownloadURL != "" {
		t.Errorf("pipeline must be all-or-nothing, got %q", res.DownloadURL)
	}
}
