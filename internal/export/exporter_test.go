package export

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	progress atomic.Uint64
	run      func(ctx context.Context, s *fakeSession) error
}

func (s *fakeSession) Progress() float64 {
	return math.Float64frombits(s.progress.Load())
}

func (s *fakeSession) set(v float64) {
	s.progress.Store(math.Float64bits(v))
}

func (s *fakeSession) Run(ctx context.Context) error {
	return s.run(ctx, s)
}

type fakeTranscoder struct {
	asset   *media.Asset
	loadErr error
	run     func(ctx context.Context, s *fakeSession) error

	mu       sync.Mutex
	sessions int
	outputs  []string
}

func (f *fakeTranscoder) LoadAsset(ctx context.Context, path string) (*media.Asset, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	a := *f.asset
	a.Path = path
	return &a, nil
}

func (f *fakeTranscoder) NewSession(g *composition.RenderGraph, outputPath string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	f.outputs = append(f.outputs, outputPath)
	return &fakeSession{run: f.run}, nil
}

func (f *fakeTranscoder) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func hdAsset() *media.Asset {
	return &media.Asset{
		Duration: 10 * time.Second,
		Tracks: []media.TrackInfo{
			{Kind: media.TrackVideo, Index: 0, NaturalSize: media.Size{Width: 1920, Height: 1080}, Transform: media.Identity},
			{Kind: media.TrackAudio, Index: 1},
		},
	}
}

// steadyRun advances progress in steps and succeeds
func steadyRun(ctx context.Context, s *fakeSession) error {
	for i := 1; i <= 10; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
		s.set(float64(i) / 10)
	}
	return nil
}

// blockingRun reports some progress and then waits for cancellation
func blockingRun(ctx context.Context, s *fakeSession) error {
	s.set(0.3)
	<-ctx.Done()
	return ctx.Err()
}

func newExporter(t *testing.T, tr Transcoder) *Exporter {
	t.Helper()
	brand, err := config.ParseHexColor(config.DefaultBrandColor)
	require.NoError(t, err)
	builder := composition.NewBuilder(zerolog.Nop(), overlay.DefaultStyle(brand))
	return NewExporter(zerolog.Nop(), builder, tr, Options{
		OutputDir:        t.TempDir(),
		ProgressInterval: 2 * time.Millisecond,
	})
}

func collect(job *Job) []float64 {
	var values []float64
	for v := range job.Updates() {
		values = append(values, v)
	}
	return values
}

func TestExportSucceeds(t *testing.T) {
	tr := &fakeTranscoder{asset: hdAsset(), run: steadyRun}
	e := newExporter(t, tr)

	job, err := e.Export(context.Background(), Request{Source: "/videos/My Clip.mov", Text: "Hello", Position: overlay.PositionTop})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID())

	values := collect(job)
	result, err := job.Wait()
	require.NoError(t, err)

	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress went backwards")
	}
	assert.Equal(t, 1.0, values[len(values)-1])

	assert.Equal(t, StateSucceeded, job.State())
	assert.False(t, job.Running())
	assert.False(t, e.Running())
	assert.Equal(t, 1.0, job.Progress())

	assert.Equal(t, 10*time.Second, result.Duration)
	assert.Equal(t, media.Size{Width: 1920, Height: 1080}, result.RenderSize)
	assert.True(t, strings.HasPrefix(filepath.Base(result.OutputPath), "My_Clip_overlay_"))
	assert.Equal(t, ".mp4", filepath.Ext(result.OutputPath))
}

func TestExportUsesRequestedOutputPath(t *testing.T) {
	tr := &fakeTranscoder{asset: hdAsset(), run: steadyRun}
	e := newExporter(t, tr)

	out := filepath.Join(t.TempDir(), "nested", "final.mov")
	job, err := e.Export(context.Background(), Request{Source: "in.mp4", Text: "Hi", Position: overlay.PositionBottom, OutputPath: out})
	require.NoError(t, err)

	result, err := job.Wait()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(out), "final.mp4"), result.OutputPath)
	assert.DirExists(t, filepath.Dir(out))
}

func TestExportNoVideoTrackIsCompositionFailure(t *testing.T) {
	audioOnly := &media.Asset{
		Duration: 5 * time.Second,
		Tracks:   []media.TrackInfo{{Kind: media.TrackAudio, Index: 0}},
	}
	tr := &fakeTranscoder{asset: audioOnly, run: steadyRun}
	e := newExporter(t, tr)

	job, err := e.Export(context.Background(), Request{Source: "song.m4a", Text: "Hi", Position: overlay.PositionCenter})
	require.NoError(t, err)

	_, err = job.Wait()
	require.Error(t, err)

	var exportErr *Error
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, KindCompositionFailed, exportErr.Kind)
	assert.Equal(t, "no video track", exportErr.Reason)
	assert.Equal(t, "composition failed: no video track", err.Error())

	assert.Equal(t, StateFailed, job.State())
	assert.Zero(t, tr.sessionCount(), "nothing is transcoded")
	assert.False(t, e.Running())
}

func TestExportUnreadableSourceIsCompositionFailure(t *testing.T) {
	tr := &fakeTranscoder{loadErr: errors.New("moov atom not found"), run: steadyRun}
	e := newExporter(t, tr)

	job, err := e.Export(context.Background(), Request{Source: "broken.mp4", Text: "Hi", Position: overlay.PositionTop})
	require.NoError(t, err)

	_, err = job.Wait()
	assert.Equal(t, KindCompositionFailed, KindOf(err))
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestExportInvalidPositionIsCompositionFailure(t *testing.T) {
	tr := &fakeTranscoder{asset: hdAsset(), run: steadyRun}
	e := newExporter(t, tr)

	job, err := e.Export(context.Background(), Request{Source: "in.mp4", Text: "Hi", Position: "left"})
	require.NoError(t, err)

	_, err = job.Wait()
	assert.Equal(t, KindCompositionFailed, KindOf(err))
}

func TestExportPipelineFailure(t *testing.T) {
	tr := &fakeTranscoder{
		asset: hdAsset(),
		run: func(ctx context.Context, s *fakeSession) error {
			s.set(0.4)
			time.Sleep(10 * time.Millisecond)
			return errors.New("ffmpeg: Conversion failed!")
		},
	}
	e := newExporter(t, tr)

	job, err := e.Export(context.Background(), Request{Source: "in.mp4", Text: "Hi", Position: overlay.PositionBottom})
	require.NoError(t, err)

	values := collect(job)
	_, err = job.Wait()

	assert.Equal(t, KindExportFailed, KindOf(err))
	assert.Contains(t, err.Error(), "Conversion failed!")
	assert.Equal(t, StateFailed, job.State())
	for _, v := range values {
		assert.Less(t, v, 1.0, "failed exports never report completion")
	}
}

func TestExportCancelled(t *testing.T) {
	tr := &fakeTranscoder{asset: hdAsset(), run: blockingRun}
	e := newExporter(t, tr)

	job, err := e.Export(context.Background(), Request{Source: "in.mp4", Text: "Hi", Position: overlay.PositionTop})
	require.NoError(t, err)

	select {
	case v := <-job.Updates():
		assert.InDelta(t, 0.3, v, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no progress before cancellation")
	}

	job.Cancel()
	_, err = job.Wait()

	assert.True(t, IsCancelled(err))
	assert.Equal(t, StateCancelled, job.State())
	assert.False(t, e.Running())

	// the stream is closed before Wait returns, so nothing arrives later
	for range job.Updates() {
	}
	last := job.Progress()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, last, job.Progress())
}

func TestExportParentContextCancelled(t *testing.T) {
	tr := &fakeTranscoder{asset: hdAsset(), run: blockingRun}
	e := newExporter(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	job, err := e.Export(ctx, Request{Source: "in.mp4", Text: "Hi", Position: overlay.PositionTop})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	cancel()

	_, err = job.Wait()
	assert.True(t, IsCancelled(err))
	assert.Equal(t, "export cancelled", err.Error())
}

func TestExportRejectsConcurrentCalls(t *testing.T) {
	tr := &fakeTranscoder{asset: hdAsset(), run: blockingRun}
	e := newExporter(t, tr)

	first, err := e.Export(context.Background(), Request{Source: "a.mp4", Text: "A", Position: overlay.PositionTop})
	require.NoError(t, err)
	assert.True(t, e.Running())
	assert.Same(t, first, e.Current())

	_, err = e.Export(context.Background(), Request{Source: "b.mp4", Text: "B", Position: overlay.PositionTop})
	assert.ErrorIs(t, err, ErrExportInProgress)

	first.Cancel()
	_, err = first.Wait()
	require.True(t, IsCancelled(err))

	tr.run = steadyRun
	second, err := e.Export(context.Background(), Request{Source: "b.mp4", Text: "B", Position: overlay.PositionTop})
	require.NoError(t, err, "a finished job frees the exporter")
	_, err = second.Wait()
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestJobPublishDropsStaleValues(t *testing.T) {
	job := newJob("id", Request{}, func() {})
	for i := 1; i <= updateBuffer*2; i++ {
		job.publish(float64(i) / float64(updateBuffer*2))
	}
	job.publish(0.1)

	job.finish(StateSucceeded, Result{}, nil)
	values := collect(job)

	assert.Len(t, values, updateBuffer)
	assert.Equal(t, 1.0, values[len(values)-1])
	assert.Equal(t, 1.0, job.Progress())
}
