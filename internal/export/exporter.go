// Package export drives a single overlay export from source file to
// finished video, reporting progress and a typed outcome.
package export

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/logging"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ProgressInterval is how often the pipeline's progress is sampled
const ProgressInterval = config.ProgressEveryMs * time.Millisecond

// Request is one export: burn Text at Position into Source
type Request struct {
	Source     string
	Text       string
	Position   overlay.Position
	OutputPath string // optional, a unique file in the output dir otherwise
}

// Options configures an Exporter
type Options struct {
	OutputDir        string
	ProgressInterval time.Duration
}

// Exporter runs at most one export at a time
type Exporter struct {
	logger     zerolog.Logger
	builder    *composition.Builder
	transcoder Transcoder
	outputDir  string
	interval   time.Duration

	running atomic.Bool
	mu      sync.Mutex
	current *Job
}

// NewExporter creates an exporter building graphs with builder and
// rendering them with transcoder
func NewExporter(logger zerolog.Logger, builder *composition.Builder, transcoder Transcoder, opts Options) *Exporter {
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = ProgressInterval
	}
	return &Exporter{
		logger:     logging.WithComponent(logger, "export"),
		builder:    builder,
		transcoder: transcoder,
		outputDir:  opts.OutputDir,
		interval:   interval,
	}
}

// Running reports whether an export is in flight
func (e *Exporter) Running() bool {
	return e.running.Load()
}

// Current returns the most recent job, or nil before the first export
func (e *Exporter) Current() *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Export starts req in the background and returns its job. It fails with
// ErrExportInProgress while another job is running. Cancelling ctx cancels
// the job.
func (e *Exporter) Export(ctx context.Context, req Request) (*Job, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrExportInProgress
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := newJob(uuid.NewString(), req, cancel)

	e.mu.Lock()
	e.current = job
	e.mu.Unlock()

	go e.run(jobCtx, job)
	return job, nil
}

func (e *Exporter) run(ctx context.Context, job *Job) {
	defer job.cancel()

	log := e.logger.With().Str("job", job.ID()).Str("source", job.request.Source).Logger()
	start := time.Now()
	log.Info().Str("position", string(job.request.Position)).Msg("export started")

	result, err := e.export(ctx, job, log)

	state := StateSucceeded
	if err != nil {
		state = StateFailed
		if IsCancelled(err) {
			state = StateCancelled
		}
	}
	result.Elapsed = time.Since(start)

	switch state {
	case StateSucceeded:
		log.Info().Str("output", result.OutputPath).Dur("elapsed", result.Elapsed).Msg("export finished")
	case StateCancelled:
		log.Warn().Dur("elapsed", result.Elapsed).Msg("export cancelled")
	default:
		log.Error().Err(err).Str("kind", string(KindOf(err))).Msg("export failed")
	}

	// the next export may start as soon as Wait returns
	e.running.Store(false)
	job.finish(state, result, err)
}

func (e *Exporter) export(ctx context.Context, job *Job, log zerolog.Logger) (Result, error) {
	job.setState(StateBuilding)

	asset, err := e.transcoder.LoadAsset(ctx, job.request.Source)
	if err != nil {
		return Result{}, classify(ctx, errors.Wrap(err, "failed to load source"), true)
	}

	graph, err := e.builder.Build(asset, overlay.Spec{Text: job.request.Text, Position: job.request.Position})
	if err != nil {
		return Result{}, classify(ctx, err, true)
	}

	output := job.request.OutputPath
	if output == "" {
		output = defaultOutputPath(e.outputDir, job.request.Source)
	}
	output, err = ensureOutputPath(output, config.OutputFormat)
	if err != nil {
		return Result{}, classify(ctx, err, false)
	}

	session, err := e.transcoder.NewSession(graph, output)
	if err != nil {
		return Result{}, classify(ctx, err, false)
	}

	job.setState(StateExporting)
	log.Debug().
		Str("output", output).
		Float64("width", graph.RenderSize.Width).
		Float64("height", graph.RenderSize.Height).
		Dur("duration", graph.TimeRange.Duration).
		Msg("render graph built")

	stop := e.sample(ctx, job, session)
	err = session.Run(ctx)
	stop()

	if err != nil {
		return Result{}, classify(ctx, err, false)
	}

	job.publish(1)
	return Result{
		OutputPath: output,
		Duration:   graph.TimeRange.Duration,
		RenderSize: graph.RenderSize,
	}, nil
}

// sample publishes the session's progress every interval until the
// returned stop func is called or ctx is done. stop waits for the sampler
// to exit, so nothing is published after it returns.
func (e *Exporter) sample(ctx context.Context, job *Job, session Session) (stop func()) {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				// 1 is reserved for a confirmed success
				v := session.Progress()
				if v >= 1 {
					v = 0.99
				}
				job.publish(v)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		wg.Wait()
	}
}
