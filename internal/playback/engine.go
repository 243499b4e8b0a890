package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/audio"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

const (
	// DefaultSeparatorDuration is used when a sequence request does not
	// specify how long the between-item tone should be.
	DefaultSeparatorDuration = 2.0

	// DefaultSeparatorFrequency is the tone pitch in hertz.
	DefaultSeparatorFrequency = audio.DefaultToneFrequency
)

// Ref identifies one playable artifact.
type Ref struct {
	ID       string
	Location string
}

// Item is a single unit handed to the Player. Separator items carry
// synthesized tone audio instead of a stored artifact reference.
type Item struct {
	Ref       Ref
	Separator bool
	Data      []byte
}

// Player renders a single item. Play must honor context cancellation so
// that StopAll can interrupt an in-flight sequence.
type Player interface {
	Play(ctx context.Context, item Item) error
}

// ItemResult records the outcome of one play in a sequence.
type ItemResult struct {
	Ref       Ref
	Separator bool
	Elapsed   time.Duration
	Err       error
}

// Config controls sequence behavior.
type Config struct {
	SampleRate      int
	ContinueOnError bool
}

// DefaultConfig matches the capture pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:      audio.DefaultSampleRate,
		ContinueOnError: true,
	}
}

// Engine plays artifact sequences through a Player. Only one sequence is
// active at a time: starting a new one stops the previous sequence first.
type Engine struct {
	player Player
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// NewEngine creates a playback engine.
func NewEngine(player Player, config Config, logger *slog.Logger) *Engine {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}
	return &Engine{
		player: player,
		config: config,
		logger: logger,
	}
}

// PlaySequence plays refs in order with a tone separator strictly between
// consecutive items. It blocks until the sequence finishes or is stopped.
// Item errors are recorded in the returned results; with ContinueOnError
// set the sequence advances past them.
//
// A separatorDuration or separatorFrequency of zero or less selects the
// default value.
func (e *Engine) PlaySequence(ctx context.Context, refs []Ref, separatorDuration, separatorFrequency float64) ([]ItemResult, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if separatorDuration <= 0 {
		separatorDuration = DefaultSeparatorDuration
	}
	if separatorFrequency <= 0 {
		separatorFrequency = DefaultSeparatorFrequency
	}

	tone, err := audio.Synthesize(audio.SeparatorTone, separatorDuration, e.config.SampleRate, separatorFrequency)
	if err != nil {
		return nil, err
	}

	e.StopAll()

	seqCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.seq++
	token := e.seq
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		// A newer sequence may own e.cancel by now.
		if e.seq == token {
			e.cancel = nil
		}
		e.mu.Unlock()
	}()

	e.logger.Info("Starting playback sequence",
		slog.Int("items", len(refs)),
		slog.Float64("separator_duration", separatorDuration))

	results := make([]ItemResult, 0, 2*len(refs)-1)
	for i, ref := range refs {
		if seqCtx.Err() != nil {
			break
		}

		res := e.playOne(seqCtx, Item{Ref: ref})
		results = append(results, res)
		if res.Err != nil {
			if seqCtx.Err() != nil {
				break
			}
			e.logger.Warn("Playback item failed",
				slog.String("artifact_id", ref.ID),
				slog.String("error", res.Err.Error()))
			if !e.config.ContinueOnError {
				return results, scoreerr.Wrap(scoreerr.CodeDeviceUnavailable,
					"playback sequence aborted", false, res.Err)
			}
		}

		if i == len(refs)-1 || seqCtx.Err() != nil {
			continue
		}
		sep := e.playOne(seqCtx, Item{Separator: true, Data: tone.Data})
		results = append(results, sep)
	}

	e.logger.Info("Playback sequence finished",
		slog.Int("played", len(results)))
	return results, nil
}

func (e *Engine) playOne(ctx context.Context, item Item) ItemResult {
	start := time.Now()
	err := e.player.Play(ctx, item)
	return ItemResult{
		Ref:       item.Ref,
		Separator: item.Separator,
		Elapsed:   time.Since(start),
		Err:       err,
	}
}

// StopAll halts any in-flight sequence. It is safe to call when nothing
// is playing.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
