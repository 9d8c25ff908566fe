package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Storage persists batches of events. Implementations should use bulk
// inserts and treat a batch atomically where the backend allows it.
type Storage interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// Options configures the batching and buffering behavior.
type Options struct {
	// BufferSize is how many events wait in memory before new ones are dropped.
	BufferSize int `env:"AUDIT_BUFFER_SIZE" envDefault:"1000"`

	// BatchSize is the target number of events per StoreBatch call.
	BatchSize int `env:"AUDIT_BATCH_SIZE" envDefault:"100"`

	// BatchTimeout is the longest a partial batch waits before it is flushed.
	BatchTimeout time.Duration `env:"AUDIT_BATCH_TIMEOUT" envDefault:"100ms"`

	// StorageTimeout bounds each StoreBatch call.
	StorageTimeout time.Duration `env:"AUDIT_STORAGE_TIMEOUT" envDefault:"5s"`
}

// Recorder hands events to a Storage in the background.
// Record never blocks the caller: when the buffer is full the event is
// dropped and counted. Storage failures are logged, never returned.
type Recorder struct {
	storage Storage
	options Options
	logger  *slog.Logger
	hasher  Hasher

	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	closing sync.Once
	closed  atomic.Bool

	dropped atomic.Uint64
	failed  atomic.Uint64
	stored  atomic.Uint64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used to report storage failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHasher stamps each event with an integrity digest before storage.
func WithHasher(h Hasher) RecorderOption {
	return func(r *Recorder) {
		r.hasher = h
	}
}

// NewRecorder starts a recorder writing to storage.
func NewRecorder(storage Storage, opts Options, ropts ...RecorderOption) *Recorder {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage: storage,
		options: opts,
		logger:  slog.Default(),
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
	}
	for _, opt := range ropts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record queues e for storage. It fills in ID and CreatedAt when missing.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if err := r.TryRecord(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "audit event dropped",
			slog.String("phase", e.Phase),
			slog.String("user_id", e.UserID),
			slog.Any("error", err),
		)
	}
}

// TryRecord is Record that reports why an event was not queued.
func (r *Recorder) TryRecord(_ context.Context, e Event) error {
	if r.closed.Load() {
		r.dropped.Add(1)
		return ErrRecorderClosed
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := e.Validate(); err != nil {
		r.dropped.Add(1)
		return err
	}
	if r.hasher != nil {
		e.Hash = r.hasher.Hash(e)
	}

	select {
	case r.events <- e:
		return nil
	default:
		r.dropped.Add(1)
		return ErrBufferFull
	}
}

// Stats reports how many events were stored, dropped before queuing, and lost to storage errors.
type Stats struct {
	Stored  uint64
	Dropped uint64
	Failed  uint64
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Stored:  r.stored.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Event, 0, r.options.BatchSize)
	ticker := time.NewTicker(r.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		// Storage runs detached from any request context.
		ctx, cancel := context.WithTimeout(context.Background(), r.options.StorageTimeout)
		defer cancel()

		if err := r.storage.StoreBatch(ctx, slices.Clone(batch)); err != nil {
			r.failed.Add(uint64(len(batch)))
			r.logger.Error("failed to store audit events",
				slog.Int("count", len(batch)),
				slog.Any("error", err),
			)
		} else {
			r.stored.Add(uint64(len(batch)))
		}

		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-r.events:
			batch = append(batch, e)
			if len(batch) >= r.options.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-r.done:
			for {
				select {
				case e := <-r.events:
					batch = append(batch, e)
					if len(batch) >= r.options.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and flushes what is queued.
// The context bounds how long Close waits for the final flush.
func (r *Recorder) Close(ctx context.Context) error {
	r.closing.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
