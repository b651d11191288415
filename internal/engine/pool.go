package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var errBucketAtCapacity = errors.New("session bucket at capacity")

type PoolConfig struct {
	// BinaryPath is a path or a name looked up in PATH.
	BinaryPath string
	// PerOptionCapacity caps the processes started per option set.
	PerOptionCapacity int
	Logger            *zap.Logger
}

// Pool keeps idle engine processes per option set so games do not pay the
// startup handshake on every move.
type Pool struct {
	binaryPath string
	capacity   int
	logger     *zap.Logger

	mu       sync.Mutex
	buckets  map[string]*sessionBucket
	sessions map[*Session]*sessionBucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	capacity := cfg.PerOptionCapacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		binaryPath: path,
		capacity:   capacity,
		logger:     logger,
		buckets:    make(map[string]*sessionBucket),
		sessions:   make(map[*Session]*sessionBucket),
	}, nil
}

// Acquire returns a ready session for opt, starting one when the bucket has
// room and waiting for a release otherwise.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	bucket := p.bucket(opt)
	for {
		select {
		case s := <-bucket.idle:
			if p.revive(ctx, s, bucket) {
				return s, nil
			}
			continue
		default:
		}

		s, err := bucket.create(ctx, p.binaryPath, p.logger)
		if err == nil {
			p.track(s, bucket)
			return s, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case s := <-bucket.idle:
			if p.revive(ctx, s, bucket) {
				return s, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// revive checks an idle session; a dead one is discarded and frees its slot.
func (p *Pool) revive(ctx context.Context, s *Session, bucket *sessionBucket) bool {
	if s == nil {
		return false
	}
	if err := s.EnsureReady(ctx); err != nil {
		p.logger.Debug("engine_session_discarded", zap.Error(err))
		bucket.discard(s)
		return false
	}
	p.track(s, bucket)
	return true
}

// Release returns s to its bucket. A non-nil err means the session may be in
// an unknown state and is closed instead.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	p.mu.Lock()
	bucket, ok := p.sessions[s]
	delete(p.sessions, s)
	p.mu.Unlock()

	if !ok {
		_ = s.Close()
		return
	}
	if err != nil || !bucket.put(s) {
		bucket.discard(s)
	}
}

// Close stops the idle processes. Sessions still checked out are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.sessions = make(map[*Session]*sessionBucket)
	p.mu.Unlock()

	var errs []error
	for _, b := range buckets {
		errs = append(errs, b.drain()...)
	}
	return errors.Join(errs...)
}

func (p *Pool) track(s *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[s] = bucket
	p.mu.Unlock()
}

func (p *Pool) bucket(opt Options) *sessionBucket {
	key := opt.key()
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[key]
	if !ok {
		b = &sessionBucket{opt: opt, capacity: p.capacity, idle: make(chan *Session, p.capacity)}
		p.buckets[key] = b
	}
	return b
}

type sessionBucket struct {
	opt      Options
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *Session
}

func (b *sessionBucket) create(ctx context.Context, binaryPath string, logger *zap.Logger) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	s, err := NewSession(ctx, binaryPath, b.opt, logger)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return s, nil
}

func (b *sessionBucket) put(s *Session) bool {
	select {
	case b.idle <- s:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(s *Session) {
	if s != nil {
		_ = s.Close()
	}
	b.decrement()
}

func (b *sessionBucket) drain() []error {
	var errs []error
	for {
		select {
		case s := <-b.idle:
			if s == nil {
				continue
			}
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func defaultCapacity() int {
	return min(max(runtime.NumCPU(), 2), 4)
}
