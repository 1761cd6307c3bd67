package reconnect

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the saved state of a disconnected session, redeemable once via
// its token before expiry.
type Snapshot struct {
	Token        string
	ConnectionID string
	SubjectID    string
	Channels     []string
	Metadata     map[string]any
	IssuedAt     time.Time
	ExpiresAt    time.Time

	// PreviousConnectionID is set on the snapshot returned by Resume and
	// names the connection the token was issued for. Callers use it to claim
	// state keyed by the old ID, such as buffered events.
	PreviousConnectionID string
}

// Store maps one-time tokens to session snapshots with a fixed TTL. Entries
// are indexed by token and by originating connection ID, so re-issuing for
// the same connection revokes the previous token.
type Store struct {
	mu      sync.Mutex
	byToken map[string]*Snapshot
	byConn  map[string]string

	ttl             time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	issued  atomic.Int64
	resumed atomic.Int64
	expired atomic.Int64
}

// StoreStats provides observability counters for monitoring.
type StoreStats struct {
	Issued    int64
	Resumed   int64
	Expired   int64
	Active    int
	IsRunning bool
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets how long an issued token stays redeemable.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired snapshots are purged in the
// background. Set to 0 to disable the sweep; expired entries are still
// rejected (and purged) lazily on resume.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = interval
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout for Stop.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.shutdownTimeout = timeout
		}
	}
}

// WithLogger sets the logger for background sweep activity.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a reconnection store. Call Start (or Run with an errgroup) to
// begin the background sweep.
func New(opts ...Option) *Store {
	s := &Store{
		byToken:         make(map[string]*Snapshot),
		byConn:          make(map[string]string),
		ttl:             5 * time.Minute,
		sweepInterval:   time.Minute,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the store's configured token lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue creates a snapshot for the disconnecting connection and returns its
// one-time token. A previous token issued for the same connection ID is
// revoked.
func (s *Store) Issue(connectionID, subjectID string, channels []string, metadata map[string]any) (string, error) {
	if connectionID == "" {
		return "", ErrMissingConnectionID
	}

	token, err := generateToken()
	if err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}

	now := time.Now()
	snapshot := &Snapshot{
		Token:        token,
		ConnectionID: connectionID,
		SubjectID:    subjectID,
		Channels:     append([]string(nil), channels...),
		Metadata:     copyMetadata(metadata),
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.byConn[connectionID]; ok {
		delete(s.byToken, previous)
	}
	s.byToken[token] = snapshot
	s.byConn[connectionID] = token
	s.issued.Add(1)

	return token, nil
}

// Refresh updates the channels and metadata of the snapshot bound to
// connectionID without rotating its token or extending its TTL. It reports
// false when no token is outstanding for the connection, in which case the
// caller should Issue a fresh one.
func (s *Store) Refresh(connectionID string, channels []string, metadata map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byConn[connectionID]
	if !ok {
		return false
	}
	snapshot, ok := s.byToken[token]
	if !ok {
		return false
	}

	snapshot.Channels = append([]string(nil), channels...)
	snapshot.Metadata = copyMetadata(metadata)
	return true
}

// Resume redeems a token exactly once. On success the snapshot is rebound to
// newConnectionID and both index entries are removed atomically, so a replay
// of the same token always misses. Expired tokens are purged and miss.
func (s *Store) Resume(token, newConnectionID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.byToken[token]
	if !ok {
		return Snapshot{}, false
	}

	s.remove(snapshot)

	if time.Now().After(snapshot.ExpiresAt) {
		s.expired.Add(1)
		return Snapshot{}, false
	}

	s.resumed.Add(1)
	restored := *snapshot
	restored.ConnectionID = newConnectionID
	restored.PreviousConnectionID = snapshot.ConnectionID
	restored.Channels = append([]string(nil), snapshot.Channels...)
	restored.Metadata = copyMetadata(snapshot.Metadata)
	return restored, true
}

// Invalidate revokes a token explicitly. Unknown tokens are a no-op.
func (s *Store) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot, ok := s.byToken[token]; ok {
		s.remove(snapshot)
	}
}

// Len returns the number of live (possibly expired but not yet swept)
// snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

// Stats returns current store statistics.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	active := len(s.byToken)
	isRunning := s.cancel != nil
	s.mu.Unlock()

	return StoreStats{
		Issued:    s.issued.Load(),
		Resumed:   s.resumed.Load(),
		Expired:   s.expired.Load(),
		Active:    active,
		IsRunning: isRunning,
	}
}

// Start begins the background sweep. It blocks until the context is
// cancelled; use Run for the errgroup pattern or call it in a goroutine.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("reconnect store already started")
	}
	if s.sweepInterval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("sweep interval must be > 0, got %v (use WithSweepInterval to configure)", s.sweepInterval)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.InfoContext(s.ctx, "reconnect store sweep started",
		slog.Duration("sweep_interval", s.sweepInterval),
		slog.Duration("ttl", s.ttl))

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.InfoContext(context.Background(), "reconnect store sweep stopping")
			return s.ctx.Err()
		case <-ticker.C:
			s.sweepWithWait()
		}
	}
}

// Stop gracefully shuts down the background sweep with a timeout.
func (s *Store) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return fmt.Errorf("reconnect store not started")
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout exceeded after %s", s.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (s *Store) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (s *Store) sweepWithWait() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.sweep()
}

// sweep purges expired snapshots. It holds the same mutex as Issue and
// Resume, so it can never remove an entry that a concurrent Resume is
// consuming.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, snapshot := range s.byToken {
		if now.After(snapshot.ExpiresAt) {
			s.remove(snapshot)
			removed++
		}
	}

	if removed > 0 {
		s.expired.Add(int64(removed))
		s.logger.Info("reconnect store swept expired snapshots", slog.Int("removed", removed))
	}
}

// remove deletes both index entries for a snapshot. Callers must hold s.mu.
func (s *Store) remove(snapshot *Snapshot) {
	delete(s.byToken, snapshot.Token)
	if s.byConn[snapshot.ConnectionID] == snapshot.Token {
		delete(s.byConn, snapshot.ConnectionID)
	}
}

func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	copied := make(map[string]any, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	return copied
}

// generateToken creates a cryptographically secure random token using 32
// bytes encoded as base64 URL-safe string without padding.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
