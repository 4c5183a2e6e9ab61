package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
)

// Item is one unit of replication work: a single (master event, follower)
// pair. Key groups items belonging to the same follower so their in-flight
// executions stay bounded.
type Item struct {
	Key      string
	Priority int
	Run      func(ctx context.Context) error
}

// Result is the settled outcome of one item. Failures settle independently;
// one item's error never cancels its siblings.
type Result struct {
	Key string
	Err error
}

type Limits struct {
	MaxBatchSize  int
	BatchDelay    time.Duration
	MaxConcurrent int
}

func (l Limits) normalized() Limits {
	if l.MaxBatchSize <= 0 {
		l.MaxBatchSize = 50
	}
	if l.BatchDelay < 0 {
		l.BatchDelay = 0
	}
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 5
	}
	return l
}

// Scheduler drains queued items in bounded batches with a fixed pause
// between batches, throttling pressure on the downstream executor. The
// queue is priority-ordered; limits are hot-swappable.
type Scheduler struct {
	Logger *zap.Logger

	drainTimeout time.Duration

	mu         sync.Mutex
	queue      []Item
	limits     Limits
	processing bool
	inFlight   int
	results    []Result
}

func New(cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	timeout := cfg.DrainTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		Logger:       logger,
		drainTimeout: timeout,
		limits: Limits{
			MaxBatchSize:  cfg.MaxBatchSize,
			BatchDelay:    cfg.BatchDelay,
			MaxConcurrent: cfg.MaxConcurrent,
		}.normalized(),
	}
}

// Enqueue adds items and re-sorts the queue by descending priority.
// Enqueue never starts processing; call Process or RunToCompletion.
func (s *Scheduler) Enqueue(items ...Item) {
	if s == nil || len(items) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, items...)
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Priority > s.queue[j].Priority
	})
	s.mu.Unlock()
}

// QueueDepth counts queued plus in-flight items, so depth reaches zero only
// once everything has settled.
func (s *Scheduler) QueueDepth() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) + s.inFlight
}

// Clear drops all queued items. In-flight items finish normally.
func (s *Scheduler) Clear() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()
	return dropped
}

// UpdateLimits swaps batch size, delay, and concurrency. The next batch
// picks them up; the current batch finishes under the old limits.
func (s *Scheduler) UpdateLimits(limits Limits) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.limits = limits.normalized()
	s.mu.Unlock()
}

func (s *Scheduler) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

// Process drains the queue until empty. Only one drain runs at a time; a
// concurrent call returns immediately and the running drain picks up any
// items enqueued meanwhile.
func (s *Scheduler) Process(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	first := true
	for {
		s.mu.Lock()
		limits := s.limits
		n := limits.MaxBatchSize
		if n > len(s.queue) {
			n = len(s.queue)
		}
		batch := make([]Item, n)
		copy(batch, s.queue[:n])
		s.queue = s.queue[n:]
		s.inFlight += n
		s.mu.Unlock()

		if n == 0 {
			return
		}
		if !first && limits.BatchDelay > 0 {
			time.Sleep(limits.BatchDelay)
		}
		first = false

		s.runBatch(ctx, batch, limits.MaxConcurrent)
	}
}

// runBatch groups items by follower key and runs the groups in parallel.
// Within one group, items run in chunks of at most maxConcurrent so a
// single follower never has more than that many orders in flight.
func (s *Scheduler) runBatch(ctx context.Context, batch []Item, maxConcurrent int) {
	groups := make(map[string][]Item)
	order := make([]string, 0, len(batch))
	for _, item := range batch {
		if _, seen := groups[item.Key]; !seen {
			order = append(order, item.Key)
		}
		groups[item.Key] = append(groups[item.Key], item)
	}

	var wg sync.WaitGroup
	for _, key := range order {
		items := groups[key]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runGroup(ctx, items, maxConcurrent)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runGroup(ctx context.Context, items []Item, maxConcurrent int) {
	for start := 0; start < len(items); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range chunk {
			item := item
			g.Go(func() error {
				err := s.runItem(gctx, item)
				s.settle(item.Key, err)
				// Errors settle per item; never fail the group.
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (s *Scheduler) runItem(ctx context.Context, item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if s.Logger != nil {
				s.Logger.Error("scheduler: item panicked",
					zap.String("key", item.Key),
					zap.Any("panic", r),
				)
			}
			err = &panicError{value: r}
		}
	}()
	if item.Run == nil {
		return nil
	}
	return item.Run(ctx)
}

func (s *Scheduler) settle(key string, err error) {
	s.mu.Lock()
	s.results = append(s.results, Result{Key: key, Err: err})
	s.inFlight--
	s.mu.Unlock()
	if err != nil && s.Logger != nil {
		s.Logger.Warn("scheduler: item failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// TakeResults returns settled results accumulated since the last call and
// resets the collection.
func (s *Scheduler) TakeResults() []Result {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	out := s.results
	s.results = nil
	s.mu.Unlock()
	return out
}

// RunToCompletion kicks off a drain and polls until the queue is empty or
// the drain timeout elapses. On timeout it returns the results settled so
// far; in-flight work keeps running and writes its own records.
func (s *Scheduler) RunToCompletion(ctx context.Context) ([]Result, bool) {
	if s == nil {
		return nil, true
	}
	go s.Process(ctx)

	deadline := time.Now().Add(s.drainTimeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.QueueDepth() == 0 {
			return s.TakeResults(), true
		}
		if time.Now().After(deadline) {
			if s.Logger != nil {
				s.Logger.Warn("scheduler: drain timed out with work in flight",
					zap.Int("remaining", s.QueueDepth()),
				)
			}
			return s.TakeResults(), false
		}
		select {
		case <-ctx.Done():
			return s.TakeResults(), false
		case <-ticker.C:
		}
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic during item processing: %v", e.value)
}
