// internal/pkg/circuitbreaker/breaker.go
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen 在熔断器打开（或半开试探名额已用完）时直接返回，不会调用下游。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State 熔断器所处的阶段
type State int

const (
	StateClosed   State = iota // 正常放行，统计结果
	StateOpen                  // 快速失败，等待冷却
	StateHalfOpen              // 冷却结束，放行有限的试探请求
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config 熔断器参数。
type Config struct {
	WindowSize       int           // 滑动窗口：最近 W 次调用
	FailureThreshold int           // 窗口内失败次数达到 T 即打开
	MinimumCalls     int           // 窗口内至少有这么多次调用才开始评估
	Cooldown         time.Duration // OPEN -> HALF_OPEN 的冷却时间
	HalfOpenMaxCalls int           // 半开状态下同时允许的试探请求数
	SlowCallDuration time.Duration // 成功但耗时超过该值的调用按失败统计，0 表示不启用
}

// DefaultConfig 对应 "5 次调用中 2 次失败即熔断"。
func DefaultConfig() Config {
	return Config{
		WindowSize:       5,
		FailureThreshold: 2,
		MinimumCalls:     5,
		Cooldown:         10 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func (c Config) normalized() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = 5
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 1
	}
	if c.FailureThreshold > c.WindowSize {
		c.FailureThreshold = c.WindowSize
	}
	if c.MinimumCalls <= 0 || c.MinimumCalls > c.WindowSize {
		c.MinimumCalls = c.WindowSize
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Counts 是当前窗口的快照
type Counts struct {
	Calls    int
	Failures int
}

// Option 定制熔断器
type Option func(*Breaker)

// WithClock 注入时钟，测试中用来推进时间。
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithFailurePredicate 决定哪些 error 计入失败。返回 false 的 error 视为成功（例如业务上的 NotFound）。
func WithFailurePredicate(isFailure func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = isFailure }
}

// WithStateChangeHook 在每次状态切换后回调（在锁外调用）。
func WithStateChangeHook(hook func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onStateChange = hook }
}

// Breaker 是一个并发安全的计数型滑动窗口熔断器。
// 实例由调用方创建并注入，不存在包级单例。
type Breaker struct {
	name          string
	cfg           Config
	now           func() time.Time
	isFailure     func(error) bool
	onStateChange func(name string, from, to State)

	mu         sync.Mutex
	state      State
	generation uint64
	window     *window
	openedAt   time.Time
	inFlight   int // 半开状态下正在进行的试探请求
}

// New 创建熔断器。
func New(name string, cfg Config, opts ...Option) *Breaker {
	cfg = cfg.normalized()
	b := &Breaker{
		name:      name,
		cfg:       cfg,
		now:       time.Now,
		isFailure: func(err error) bool { return err != nil },
		state:     StateClosed,
		window:    newWindow(cfg.WindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name 返回熔断器名称
func (b *Breaker) Name() string { return b.name }

// Execute 在熔断器保护下执行 fn。
// 熔断打开时返回 ErrCircuitOpen，fn 不会被调用。
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, err := b.beforeCall()
	if err != nil {
		return err
	}

	start := b.now()
	callErr := fn(ctx)
	elapsed := b.now().Sub(start)

	// 调用方中途取消或自身超时，与下游健康无关，不计入窗口
	if callErr != nil && ctx.Err() != nil {
		b.release(generation)
		return callErr
	}

	failed := callErr != nil && b.isFailure(callErr)
	if callErr == nil && b.cfg.SlowCallDuration > 0 && elapsed >= b.cfg.SlowCallDuration {
		failed = true
	}
	b.afterCall(generation, failed)
	return callErr
}

// State 返回当前状态，冷却时间到期时会顺带切换到 HALF_OPEN。
func (b *Breaker) State() State {
	b.mu.Lock()
	state, transition := b.currentState(b.now())
	b.mu.Unlock()
	b.notify(transition)
	return state
}

// Counts 返回当前窗口内的统计
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{Calls: b.window.calls, Failures: b.window.failures}
}

type transition struct {
	from, to State
	changed  bool
}

func (b *Breaker) beforeCall() (uint64, error) {
	b.mu.Lock()
	state, t := b.currentState(b.now())

	var err error
	switch state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.inFlight >= b.cfg.HalfOpenMaxCalls {
			err = ErrCircuitOpen
		} else {
			b.inFlight++
		}
	}
	generation := b.generation
	b.mu.Unlock()

	b.notify(t)
	return generation, err
}

func (b *Breaker) afterCall(generation uint64, failed bool) {
	b.mu.Lock()
	now := b.now()
	_, t := b.currentState(now)

	// 调用开始后状态已经切换过，结果作废
	if generation != b.generation {
		b.mu.Unlock()
		b.notify(t)
		return
	}

	switch b.state {
	case StateClosed:
		b.window.record(failed)
		if b.window.calls >= b.cfg.MinimumCalls && b.window.failures >= b.cfg.FailureThreshold {
			t = b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.inFlight--
		if failed {
			t = b.setState(StateOpen, now)
		} else {
			t = b.setState(StateClosed, now)
		}
	}
	b.mu.Unlock()

	b.notify(t)
}

// release 归还半开状态的试探名额，不记录结果。
func (b *Breaker) release(generation uint64) {
	b.mu.Lock()
	if generation == b.generation && b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
	b.mu.Unlock()
}

// currentState 必须在持有锁时调用。
func (b *Breaker) currentState(now time.Time) (State, transition) {
	if b.state == StateOpen && !now.Before(b.openedAt.Add(b.cfg.Cooldown)) {
		return StateHalfOpen, b.setState(StateHalfOpen, now)
	}
	return b.state, transition{}
}

// setState 必须在持有锁时调用。任何切换都会开启新的 generation 并清空窗口。
func (b *Breaker) setState(to State, now time.Time) transition {
	from := b.state
	if from == to {
		return transition{}
	}
	b.state = to
	b.generation++
	b.window.reset()
	b.inFlight = 0
	if to == StateOpen {
		b.openedAt = now
	}
	return transition{from: from, to: to, changed: true}
}

func (b *Breaker) notify(t transition) {
	if t.changed && b.onStateChange != nil {
		b.onStateChange(b.name, t.from, t.to)
	}
}
