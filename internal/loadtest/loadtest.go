// Package loadtest реализует нагрузочный стенд: конкурентные запросы к
// эндпоинту суммы баллов (или к вышестоящему агрегатору) с подсчётом статусов.
package loadtest

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UserIDPlaceholder заменяется в шаблоне пути на случайный идентификатор пользователя.
const UserIDPlaceholder = "{userId}"

// Requester выполняет GET-запрос и возвращает код ответа.
type Requester interface {
	Status(ctx context.Context, path string) (int, error)
}

// Options задаёт профиль нагрузки.
type Options struct {
	PathTemplate string
	Users        int
	Concurrency  int
	Duration     time.Duration
	Ramp         time.Duration
	Pause        time.Duration
	Seed         int64
}

// Report содержит итоги прогона.
type Report struct {
	Requests  int64
	Errors    int64
	Anomalies int64
	ByStatus  map[int]int64
	Elapsed   time.Duration
}

// FailureRate возвращает долю ответов 500 среди полученных ответов.
func (r *Report) FailureRate() float64 {
	answered := r.Requests - r.Errors
	if answered == 0 {
		return 0
	}
	return float64(r.ByStatus[http.StatusInternalServerError]) / float64(answered)
}

// Statuses возвращает коды ответов в порядке возрастания.
func (r *Report) Statuses() []int {
	codes := make([]int, 0, len(r.ByStatus))
	for code := range r.ByStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// IsExpectedStatus сообщает, ожидаем ли код ответа: успех или задокументированная ошибка сервера.
func IsExpectedStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusInternalServerError
}

// Runner выполняет нагрузочный прогон.
type Runner struct {
	requester Requester
	opts      Options
	logger    *zap.Logger

	mu     sync.Mutex
	report Report
}

// NewRunner создаёт прогон с указанным профилем.
func NewRunner(requester Requester, opts Options, logger *zap.Logger) (*Runner, error) {
	if opts.Users < 1 {
		return nil, errors.New("users must be positive")
	}
	if opts.Concurrency < 1 {
		return nil, errors.New("concurrency must be positive")
	}
	if opts.Duration <= 0 {
		return nil, errors.New("duration must be positive")
	}
	if !strings.Contains(opts.PathTemplate, UserIDPlaceholder) {
		return nil, errors.New("path template must contain " + UserIDPlaceholder)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		requester: requester,
		opts:      opts,
		logger:    logger,
		report:    Report{ByStatus: make(map[int]int64)},
	}, nil
}

// Run нагружает цель в течение Duration и возвращает отчёт.
// Воркеры стартуют равномерно в течение Ramp.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < r.opts.Concurrency; i++ {
		delay := time.Duration(0)
		if r.opts.Ramp > 0 {
			delay = r.opts.Ramp * time.Duration(i) / time.Duration(r.opts.Concurrency)
		}
		rnd := rand.New(rand.NewSource(r.opts.Seed + int64(i)))

		g.Go(func() error {
			if !sleep(ctx, delay) {
				return nil
			}
			r.worker(ctx, rnd)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report := r.report
	report.ByStatus = make(map[int]int64, len(r.report.ByStatus))
	for code, n := range r.report.ByStatus {
		report.ByStatus[code] = n
	}
	report.Elapsed = time.Since(start)
	return &report, nil
}

func (r *Runner) worker(ctx context.Context, rnd *rand.Rand) {
	for ctx.Err() == nil {
		userID := rnd.Intn(r.opts.Users) + 1
		path := strings.ReplaceAll(r.opts.PathTemplate, UserIDPlaceholder, strconv.Itoa(userID))

		code, err := r.requester.Status(ctx, path)
		if err != nil {
			// Запросы, прерванные окончанием прогона, не учитываются.
			if ctx.Err() != nil {
				return
			}
			r.record(0, err, userID)
		} else {
			r.record(code, nil, userID)
		}

		if !sleep(ctx, r.opts.Pause) {
			return
		}
	}
}

func (r *Runner) record(code int, err error, userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report.Requests++

	if err != nil {
		r.report.Errors++
		r.logger.Warn("request failed", zap.Error(err), zap.Int("userID", userID))
		return
	}

	r.report.ByStatus[code]++
	if !IsExpectedStatus(code) {
		r.report.Anomalies++
		r.logger.Warn("unexpected status", zap.Int("status", code), zap.Int("userID", userID))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
