package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/point-service/internal/fault"
	"github.com/mmeshcher/point-service/internal/model"
	"github.com/mmeshcher/point-service/internal/repository"
)

// memoryRepo хранит записи в памяти и повторяет семантику SQL-адаптеров.
type memoryRepo struct {
	mu      sync.Mutex
	entries []model.PointEntry
	nextID  int64
	clock   time.Time

	err     error
	calls   int
	sumResp *model.PointSum
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memoryRepo) Close() error { return nil }

func (r *memoryRepo) sorted(filter func(model.PointEntry) bool) []model.PointEntry {
	var res []model.PointEntry
	for _, e := range r.entries {
		if filter(e) {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]model.PointEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.sorted(func(model.PointEntry) bool { return true }), nil
}

func (r *memoryRepo) FindByUser(ctx context.Context, userID int64) ([]model.PointEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.sorted(func(e model.PointEntry) bool { return e.UserID == userID }), nil
}

func (r *memoryRepo) SumByUser(ctx context.Context, userID int64) (model.PointSum, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return model.PointSum{}, r.err
	}
	if r.sumResp != nil {
		return *r.sumResp, nil
	}

	var sum model.PointSum
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		if sum.Total == nil {
			sum.Total = new(int64)
		}
		*sum.Total += e.Points
		sum.Count++
	}
	return sum, nil
}

func (r *memoryRepo) Insert(ctx context.Context, entry model.NewPointEntry) (model.PointEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return model.PointEntry{}, r.err
	}
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	created := model.PointEntry{
		ID:          r.nextID,
		UserID:      entry.UserID,
		Points:      entry.Points,
		Description: entry.Description,
		CreatedAt:   r.clock,
	}
	r.entries = append(r.entries, created)
	return created, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []model.PointEntry
	err     error
	closed  bool
}

func (p *recordingPublisher) PublishPointsAdded(ctx context.Context, entry model.PointEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func ptr(v int64) *int64 {
	return &v
}

func storeErr() error {
	return &repository.StoreError{Op: "test", Err: errors.New("connection refused")}
}

func addPoints(t *testing.T, svc *Service, userID, points int64) *model.PointEntry {
	t.Helper()
	e, err := svc.Add(context.Background(), AddRequest{UserID: ptr(userID), Points: ptr(points)})
	require.NoError(t, err)
	return e
}

func TestGetTotalByUser_SumsSignedPoints(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	addPoints(t, svc, 1, 10)
	addPoints(t, svc, 1, -3)
	addPoints(t, svc, 1, 5)
	addPoints(t, svc, 2, 100)

	total, err := svc.GetTotalByUser(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, model.PointTotal{UserID: 1, TotalPoints: 12, TransactionCount: 3}, *total)
}

func TestGetTotalByUser_NoEntriesIsZero(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	total, err := svc.GetTotalByUser(context.Background(), "99")
	require.NoError(t, err)
	assert.Equal(t, model.PointTotal{UserID: 99}, *total)
}

func TestGetTotalByUser_ZeroSumWithEntries(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	addPoints(t, svc, 3, 4)
	addPoints(t, svc, 3, -4)

	total, err := svc.GetTotalByUser(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total.TotalPoints)
	assert.Equal(t, int64(2), total.TransactionCount)
}

func TestGetTotalByUser_InconsistentAggregate(t *testing.T) {
	repo := newMemoryRepo()
	repo.sumResp = &model.PointSum{Total: nil, Count: 2}
	svc := NewService(repo, fault.Never{}, nil, nil)

	_, err := svc.GetTotalByUser(context.Background(), "1")
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
}

func TestGetTotalByUser_InjectedFailureBeforeValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fault.Always{}, nil, nil)

	_, err := svc.GetTotalByUser(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, ErrInjectedFailure)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, repo.calls, "store must not be touched")
}

func TestGetTotalByUser_InvalidUserID(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fault.Never{}, nil, nil)

	_, err := svc.GetTotalByUser(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, repo.calls)
}

func TestGetTotalByUser_StoreError(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = storeErr()
	svc := NewService(repo, fault.Never{}, nil, nil)

	_, err := svc.GetTotalByUser(context.Background(), "1")
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
}

func TestGetTotalByUser_FailureRate(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.NewRandomInjector(fault.DefaultRate, 11), nil, nil)

	const calls = 10000
	failures := 0
	for i := 0; i < calls; i++ {
		_, err := svc.GetTotalByUser(context.Background(), "1")
		if err != nil {
			require.ErrorIs(t, err, ErrInjectedFailure)
			failures++
		}
	}

	assert.InDelta(t, 0.2, float64(failures)/calls, 0.02)
}

func TestOtherOperationsNeverInject(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Always{}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := svc.Add(ctx, AddRequest{UserID: ptr(1), Points: ptr(1)})
		require.NoError(t, err)

		_, err = svc.List(ctx)
		require.NoError(t, err)

		_, err = svc.GetLatestByUser(ctx, "1")
		require.NoError(t, err)
	}
}

func TestGetLatestByUser(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	addPoints(t, svc, 1, 10)
	last := addPoints(t, svc, 1, 20)
	addPoints(t, svc, 2, 30)

	got, err := svc.GetLatestByUser(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, *last, *got)
}

func TestGetLatestByUser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		repoErr error
		wantErr error
	}{
		{name: "non numeric", raw: "abc", wantErr: ErrInvalidInput},
		{name: "no entries", raw: "5", wantErr: ErrNotFound},
		{name: "store error", raw: "5", repoErr: storeErr(), wantErr: repository.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			repo.err = tt.repoErr
			svc := NewService(repo, fault.Never{}, nil, nil)

			_, err := svc.GetLatestByUser(context.Background(), tt.raw)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetLatestByUser_NonNumericIsNotNotFound(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	_, err := svc.GetLatestByUser(context.Background(), "abc")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	a := addPoints(t, svc, 1, 1)
	b := addPoints(t, svc, 2, 2)
	c := addPoints(t, svc, 3, 3)

	entries, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, []int64{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestList_StoreError(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = storeErr()
	svc := NewService(repo, fault.Never{}, nil, nil)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
}

func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     AddRequest
		wantErr bool
	}{
		{name: "missing userId", req: AddRequest{Points: ptr(5)}, wantErr: true},
		{name: "zero userId", req: AddRequest{UserID: ptr(0), Points: ptr(5)}, wantErr: true},
		{name: "missing points", req: AddRequest{UserID: ptr(1)}, wantErr: true},
		{name: "zero points", req: AddRequest{UserID: ptr(1), Points: ptr(0)}},
		{name: "negative points", req: AddRequest{UserID: ptr(1), Points: ptr(-10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc := NewService(repo, fault.Never{}, nil, nil)

			_, err := svc.Add(context.Background(), tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Equal(t, 0, repo.calls)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAdd_DefaultDescription(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	e, err := svc.Add(context.Background(), AddRequest{UserID: ptr(1), Points: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultDescription, e.Description)

	e, err = svc.Add(context.Background(), AddRequest{UserID: ptr(1), Points: ptr(5), Description: "bonus"})
	require.NoError(t, err)
	assert.Equal(t, "bonus", e.Description)
}

func TestAdd_NotIdempotent(t *testing.T) {
	svc := NewService(newMemoryRepo(), fault.Never{}, nil, nil)

	a := addPoints(t, svc, 1, 10)
	b := addPoints(t, svc, 1, 10)

	assert.NotEqual(t, a.ID, b.ID)

	entries, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAdd_StoreError(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = storeErr()
	pub := &recordingPublisher{}
	svc := NewService(repo, fault.Never{}, pub, nil)

	_, err := svc.Add(context.Background(), AddRequest{UserID: ptr(1), Points: ptr(1)})
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)

	require.NoError(t, svc.Close())
	assert.Empty(t, pub.entries)
}

func TestAdd_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMemoryRepo(), fault.Never{}, pub, nil)

	e := addPoints(t, svc, 1, 7)

	require.NoError(t, svc.Close())
	require.Len(t, pub.entries, 1)
	assert.Equal(t, *e, pub.entries[0])
	assert.True(t, pub.closed)
}

func TestAdd_PublishFailureIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(newMemoryRepo(), fault.Never{}, pub, nil)

	e, err := svc.Add(context.Background(), AddRequest{UserID: ptr(1), Points: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.Points)

	require.NoError(t, svc.Close())
}

func TestAdd_DescriptionLength(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantErr     bool
	}{
		{name: "at limit", description: strings.Repeat("a", model.MaxDescriptionLength)},
		{name: "multibyte at limit", description: strings.Repeat("б", model.MaxDescriptionLength)},
		{name: "over limit", description: strings.Repeat("a", model.MaxDescriptionLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc := NewService(repo, fault.Never{}, nil, nil)

			entry, err := svc.Add(context.Background(), AddRequest{
				UserID:      ptr(1),
				Points:      ptr(5),
				Description: tt.description,
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDescriptionTooLong)
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Equal(t, 0, repo.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.description, entry.Description)
		})
	}
}
