package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/marketdata"
	"github.com/sakif/portfolio-tracker/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// =========================================================================
// USERS
// =========================================================================

type fakeUserRepo struct {
	users     map[string]*model.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) FindOrCreate(_ context.Context, user *model.User) (*model.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if existing, ok := f.users[user.ID]; ok {
		copied := *existing
		return &copied, nil
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return nil, apperror.Conflict("user email", user.Email)
		}
	}
	stored := *user
	stored.CreatedAt = time.Now()
	f.users[user.ID] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

// =========================================================================
// HOLDINGS
// =========================================================================

// fakeHoldingRepo mimics the SQLite store: ids assigned in insertion order,
// (user, symbol) unique.
type fakeHoldingRepo struct {
	mu      sync.Mutex
	rows    map[int64]model.Holding
	nextID  int64
	listErr error
	saveErr error
}

func newFakeHoldingRepo() *fakeHoldingRepo {
	return &fakeHoldingRepo{rows: make(map[int64]model.Holding)}
}

func (f *fakeHoldingRepo) find(userID, symbol string) (int64, bool) {
	for id, h := range f.rows {
		if h.UserID == userID && h.Symbol == symbol {
			return id, true
		}
	}
	return 0, false
}

func (f *fakeHoldingRepo) Create(_ context.Context, h *model.Holding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.find(h.UserID, h.Symbol); ok {
		return apperror.Conflict("holding", h.Symbol)
	}
	f.nextID++
	h.ID = f.nextID
	f.rows[h.ID] = *h
	return nil
}

func (f *fakeHoldingRepo) UpsertBatch(_ context.Context, userID string, batch []model.Holding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, h := range batch {
		h.UserID = userID
		if id, ok := f.find(userID, h.Symbol); ok {
			h.ID = id
		} else {
			f.nextID++
			h.ID = f.nextID
		}
		f.rows[h.ID] = h
	}
	return nil
}

func (f *fakeHoldingRepo) ListByUser(_ context.Context, userID string) ([]model.Holding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Holding, 0)
	for _, h := range f.rows {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeHoldingRepo) DeleteForUser(_ context.Context, userID string, id int64) (*model.Holding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.rows[id]
	if !ok || h.UserID != userID {
		return nil, apperror.NotFound("holding", strconv.FormatInt(id, 10))
	}
	delete(f.rows, id)
	return &h, nil
}

// =========================================================================
// MARKET DATA
// =========================================================================

// fakeProvider answers from fixed maps. A symbol listed in delay blocks until
// the context is done or the delay passes.
type fakeProvider struct {
	snapshots   map[string]*marketdata.Snapshot
	bars        map[string][]marketdata.Bar
	snapErr     map[string]error
	historyErr  map[string]error
	delay       map[string]time.Duration
	snapCalls   atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		snapshots:  make(map[string]*marketdata.Snapshot),
		bars:       make(map[string][]marketdata.Bar),
		snapErr:    make(map[string]error),
		historyErr: make(map[string]error),
		delay:      make(map[string]time.Duration),
	}
}

func (p *fakeProvider) Snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	p.snapCalls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if d, ok := p.delay[symbol]; ok {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err := p.snapErr[symbol]; err != nil {
		return nil, err
	}
	snap, ok := p.snapshots[symbol]
	if !ok {
		return nil, marketdata.ErrUnknownSymbol
	}
	copied := *snap
	return &copied, nil
}

func (p *fakeProvider) History(_ context.Context, symbol, _ string) ([]marketdata.Bar, error) {
	if err := p.historyErr[symbol]; err != nil {
		return nil, err
	}
	return p.bars[symbol], nil
}

func (p *fakeProvider) add(symbol string, price, trailing, forward float64, closes ...float64) {
	p.snapshots[symbol] = &marketdata.Snapshot{
		Symbol:             symbol,
		RegularMarketPrice: ptr(price),
		TrailingPE:         ptr(trailing),
		ForwardPE:          ptr(forward),
	}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, marketdata.Bar{Date: start.AddDate(0, 0, i), Close: c})
	}
	p.bars[symbol] = bars
}

// brokenCache fails every call, to prove cache errors never fail a request.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) (*marketdata.Snapshot, bool, error) {
	return nil, false, errCacheDown
}

func (brokenCache) Set(context.Context, string, *marketdata.Snapshot) error {
	return errCacheDown
}
