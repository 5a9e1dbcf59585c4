package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/auth"
	"github.com/sakif/portfolio-tracker/internal/model"
	"github.com/sakif/portfolio-tracker/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// asUser returns a request whose context carries userID, as RequireAuth
// would leave it.
func asUser(method, target, body, userID string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	return req
}

// fakePortfolio records calls and returns canned results.
type fakePortfolio struct {
	enriched []model.EnrichedHolding
	summary  *model.PortfolioSummary
	added    *model.Holding
	deleted  *model.Holding
	err      error
	gotUser  string
	gotInput model.HoldingInput
	gotBatch []model.HoldingInput
	gotID    int64
}

func (f *fakePortfolio) ListEnriched(_ context.Context, userID string) ([]model.EnrichedHolding, error) {
	f.gotUser = userID
	return f.enriched, f.err
}

func (f *fakePortfolio) SaveHoldings(_ context.Context, userID string, in []model.HoldingInput) error {
	f.gotUser, f.gotBatch = userID, in
	return f.err
}

func (f *fakePortfolio) AddHolding(_ context.Context, userID string, in model.HoldingInput) (*model.Holding, error) {
	f.gotUser, f.gotInput = userID, in
	return f.added, f.err
}

func (f *fakePortfolio) DeleteHolding(_ context.Context, userID string, id int64) (*model.Holding, error) {
	f.gotUser, f.gotID = userID, id
	return f.deleted, f.err
}

func (f *fakePortfolio) Summary(_ context.Context, userID string) (*model.PortfolioSummary, error) {
	f.gotUser = userID
	return f.summary, f.err
}

type fakeMarket struct {
	quote     *model.Quote
	history   []model.HistoricalClose
	err       error
	gotSymbol string
	gotPeriod string
}

func (f *fakeMarket) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	f.gotSymbol = symbol
	return f.quote, f.err
}

func (f *fakeMarket) History(_ context.Context, symbol, period string) ([]model.HistoricalClose, error) {
	f.gotSymbol, f.gotPeriod = symbol, period
	return f.history, f.err
}

type fakeProvider struct {
	identity *auth.Identity
	err      error
	gotCode  string
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	f.gotCode = code
	return f.identity, f.err
}

type fakeAuthenticator struct {
	tokens *auth.TokenService
	users  map[string]*model.User
	err    error
}

func (f *fakeAuthenticator) LoginOrRegister(_ context.Context, id *auth.Identity) (*service.AuthResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := &model.User{ID: id.Subject, Name: id.Name, Email: id.Email}
	f.users[u.ID] = u
	token, _ := f.tokens.Generate(u.ID)
	return &service.AuthResult{User: u, Token: token}, nil
}

func (f *fakeAuthenticator) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}
