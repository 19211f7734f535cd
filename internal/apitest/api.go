package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/fintrack/internal/model"
)

// Prefix is the mount point of the API, matching the client's default base
// URL path.
const Prefix = "/api/v1"

// API is the fake server. The zero value is not usable; call New.
//
// Thread-safety: API is safe for concurrent use.
type API struct {
	router chi.Router
	token  string
	now    func() time.Time

	mu           sync.Mutex
	nextID       int64
	categories   []model.Category
	accounts     []model.Account
	transactions []model.Transaction
	users        []model.User
	hits         map[string]int
	failures     map[string][]failure
	delays       map[string]chan struct{}
}

type failure struct {
	status  int
	message string
}

// Option configures an API.
type Option func(*API)

// WithToken requires "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(a *API) {
		a.token = token
	}
}

// WithClock fixes the time used for period and monthly filters.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// New creates an empty API.
func New(opts ...Option) *API {
	a := &API{
		now:      time.Now,
		nextID:   1,
		hits:     make(map[string]int),
		failures: make(map[string][]failure),
		delays:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a
}

// Start serves a on an httptest server closed at cleanup and returns the
// base URL including Prefix.
func Start(tb testing.TB, opts ...Option) (*API, string) {
	tb.Helper()
	a := New(opts...)
	srv := httptest.NewServer(a)
	tb.Cleanup(srv.Close)
	return a, srv.URL + Prefix
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route(Prefix, func(r chi.Router) {
		r.Use(a.count)
		r.Use(a.authenticate)
		r.Use(a.inject)

		r.Get("/categories", a.listCategories)
		r.Post("/categories", a.createCategory)
		r.Put("/categories/{id}", a.updateCategory)
		r.Delete("/categories/{id}", a.deleteCategory)

		r.Get("/accounts", a.listAccounts)
		r.Post("/accounts", a.createAccount)
		r.Delete("/accounts/{id}", a.deleteAccount)

		r.Get("/transactions", a.listTransactions)
		r.Post("/transactions", a.createTransaction)
		r.Get("/transactions/expenses", a.listByType(model.TypeExpense))
		r.Get("/transactions/incomes", a.listByType(model.TypeIncome))
		r.Get("/transactions/savings", a.listByType(model.TypeSavings))
		r.Get("/transactions/period", a.listByPeriod)
		r.Get("/transactions/monthly", a.listMonthly)
		r.Get("/transactions/account/{id}", a.listByAccount)
		r.Get("/transactions/main-category/{name}", a.listByMainCategory)
		r.Get("/transactions/{id}", a.getTransaction)
		r.Put("/transactions/{id}", a.updateTransaction)
		r.Delete("/transactions/{id}", a.deleteTransaction)

		r.Get("/budget/summary", a.budgetSummary)

		r.Get("/transfers", a.listByType(model.TypeTransfer))
		r.Post("/transfers", a.createTransfer)

		r.Post("/users", a.createUser)
		r.Post("/reset", a.reset)
	})
	return r
}

// count records every request by method and path, failed ones included.
func (a *API) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.hits[routeKey(r)]++
		a.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func routeKey(r *http.Request) string {
	return r.Method + " " + strings.TrimPrefix(r.URL.Path, Prefix)
}

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token != "" && r.Header.Get("Authorization") != "Bearer "+a.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// inject serves scripted failures and holds gated requests.
func (a *API) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r)

		a.mu.Lock()
		gate := a.delays[key]
		delete(a.delays, key)
		var f *failure
		if queue := a.failures[key]; len(queue) > 0 {
			f = &queue[0]
			a.failures[key] = queue[1:]
		}
		a.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if f != nil {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits returns how often method and path were requested, e.g.
// Hits("GET /transactions/7"). The query is not part of the key.
func (a *API) Hits(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[key]
}

// TotalHits returns the number of requests served.
func (a *API) TotalHits() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, c := range a.hits {
		n += c
	}
	return n
}

// FailNext makes the next request to method and path (without Prefix or
// query) fail with status and a {"message": message} body.
func (a *API) FailNext(method, path string, status int, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := method + " " + path
	a.failures[key] = append(a.failures[key], failure{status: status, message: message})
}

// Hold blocks the next request to method and path until the returned
// function is called.
func (a *API) Hold(method, path string) (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.delays[method+" "+path] = gate
	a.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
