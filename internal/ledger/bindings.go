package ledger

import (
	"encoding/json"

	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/model"
	"github.com/roach88/fintrack/internal/state"
	"github.com/roach88/fintrack/internal/transport"
)

// binder builds the store for one endpoint and assigns it to its field.
type binder func(r *Registry, ep ir.Endpoint, tr transport.Transport, opts []state.Option) state.Handle

func bind[T any](field func(r *Registry) **state.Store[T]) binder {
	return func(r *Registry, ep ir.Endpoint, tr transport.Transport, opts []state.Option) state.Handle {
		s := state.New[T](ep, tr, opts...)
		*field(r) = s
		return s.Handle()
	}
}

// untyped builds stores for endpoints without a binding. Their data is the
// raw response body.
func untyped(ep ir.Endpoint, tr transport.Transport, opts []state.Option) state.Handle {
	return state.New[json.RawMessage](ep, tr, opts...).Handle()
}

var bindings = map[string]binder{
	"GetCategories":  bind(func(r *Registry) **state.Store[[]model.Category] { return &r.GetCategories }),
	"CreateCategory": bind(func(r *Registry) **state.Store[model.Category] { return &r.CreateCategory }),
	"UpdateCategory": bind(func(r *Registry) **state.Store[model.Category] { return &r.UpdateCategory }),
	"DeleteCategory": bind(func(r *Registry) **state.Store[json.RawMessage] { return &r.DeleteCategory }),

	"GetAccounts":   bind(func(r *Registry) **state.Store[[]model.Account] { return &r.GetAccounts }),
	"CreateAccount": bind(func(r *Registry) **state.Store[model.Account] { return &r.CreateAccount }),
	"DeleteAccount": bind(func(r *Registry) **state.Store[json.RawMessage] { return &r.DeleteAccount }),

	"GetTransactions":               bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetTransactions }),
	"GetTransactionByID":            bind(func(r *Registry) **state.Store[model.Transaction] { return &r.GetTransactionByID }),
	"CreateTransaction":             bind(func(r *Registry) **state.Store[model.Transaction] { return &r.CreateTransaction }),
	"UpdateTransaction":             bind(func(r *Registry) **state.Store[model.Transaction] { return &r.UpdateTransaction }),
	"DeleteTransaction":             bind(func(r *Registry) **state.Store[json.RawMessage] { return &r.DeleteTransaction }),
	"GetExpenses":                   bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetExpenses }),
	"GetIncomes":                    bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetIncomes }),
	"GetSavings":                    bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetSavings }),
	"GetTransactionsByPeriod":       bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetTransactionsByPeriod }),
	"GetTransactionsMonthly":        bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetTransactionsMonthly }),
	"GetTransactionsByAccount":      bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetTransactionsByAccount }),
	"GetTransactionsByMainCategory": bind(func(r *Registry) **state.Store[[]model.Transaction] { return &r.GetTransactionsByMainCategory }),

	"GetBudgetSummary": bind(func(r *Registry) **state.Store[model.BudgetSummary] { return &r.GetBudgetSummary }),

	"GetTransfers":   bind(func(r *Registry) **state.Store[[]model.Transfer] { return &r.GetTransfers }),
	"CreateTransfer": bind(func(r *Registry) **state.Store[model.Transfer] { return &r.CreateTransfer }),

	"CreateUser":    bind(func(r *Registry) **state.Store[model.User] { return &r.CreateUser }),
	"DeleteAllData": bind(func(r *Registry) **state.Store[json.RawMessage] { return &r.DeleteAllData }),
}
