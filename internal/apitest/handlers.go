package apitest

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/fintrack/internal/model"
)

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(a.categories))
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var in model.NewCategory
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid category: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.categoryByName(in.Name) >= 0 {
		writeError(w, http.StatusConflict, "category already exists")
		return
	}
	c := model.Category{ID: a.id(), Name: in.Name, MainCategory: in.MainCategory}
	if c.MainCategory == "" {
		c.MainCategory = model.Needs
	}
	a.categories = append(a.categories, c)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in model.NewCategory
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid category: "+err.Error())
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.IndexFunc(a.categories, func(c model.Category) bool { return c.ID == id })
	if i < 0 {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	if in.Name != "" {
		a.categories[i].Name = in.Name
	}
	if in.MainCategory != "" {
		a.categories[i].MainCategory = in.MainCategory
	}
	writeJSON(w, http.StatusOK, a.categories[i])
}

func (a *API) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.categories)
	a.categories = slices.DeleteFunc(a.categories, func(c model.Category) bool { return c.ID == id })
	if len(a.categories) == n {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(a.accounts))
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var in model.NewAccount
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid account: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if slices.ContainsFunc(a.accounts, func(acc model.Account) bool { return acc.Name == in.Name }) {
		writeError(w, http.StatusConflict, "account already exists")
		return
	}
	acc := model.Account{ID: a.id(), Name: in.Name, Type: in.Type, Currency: in.Currency}
	a.accounts = append(a.accounts, acc)
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.accounts)
	a.accounts = slices.DeleteFunc(a.accounts, func(acc model.Account) bool { return acc.ID == id })
	if len(a.accounts) == n {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := model.TransactionType(q.Get("type"))
	var account int64
	if s := q.Get("account"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account")
			return
		}
		account = n
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	writeJSON(w, http.StatusOK, a.filter(func(t model.Transaction) bool {
		if typ != "" && t.TransactionType != typ {
			return false
		}
		return account == 0 || involves(t, account)
	}))
}

func (a *API) listByType(typ model.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		writeJSON(w, http.StatusOK, a.filter(func(t model.Transaction) bool { return t.TransactionType == typ }))
	}
}

func (a *API) listByPeriod(w http.ResponseWriter, r *http.Request) {
	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.filter(func(t model.Transaction) bool { return period.Contains(now, t.Time()) }))
}

func (a *API) listMonthly(w http.ResponseWriter, r *http.Request) {
	year, month, _ := a.now().UTC().Date()

	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.filter(func(t model.Transaction) bool {
		y, m, _ := t.Time().Date()
		return y == year && m == month
	}))
}

func (a *API) listByAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.filter(func(t model.Transaction) bool { return involves(t, id) }))
}

func (a *API) listByMainCategory(w http.ResponseWriter, r *http.Request) {
	name := model.MainCategory(chi.URLParam(r, "name"))

	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.filter(func(t model.Transaction) bool { return t.MainCategory == name }))
}

func (a *API) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.transactionIndex(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, a.transactions[i])
}

func (a *API) createTransaction(w http.ResponseWriter, r *http.Request) {
	var in model.NewTransaction
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction: "+err.Error())
		return
	}
	if in.TransactionType == "" {
		writeError(w, http.StatusBadRequest, "transaction_type is required")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	t := model.Transaction{
		ID:              a.id(),
		Description:     in.Description,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Date:            in.Date,
		CategoryID:      in.CategoryID,
		AccountID:       in.AccountID,
		TransactionType: in.TransactionType,
		Fees:            in.Fees,
	}
	if msg := a.resolve(&t); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	a.transactions = append(a.transactions, t)
	a.apply(t, 1)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in model.NewTransaction
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction: "+err.Error())
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.transactionIndex(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	old := a.transactions[i]
	t := old
	t.Description = in.Description
	t.Amount = in.Amount
	t.Currency = in.Currency
	t.Date = in.Date
	t.CategoryID = in.CategoryID
	t.AccountID = in.AccountID
	t.Fees = in.Fees
	if in.TransactionType != "" {
		t.TransactionType = in.TransactionType
	}
	if msg := a.resolve(&t); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	a.apply(old, -1)
	a.apply(t, 1)
	a.transactions[i] = t
	writeJSON(w, http.StatusOK, t)
}

func (a *API) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.transactionIndex(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	a.apply(a.transactions[i], -1)
	a.transactions = slices.Delete(a.transactions, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createTransfer(w http.ResponseWriter, r *http.Request) {
	var in model.NewTransfer
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transfer: "+err.Error())
		return
	}
	if in.AccountID == in.RelatedAccountID {
		writeError(w, http.StatusBadRequest, "transfer needs two different accounts")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accountIndex(in.AccountID) < 0 || a.accountIndex(in.RelatedAccountID) < 0 {
		writeError(w, http.StatusBadRequest, "account not found")
		return
	}
	from, to := in.AccountID, in.RelatedAccountID
	t := model.Transaction{
		ID:               a.id(),
		Description:      in.Description,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Date:             in.Date,
		AccountID:        &from,
		RelatedAccountID: &to,
		TransactionType:  model.TypeTransfer,
		Fees:             in.Fees,
	}
	a.transactions = append(a.transactions, t)
	a.apply(t, 1)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) budgetSummary(w http.ResponseWriter, r *http.Request) {
	var period *model.Period
	if r.URL.Query().Has("start_day") {
		p, ok := queryPeriod(w, r)
		if !ok {
			return
		}
		period = &p
	}
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	txs := a.filter(func(t model.Transaction) bool {
		return period == nil || period.Contains(now, t.Time())
	})
	writeJSON(w, http.StatusOK, summarize(txs, a.accounts))
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var in model.NewUser
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user: "+err.Error())
		return
	}
	if in.ID == "" || in.Email == "" {
		writeError(w, http.StatusBadRequest, "id and email are required")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	u := model.User{
		ID:         in.ID,
		Email:      in.Email,
		Name:       in.Name,
		GivenName:  in.GivenName,
		FamilyName: in.FamilyName,
		Photo:      in.Photo,
	}
	a.users = append(a.users, u)
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.categories = nil
	a.accounts = nil
	a.transactions = nil
	w.WriteHeader(http.StatusNoContent)
}

// id returns the next identifier. Caller holds mu.
func (a *API) id() int64 {
	id := a.nextID
	a.nextID++
	return id
}

func (a *API) categoryByName(name string) int {
	return slices.IndexFunc(a.categories, func(c model.Category) bool { return c.Name == name })
}

func (a *API) accountIndex(id int64) int {
	return slices.IndexFunc(a.accounts, func(acc model.Account) bool { return acc.ID == id })
}

func (a *API) transactionIndex(id int64) int {
	return slices.IndexFunc(a.transactions, func(t model.Transaction) bool { return t.ID == id })
}

// resolve fills the category names and checks references. It returns a
// client error message, or "".
func (a *API) resolve(t *model.Transaction) string {
	if t.CategoryID != nil {
		i := slices.IndexFunc(a.categories, func(c model.Category) bool { return c.ID == *t.CategoryID })
		if i < 0 {
			return "category not found"
		}
		t.MainCategory = a.categories[i].MainCategory
		t.Subcategory = a.categories[i].Name
	}
	if t.AccountID != nil && a.accountIndex(*t.AccountID) < 0 {
		return "account not found"
	}
	return ""
}

// apply adds (sign 1) or reverts (sign -1) t's effect on balances.
func (a *API) apply(t model.Transaction, sign float64) {
	delta := sign * t.Amount
	if t.IsTransfer() {
		if i := a.accountIndexPtr(t.AccountID); i >= 0 {
			a.accounts[i].Balance -= delta + sign*t.Fees
		}
		if i := a.accountIndexPtr(t.RelatedAccountID); i >= 0 {
			a.accounts[i].Balance += delta
		}
		return
	}
	if i := a.accountIndexPtr(t.AccountID); i >= 0 {
		a.accounts[i].Balance += delta - sign*t.Fees
	}
}

func (a *API) accountIndexPtr(id *int64) int {
	if id == nil {
		return -1
	}
	return a.accountIndex(*id)
}

func (a *API) filter(keep func(model.Transaction) bool) []model.Transaction {
	out := []model.Transaction{}
	for _, t := range a.transactions {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func involves(t model.Transaction, account int64) bool {
	return (t.AccountID != nil && *t.AccountID == account) ||
		(t.RelatedAccountID != nil && *t.RelatedAccountID == account)
}

// summarize computes a BudgetSummary with a 50/30/20 split of income.
func summarize(txs []model.Transaction, accounts []model.Account) model.BudgetSummary {
	var s model.BudgetSummary
	for _, t := range txs {
		amount := abs(t.BaseAmount())
		switch t.TransactionType {
		case model.TypeIncome:
			s.TotalIncome += amount
		case model.TypeExpense:
			s.TotalExpenses += amount
			switch t.MainCategory {
			case model.Wants:
				s.WantsAmount += amount
			default:
				s.NeedsAmount += amount
			}
		case model.TypeSavings:
			s.SavingsAmount += amount
		}
	}
	s.NetBalance = s.TotalIncome - s.TotalExpenses - s.SavingsAmount
	s.NeedsBudget = s.TotalIncome * 0.5
	s.WantsBudget = s.TotalIncome * 0.3
	s.SavingsBudget = s.TotalIncome * 0.2
	if s.TotalIncome > 0 {
		s.NeedsPercentage = s.NeedsAmount / s.TotalIncome * 100
		s.WantsPercentage = s.WantsAmount / s.TotalIncome * 100
		s.SavingsPercentage = s.SavingsAmount / s.TotalIncome * 100
	}
	for _, acc := range accounts {
		s.NetWorth += acc.Balance
	}
	return s
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryPeriod(w http.ResponseWriter, r *http.Request) (model.Period, bool) {
	q := r.URL.Query()
	start, err1 := strconv.Atoi(q.Get("start_day"))
	end, err2 := strconv.Atoi(q.Get("end_day"))
	p := model.Period{StartDay: start, EndDay: end}
	if err1 != nil || err2 != nil || p.Validate() != nil {
		writeError(w, http.StatusBadRequest, "start_day and end_day must be days of month")
		return p, false
	}
	return p, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Seeding helpers for tests that need data without going through HTTP.

// SeedAccount adds an account and returns it.
func (a *API) SeedAccount(name, typ, currency string, balance float64) model.Account {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc := model.Account{ID: a.id(), Name: name, Type: typ, Currency: currency, Balance: balance}
	a.accounts = append(a.accounts, acc)
	return acc
}

// SeedCategory adds a category and returns it.
func (a *API) SeedCategory(name string, main model.MainCategory) model.Category {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := model.Category{ID: a.id(), Name: name, MainCategory: main}
	a.categories = append(a.categories, c)
	return c
}

// SeedTransaction records a transaction dated at, applying it to balances.
func (a *API) SeedTransaction(in model.NewTransaction, at time.Time) model.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()

	in.Date = at.Unix()
	t := model.Transaction{
		ID:              a.id(),
		Description:     in.Description,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Date:            in.Date,
		CategoryID:      in.CategoryID,
		AccountID:       in.AccountID,
		TransactionType: in.TransactionType,
		Fees:            in.Fees,
	}
	a.resolve(&t)
	a.transactions = append(a.transactions, t)
	a.apply(t, 1)
	return t
}
