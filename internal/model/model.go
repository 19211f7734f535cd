package model

import "time"

// MainCategory groups subcategories for budgeting.
type MainCategory string

const (
	Needs   MainCategory = "Needs"
	Wants   MainCategory = "Wants"
	Savings MainCategory = "Savings"
)

// TransactionType classifies a transaction.
type TransactionType string

const (
	TypeExpense  TransactionType = "Expense"
	TypeIncome   TransactionType = "Income"
	TypeSavings  TransactionType = "Savings"
	TypeTransfer TransactionType = "Transfer"
)

// Category is a spending subcategory under a main category.
type Category struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	MainCategory MainCategory `json:"main_category"`
}

// Account holds money in one currency.
type Account struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"` // "Bank", "Credit Card", "Cash"
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// Transaction is one money movement. Amount is positive for income and
// negative for expenses.
type Transaction struct {
	ID                   int64           `json:"id"`
	Description          string          `json:"description"`
	Amount               float64         `json:"amount"`
	Currency             string          `json:"currency"`
	AmountInBaseCurrency *float64        `json:"amount_in_base_currency,omitempty"`
	ExchangeRate         *float64        `json:"exchange_rate,omitempty"`
	Date                 int64           `json:"date"`
	MainCategory         MainCategory    `json:"main_category"`
	Subcategory          string          `json:"subcategory"`
	CategoryID           *int64          `json:"category_id,omitempty"`
	AccountID            *int64          `json:"account_id,omitempty"`
	RelatedAccountID     *int64          `json:"related_account_id,omitempty"`
	TransactionType      TransactionType `json:"transaction_type"`
	Fees                 float64         `json:"fees,omitempty"`
}

// Time returns Date as a UTC time.
func (t Transaction) Time() time.Time {
	return time.Unix(t.Date, 0).UTC()
}

// IsTransfer reports whether t moves money between two accounts.
func (t Transaction) IsTransfer() bool {
	return t.TransactionType == TypeTransfer
}

// BaseAmount returns the amount in the base currency when the API
// converted it, and Amount otherwise.
func (t Transaction) BaseAmount() float64 {
	if t.AmountInBaseCurrency != nil {
		return *t.AmountInBaseCurrency
	}
	return t.Amount
}

// Transfer is a transaction of type TypeTransfer. AccountID is the source
// and RelatedAccountID the destination.
type Transfer = Transaction

// BudgetSummary is the budget overview for a period.
type BudgetSummary struct {
	TotalIncome       float64 `json:"total_income"`
	TotalExpenses     float64 `json:"total_expenses"`
	NetBalance        float64 `json:"net_balance"`
	NeedsAmount       float64 `json:"needs_amount"`
	WantsAmount       float64 `json:"wants_amount"`
	SavingsAmount     float64 `json:"savings_amount"`
	NeedsPercentage   float64 `json:"needs_percentage"`
	WantsPercentage   float64 `json:"wants_percentage"`
	SavingsPercentage float64 `json:"savings_percentage"`
	NeedsBudget       float64 `json:"needs_budget"`
	WantsBudget       float64 `json:"wants_budget"`
	SavingsBudget     float64 `json:"savings_budget"`
	NetWorth          float64 `json:"net_worth"`
}

// User is a registered user. Nullable profile fields are pointers.
type User struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	Email      string  `json:"email"`
	Photo      *string `json:"photo"`
	FamilyName *string `json:"familyName"`
	GivenName  *string `json:"givenName"`
}
