package model

// Request bodies for the mutation endpoints.

// NewCategory is the body of CreateCategory and UpdateCategory.
type NewCategory struct {
	Name         string       `json:"name"`
	MainCategory MainCategory `json:"main_category,omitempty"`
}

// NewAccount is the body of CreateAccount.
type NewAccount struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// NewTransaction is the body of CreateTransaction and UpdateTransaction.
type NewTransaction struct {
	Description     string          `json:"description"`
	Amount          float64         `json:"amount"`
	Currency        string          `json:"currency"`
	Date            int64           `json:"date"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	AccountID       *int64          `json:"account_id,omitempty"`
	TransactionType TransactionType `json:"transaction_type"`
	Fees            float64         `json:"fees,omitempty"`
}

// NewTransfer is the body of CreateTransfer.
type NewTransfer struct {
	Description      string  `json:"description"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	Date             int64   `json:"date"`
	AccountID        int64   `json:"account_id"`
	RelatedAccountID int64   `json:"related_account_id"`
	Fees             float64 `json:"fees,omitempty"`
}

// NewUser is the body of CreateUser.
type NewUser struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       *string `json:"name,omitempty"`
	GivenName  *string `json:"givenName,omitempty"`
	FamilyName *string `json:"familyName,omitempty"`
	Photo      *string `json:"photo,omitempty"`
}
