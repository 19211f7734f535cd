package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/ir"
)

func TestTransaction_Decode(t *testing.T) {
	body := `{
		"id": 12,
		"description": "Groceries",
		"amount": -54.5,
		"currency": "SEK",
		"amount_in_base_currency": -54.5,
		"date": 1760659200,
		"main_category": "Needs",
		"subcategory": "Food",
		"category_id": 3,
		"account_id": 1,
		"transaction_type": "Expense"
	}`

	var got Transaction
	require.NoError(t, json.Unmarshal([]byte(body), &got))

	base, cat, acct := -54.5, int64(3), int64(1)
	want := Transaction{
		ID:                   12,
		Description:          "Groceries",
		Amount:               -54.5,
		Currency:             "SEK",
		AmountInBaseCurrency: &base,
		Date:                 1760659200,
		MainCategory:         Needs,
		Subcategory:          "Food",
		CategoryID:           &cat,
		AccountID:            &acct,
		TransactionType:      TypeExpense,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded transaction mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC), got.Time())
	assert.False(t, got.IsTransfer())
}

func TestTransaction_BaseAmount(t *testing.T) {
	converted := 10.0
	assert.Equal(t, 10.0, Transaction{Amount: 1, AmountInBaseCurrency: &converted}.BaseAmount())
	assert.Equal(t, 1.0, Transaction{Amount: 1}.BaseAmount())
}

func TestUser_NullableFields(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","name":null,"email":"a@b.c","photo":null,"familyName":"Doe","givenName":null}`), &u))

	assert.Nil(t, u.Name)
	require.NotNil(t, u.FamilyName)
	assert.Equal(t, "Doe", *u.FamilyName)
}

func TestPeriod_Query(t *testing.T) {
	assert.Equal(t, ir.IRObject{"start_day": ir.IRInt(25), "end_day": ir.IRInt(24)}, DefaultPeriod().Query())
}

func TestPeriod_Validate(t *testing.T) {
	assert.NoError(t, DefaultPeriod().Validate())
	assert.Error(t, Period{StartDay: 0, EndDay: 24}.Validate())
	assert.Error(t, Period{StartDay: 1, EndDay: 32}.Validate())
}

func TestPeriod_Range(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	endOf := func(y int, m time.Month, d int) time.Time {
		return day(y, m, d).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	tests := []struct {
		name      string
		period    Period
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"before start day", DefaultPeriod(), day(2026, 10, 17), day(2026, 9, 25), endOf(2026, 10, 24)},
		{"on start day", DefaultPeriod(), day(2026, 10, 25), day(2026, 10, 25), endOf(2026, 11, 24)},
		{"across new year", DefaultPeriod(), day(2026, 12, 30), day(2026, 12, 25), endOf(2027, 1, 24)},
		{"january before start", DefaultPeriod(), day(2027, 1, 3), day(2026, 12, 25), endOf(2027, 1, 24)},
		{"calendar month", Period{StartDay: 1, EndDay: 31}, day(2026, 2, 10), day(2026, 2, 1), endOf(2026, 2, 28)},
		{"clamped start", Period{StartDay: 31, EndDay: 30}, day(2026, 2, 28), day(2026, 2, 28), endOf(2026, 3, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.period.Range(tt.now)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
			assert.True(t, tt.period.Contains(tt.now, tt.now))
		})
	}
}
