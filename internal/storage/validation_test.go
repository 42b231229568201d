package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/statement-flow/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{name: "valid string", str: "test"},
		{name: "empty string", str: "", wantErr: true},
		{name: "whitespace only", str: " \t\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyString)
				assert.Contains(t, err.Error(), "param")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateTransaction(t *testing.T) {
	valid := func() *model.Transaction {
		return &model.Transaction{
			UserID:      "user-1",
			Key:         "k",
			PaymentDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Category1:   model.ParseCategory1("Mercados"),
			Confidence:  80,
		}
	}

	tests := []struct {
		mutate  func(*model.Transaction)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*model.Transaction) {}},
		{name: "legacy category", mutate: func(tx *model.Transaction) { tx.Category1 = model.ParseCategory1("Groceries") }},
		{name: "unset category", mutate: func(tx *model.Transaction) { tx.Category1 = model.CategoryValue{} }},
		{name: "missing key", mutate: func(tx *model.Transaction) { tx.Key = " " }, wantErr: true},
		{name: "missing user", mutate: func(tx *model.Transaction) { tx.UserID = "" }, wantErr: true},
		{name: "missing date", mutate: func(tx *model.Transaction) { tx.PaymentDate = time.Time{} }, wantErr: true},
		{name: "confidence too high", mutate: func(tx *model.Transaction) { tx.Confidence = 101 }, wantErr: true},
		{name: "free text claimed as known", mutate: func(tx *model.Transaction) {
			tx.Category1 = model.CategoryValue{Name: "Groceries", Kind: model.CategoryKnown}
		}, wantErr: true},
		{name: "empty legacy", mutate: func(tx *model.Transaction) {
			tx.Category1 = model.CategoryValue{Kind: model.CategoryLegacy}
		}, wantErr: true},
		{name: "unset with name", mutate: func(tx *model.Transaction) {
			tx.Category1 = model.CategoryValue{Name: "Mercados", Kind: model.CategoryUnset}
		}, wantErr: true},
		{name: "unknown kind", mutate: func(tx *model.Transaction) {
			tx.Category1 = model.CategoryValue{Name: "Mercados", Kind: "other"}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid()
			tt.mutate(txn)
			err := validateTransaction(txn)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransaction)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.ErrorIs(t, validateTransaction(nil), ErrNilParameter)
}

func TestValidateItem(t *testing.T) {
	item := model.IngestionItem{Fingerprint: "fp", Status: model.ItemPending}
	assert.NoError(t, validateItem(&item))

	item.Status = "queued"
	assert.ErrorIs(t, validateItem(&item), ErrInvalidStatus)

	item = model.IngestionItem{Status: model.ItemPending}
	assert.ErrorIs(t, validateItem(&item), ErrInvalidItem)

	item = model.IngestionItem{Fingerprint: "fp", Status: model.ItemPending, RowIndex: -1}
	assert.ErrorIs(t, validateItem(&item), ErrInvalidItem)
}

func TestValidateRuleAndAlias(t *testing.T) {
	leaf := int64(3)
	assert.NoError(t, validateRule(&model.Rule{UserID: "u", KeyWords: "REWE", LeafID: &leaf, Origin: model.RuleSystem}))
	assert.ErrorIs(t, validateRule(&model.Rule{UserID: "u", KeyWords: "REWE", Origin: model.RuleUser}), ErrInvalidRule)
	assert.ErrorIs(t, validateRule(&model.Rule{UserID: "u", KeyWords: "REWE", Category1: "Mercados", Origin: "bot"}), ErrInvalidRule)
	assert.ErrorIs(t, validateRule(nil), ErrNilParameter)

	assert.NoError(t, validateAlias(&model.AliasAsset{UserID: "u", Alias: "Rewe", KeyWords: "REWE"}))
	assert.ErrorIs(t, validateAlias(&model.AliasAsset{UserID: "u", KeyWords: "REWE"}), ErrInvalidAlias)
}
