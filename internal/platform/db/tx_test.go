package db

import (
	"context"
	"errors"
	"testing"

	"github.com/occhealth/occhealth/internal/platform/apperr"
)

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestRunInTx_NoPool(t *testing.T) {
	called := false
	err := RunInTx(context.Background(), nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error without a pool")
	}
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("expected persistence error, got %v", err)
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestConn_FallsBackToPool(t *testing.T) {
	// With neither a tx nor a pool the returned querier is the nil pool; the
	// important part is that no tx is invented.
	q := Conn(context.Background(), nil)
	if _, ok := q.(interface{ Commit(context.Context) error }); ok {
		t.Error("expected pool querier, got a transaction")
	}
}
