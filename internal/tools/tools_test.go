package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistry_DefinitionsPreserveOrder(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	defs := r.Definitions()
	if len(defs) != 7 {
		t.Fatalf("got %d definitions, want 7", len(defs))
	}
	if defs[0].Name != "get_stock_price" {
		t.Errorf("first tool = %q, want get_stock_price", defs[0].Name)
	}
	if defs[6].Name != "calculate_mortgage_payment" {
		t.Errorf("last tool = %q, want calculate_mortgage_payment", defs[6].Name)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)
	err := r.Register(FinanceTools()[0])
	if err == nil {
		t.Fatal("duplicate registration succeeded")
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)
	_, err := r.Execute(context.Background(), "launch_missiles", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestStockPrice(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	res, err := r.Execute(context.Background(), "get_stock_price", map[string]any{"ticker": "aapl"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != "text" {
		t.Errorf("Type = %q, want text", res.Type)
	}
	if !strings.Contains(res.Data, "AAPL") || !strings.Contains(res.Data, "$150.00") {
		t.Errorf("Data = %q", res.Data)
	}

	// Unknown tickers get the fallback quote.
	res, err = r.Execute(context.Background(), "get_stock_price", map[string]any{"ticker": "ZZZZ"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "$100.00") {
		t.Errorf("Data = %q, want fallback price", res.Data)
	}
}

func TestStockPrice_MissingArgument(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)
	if _, err := r.Execute(context.Background(), "get_stock_price", map[string]any{}); err == nil {
		t.Fatal("missing ticker accepted")
	}
	if _, err := r.Execute(context.Background(), "get_stock_price", map[string]any{"ticker": 42.0}); err == nil {
		t.Fatal("numeric ticker accepted")
	}
}

func TestROI(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	res, err := r.Execute(context.Background(), "calculate_roi", map[string]any{
		"initial_value": 100.0,
		"final_value":   150.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "50.00%") {
		t.Errorf("Data = %q, want 50.00%%", res.Data)
	}

	if _, err := r.Execute(context.Background(), "calculate_roi", map[string]any{
		"initial_value": 0.0,
		"final_value":   150.0,
	}); err == nil {
		t.Error("zero initial value accepted")
	}
}

func TestExchangeRate(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	res, err := r.Execute(context.Background(), "get_exchange_rate", map[string]any{
		"base_currency":   "usd",
		"target_currency": "eur",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "0.85") {
		t.Errorf("Data = %q, want rate 0.85", res.Data)
	}

	// Unknown pair falls back to parity.
	res, _ = r.Execute(context.Background(), "get_exchange_rate", map[string]any{
		"base_currency":   "USD",
		"target_currency": "JPY",
	})
	if !strings.Contains(res.Data, "is 1.") {
		t.Errorf("Data = %q, want parity fallback", res.Data)
	}
}

func TestCompoundInterest(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	// 1000 at 10% over 2 years = 1210.
	res, err := r.Execute(context.Background(), "calculate_compound_interest", map[string]any{
		"principal": 1000.0,
		"rate":      10.0,
		"years":     2.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "$1210.00") {
		t.Errorf("Data = %q, want $1210.00", res.Data)
	}

	// Fractional years are rejected.
	if _, err := r.Execute(context.Background(), "calculate_compound_interest", map[string]any{
		"principal": 1000.0,
		"rate":      10.0,
		"years":     2.5,
	}); err == nil {
		t.Error("fractional years accepted")
	}
}

func TestMortgagePayment(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	// Zero-rate loans amortise linearly.
	res, err := r.Execute(context.Background(), "calculate_mortgage_payment", map[string]any{
		"principal":   120000.0,
		"annual_rate": 0.0,
		"years":       10.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "$1000.00") {
		t.Errorf("Data = %q, want $1000.00", res.Data)
	}

	if _, err := r.Execute(context.Background(), "calculate_mortgage_payment", map[string]any{
		"principal":   120000.0,
		"annual_rate": 5.0,
		"years":       0.0,
	}); err == nil {
		t.Error("zero-year term accepted")
	}
}

func TestCryptoPriceAndNews(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FinanceTools()...)

	res, err := r.Execute(context.Background(), "get_crypto_price", map[string]any{"symbol": "btc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "BTC") || !strings.Contains(res.Data, "$60000.00") {
		t.Errorf("Data = %q", res.Data)
	}

	res, err = r.Execute(context.Background(), "get_company_news", map[string]any{"ticker": "tsla"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Data, "TSLA") {
		t.Errorf("Data = %q", res.Data)
	}
}
