package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// Demo quote tables. Real market data feeds are out of scope; these keep the
// tools deterministic for routing and latency experiments.
var (
	stockPrices = map[string]float64{
		"AAPL": 150.0, "GOOG": 2800.0, "TSLA": 700.0, "MSFT": 300.0,
	}
	cryptoPrices = map[string]float64{
		"BTC": 60000.0, "ETH": 4000.0, "SOL": 150.0,
	}
	exchangeRates = map[string]float64{
		"USD_EUR": 0.85, "EUR_USD": 1.18, "USD_GBP": 0.75, "GBP_USD": 1.33,
	}
)

// FinanceTools returns the built-in finance tool set.
func FinanceTools() []Tool {
	return []Tool{
		{
			Definition: backend.Tool{
				Name:        "get_stock_price",
				Description: "Get the current stock price for a given ticker symbol.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"ticker": map[string]any{
							"type":        "string",
							"description": "The stock ticker symbol, e.g., AAPL.",
						},
					},
					"required": []string{"ticker"},
				},
			},
			Handler: handleStockPrice,
		},
		{
			Definition: backend.Tool{
				Name:        "get_company_news",
				Description: "Get the latest news headlines for a company.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"ticker": map[string]any{
							"type":        "string",
							"description": "The stock ticker symbol.",
						},
					},
					"required": []string{"ticker"},
				},
			},
			Handler: handleCompanyNews,
		},
		{
			Definition: backend.Tool{
				Name:        "calculate_roi",
				Description: "Calculate Return on Investment (ROI) given initial and final values.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"initial_value": map[string]any{
							"type":        "number",
							"description": "The starting value of the investment.",
						},
						"final_value": map[string]any{
							"type":        "number",
							"description": "The ending value of the investment.",
						},
					},
					"required": []string{"initial_value", "final_value"},
				},
			},
			Handler: handleROI,
		},
		{
			Definition: backend.Tool{
				Name:        "get_exchange_rate",
				Description: "Get the exchange rate between two currencies.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"base_currency":   map[string]any{"type": "string", "description": "Base currency code, e.g., USD"},
						"target_currency": map[string]any{"type": "string", "description": "Target currency code, e.g., EUR"},
					},
					"required": []string{"base_currency", "target_currency"},
				},
			},
			Handler: handleExchangeRate,
		},
		{
			Definition: backend.Tool{
				Name:        "calculate_compound_interest",
				Description: "Calculate the compound interest amount.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"principal": map[string]any{"type": "number", "description": "Initial investment amount"},
						"rate":      map[string]any{"type": "number", "description": "Annual interest rate in percent"},
						"years":     map[string]any{"type": "integer", "description": "Number of years"},
					},
					"required": []string{"principal", "rate", "years"},
				},
			},
			Handler: handleCompoundInterest,
		},
		{
			Definition: backend.Tool{
				Name:        "get_crypto_price",
				Description: "Get the current price for a given cryptocurrency symbol.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"symbol": map[string]any{
							"type":        "string",
							"description": "The cryptocurrency symbol, e.g., BTC.",
						},
					},
					"required": []string{"symbol"},
				},
			},
			Handler: handleCryptoPrice,
		},
		{
			Definition: backend.Tool{
				Name:        "calculate_mortgage_payment",
				Description: "Calculate the monthly mortgage payment.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"principal":   map[string]any{"type": "number", "description": "Loan principal amount"},
						"annual_rate": map[string]any{"type": "number", "description": "Annual interest rate in percent"},
						"years":       map[string]any{"type": "integer", "description": "Loan term in years"},
					},
					"required": []string{"principal", "annual_rate", "years"},
				},
			},
			Handler: handleMortgagePayment,
		},
	}
}

func handleStockPrice(_ context.Context, args map[string]any) (Result, error) {
	ticker, err := stringArg(args, "ticker")
	if err != nil {
		return Result{}, err
	}
	ticker = strings.ToUpper(ticker)
	price, ok := stockPrices[ticker]
	if !ok {
		price = 100.0
	}
	return textResult(fmt.Sprintf("The current stock price for %s is $%.2f.", ticker, price)), nil
}

func handleCompanyNews(_ context.Context, args map[string]any) (Result, error) {
	ticker, err := stringArg(args, "ticker")
	if err != nil {
		return Result{}, err
	}
	return textResult(fmt.Sprintf("%s has announced record-breaking quarterly profits.", strings.ToUpper(ticker))), nil
}

func handleROI(_ context.Context, args map[string]any) (Result, error) {
	initial, err := numberArg(args, "initial_value")
	if err != nil {
		return Result{}, err
	}
	final, err := numberArg(args, "final_value")
	if err != nil {
		return Result{}, err
	}
	if initial == 0 {
		return Result{}, fmt.Errorf("initial_value must not be zero")
	}
	roi := (final - initial) / initial * 100
	return textResult(fmt.Sprintf("The Return on Investment (ROI) is %.2f%%.", roi)), nil
}

func handleExchangeRate(_ context.Context, args map[string]any) (Result, error) {
	base, err := stringArg(args, "base_currency")
	if err != nil {
		return Result{}, err
	}
	target, err := stringArg(args, "target_currency")
	if err != nil {
		return Result{}, err
	}
	base, target = strings.ToUpper(base), strings.ToUpper(target)
	rate, ok := exchangeRates[base+"_"+target]
	if !ok {
		rate = 1.0
	}
	return textResult(fmt.Sprintf("The exchange rate from %s to %s is %v.", base, target, rate)), nil
}

func handleCompoundInterest(_ context.Context, args map[string]any) (Result, error) {
	principal, err := numberArg(args, "principal")
	if err != nil {
		return Result{}, err
	}
	rate, err := numberArg(args, "rate")
	if err != nil {
		return Result{}, err
	}
	years, err := intArg(args, "years")
	if err != nil {
		return Result{}, err
	}
	amount := principal * math.Pow(1+rate/100, float64(years))
	return textResult(fmt.Sprintf("The compound interest amount after %d years is $%.2f.", years, amount)), nil
}

func handleCryptoPrice(_ context.Context, args map[string]any) (Result, error) {
	symbol, err := stringArg(args, "symbol")
	if err != nil {
		return Result{}, err
	}
	symbol = strings.ToUpper(symbol)
	price, ok := cryptoPrices[symbol]
	if !ok {
		price = 1000.0
	}
	return textResult(fmt.Sprintf("The current price for %s is $%.2f.", symbol, price)), nil
}

func handleMortgagePayment(_ context.Context, args map[string]any) (Result, error) {
	principal, err := numberArg(args, "principal")
	if err != nil {
		return Result{}, err
	}
	annualRate, err := numberArg(args, "annual_rate")
	if err != nil {
		return Result{}, err
	}
	years, err := intArg(args, "years")
	if err != nil {
		return Result{}, err
	}
	if years <= 0 {
		return Result{}, fmt.Errorf("years must be positive")
	}

	monthlyRate := annualRate / 100 / 12
	numPayments := float64(years * 12)
	var payment float64
	if monthlyRate == 0 {
		payment = principal / numPayments
	} else {
		growth := math.Pow(1+monthlyRate, numPayments)
		payment = principal * (monthlyRate * growth) / (growth - 1)
	}
	return textResult(fmt.Sprintf("The monthly mortgage payment is $%.2f.", payment)), nil
}

func textResult(s string) Result {
	return Result{Type: "text", Data: s}
}
