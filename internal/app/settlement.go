package app

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/settlement"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// commissionOverride is a list entry rather than a map key because viper
// lowercases map keys and seller ids are case sensitive.
type commissionOverride struct {
	Seller string `mapstructure:"seller"`
	Rate   string `mapstructure:"rate"`
}

type settlementConfig struct {
	commission settlement.CommissionPolicy
	taxRate    decimal.Decimal
	currency   money.Currency
	location   *time.Location
}

func mustLoadSettlement() settlementConfig {
	cfg, err := loadSettlement(viper.GetViper())
	if err != nil {
		panic(err)
	}

	return cfg
}

// loadSettlement reads settlement.*. Rates are strings so no precision is
// lost on the way from yaml.
func loadSettlement(v *viper.Viper) (settlementConfig, error) {
	def, err := decimal.NewFromString(v.GetString("settlement.commission_rate"))
	if err != nil {
		return settlementConfig{}, fmt.Errorf("failed to parse settlement.commission_rate: %w", err)
	}

	var entries []commissionOverride
	if err := v.UnmarshalKey("settlement.commission_overrides", &entries); err != nil {
		return settlementConfig{}, fmt.Errorf("failed to decode settlement.commission_overrides: %w", err)
	}

	overrides := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		rate, err := decimal.NewFromString(e.Rate)
		if err != nil {
			return settlementConfig{}, fmt.Errorf("failed to parse commission override of %s: %w", e.Seller, err)
		}
		overrides[e.Seller] = rate
	}

	policy, err := settlement.NewCommissionPolicy(def, overrides)
	if err != nil {
		return settlementConfig{}, err
	}

	taxRate, err := decimal.NewFromString(v.GetString("settlement.tax_rate"))
	if err != nil {
		return settlementConfig{}, fmt.Errorf("failed to parse settlement.tax_rate: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return settlementConfig{}, fmt.Errorf("settlement.tax_rate must be within [0, 1]: %s", taxRate)
	}

	cur, err := money.ParseCurrency(v.GetString("settlement.currency"))
	if err != nil {
		return settlementConfig{}, err
	}

	loc, err := time.LoadLocation(v.GetString("settlement.report_timezone"))
	if err != nil {
		return settlementConfig{}, fmt.Errorf("failed to load settlement.report_timezone: %w", err)
	}

	return settlementConfig{
		commission: policy,
		taxRate:    taxRate,
		currency:   cur,
		location:   loc,
	}, nil
}
