package app

import (
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("settlement.currency", "USD")
	v.SetDefault("settlement.tax_rate", "0")
	v.SetDefault("settlement.commission_rate", "0.1")
	v.SetDefault("settlement.report_timezone", "UTC")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	return v
}

func TestLoadSettlement(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg settlementConfig)
		wantErr error
	}{
		{
			name: "defaults",
			yaml: "{}",
			check: func(t *testing.T, cfg settlementConfig) {
				assert.True(t, cfg.commission.Default.Equal(decimal.RequireFromString("0.1")))
				assert.True(t, cfg.taxRate.IsZero())
				assert.Equal(t, money.CurrencyUSD, cfg.currency)
				assert.Equal(t, time.UTC, cfg.location)
			},
		},
		{
			name: "overrides keep seller case",
			yaml: `
settlement:
  currency: eur
  tax_rate: "0.2"
  report_timezone: Europe/Berlin
  commission_overrides:
    - seller: Seller-A
      rate: 0.05
`,
			check: func(t *testing.T, cfg settlementConfig) {
				assert.True(t, cfg.commission.RateFor("Seller-A").Equal(decimal.RequireFromString("0.05")))
				assert.True(t, cfg.commission.RateFor("seller-a").Equal(decimal.RequireFromString("0.1")))
				assert.True(t, cfg.taxRate.Equal(decimal.RequireFromString("0.2")))
				assert.Equal(t, "EUR", cfg.currency.String())
				assert.Equal(t, "Europe/Berlin", cfg.location.String())
			},
		},
		{
			name:    "commission above one",
			yaml:    "settlement: {commission_rate: \"1.5\"}",
			wantErr: errs.ErrInvalidArgument,
		},
		{
			name: "tax rate above one",
			yaml: "settlement: {tax_rate: \"1.2\"}",
		},
		{
			name: "negative tax rate",
			yaml: "settlement: {tax_rate: \"-0.1\"}",
		},
		{
			name:    "unknown currency",
			yaml:    "settlement: {currency: QQQ}",
			wantErr: errs.ErrInvalidArgument,
		},
		{
			name:    "bad override rate",
			yaml:    "settlement: {commission_overrides: [{seller: s1, rate: abc}]}",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadSettlement(newViper(t, tt.yaml))
			if tt.check == nil {
				require.Error(t, err)
				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				}

				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
