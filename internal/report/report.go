// Package report renders valuations for people. Values are only rounded
// here.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"lpValuer/internal/model"
	"lpValuer/internal/valuation"
)

const (
	priceDigits  = 4
	valueDigits  = 2
	feeDigits    = 6
	amountDigits = 6
)

// Write prints res as an aligned key/value table.
func Write(w io.Writer, res valuation.Result) error {
	v := res.Valuation
	sym0 := symbol(res.Token0, "asset0")
	sym1 := symbol(res.Token1, "asset1")

	status := "out of range"
	if v.InRange {
		status = "in range"
	}
	feeNote := ""
	if !res.FeesAvailable {
		feeNote = " (fee simulation unavailable)"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Block Number", fmt.Sprintf("%d", v.BlockNumber)},
		{"Pool", res.Pool.Hex()},
		{"Position", positionLine(res.Position, status)},
		{"Pool Price", fmt.Sprintf("%s %s/%s", v.PoolPrice.StringFixed(priceDigits), sym1, sym0)},
		{"Token X Price", usd(v.Asset0USD, priceDigits) + " " + sym0},
		{"Token Y Price", usd(v.Asset1USD, priceDigits) + " " + sym1},
		{"Amounts", fmt.Sprintf("%s %s, %s %s", v.Amount0.StringFixed(amountDigits), sym0, v.Amount1.StringFixed(amountDigits), sym1)},
		{"Unclaimed", fmt.Sprintf("%s %s, %s %s", v.Fee0.StringFixed(feeDigits), sym0, v.Fee1.StringFixed(feeDigits), sym1)},
		{"Position Value", usd(v.PositionUSD, valueDigits)},
		{"Unclaimed Fees", usd(v.FeesUSD, feeDigits) + feeNote},
		{"Total Value", usd(v.TotalUSD, valueDigits)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func positionLine(pos model.Position, status string) string {
	id := "?"
	if pos.ID != nil {
		id = pos.ID.String()
	}
	return fmt.Sprintf("#%s ticks [%d, %d] %s", id, pos.TickLower, pos.TickUpper, status)
}

func usd(d decimal.Decimal, digits int32) string {
	return "$" + d.StringFixed(digits)
}

func symbol(meta model.TokenMeta, fallback string) string {
	if meta.Symbol != "" {
		return meta.Symbol
	}
	return fallback
}
