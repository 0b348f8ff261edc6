package pricemath

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

func relDiff(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return a.Abs()
	}
	return Quo(a.Sub(b).Abs(), b.Abs())
}

func requireClose(t *testing.T, want, got decimal.Decimal, tol string) {
	t.Helper()
	diff := relDiff(got, want)
	require.Truef(t, diff.LessThan(decimal.RequireFromString(tol)),
		"want %s got %s (relative diff %s)", want, got, diff)
}

func TestDecodeSqrtPriceExact(t *testing.T) {
	require.True(t, DecodeSqrtPrice(q96).Equal(decimal.New(1, 0)))

	halfQ96 := new(big.Int).Rsh(q96, 1)
	require.True(t, DecodeSqrtPrice(halfQ96).Equal(decimal.RequireFromString("0.5")))

	// One unit is exactly 2^-96.
	unit := DecodeSqrtPrice(big.NewInt(1))
	back := unit.Mul(decimal.NewFromBigInt(q96, 0))
	require.True(t, back.Equal(decimal.New(1, 0)), "got %s", back)

	require.True(t, DecodeSqrtPrice(nil).IsZero())
	require.True(t, DecodeSqrtPrice(big.NewInt(0)).IsZero())
}

func TestPriceFromSqrtPrice(t *testing.T) {
	got := PriceFromSqrtPrice(decimal.RequireFromString("1.1"))
	require.True(t, got.Equal(decimal.RequireFromString("1.21")))
}

func TestSqrtPriceFromTickSmall(t *testing.T) {
	require.True(t, SqrtPriceFromTick(0).Equal(decimal.New(1, 0)))
	requireClose(t, decimal.RequireFromString("1.0001"), SqrtPriceFromTick(2), "1e-40")
	requireClose(t, Quo(decimal.New(1, 0), decimal.RequireFromString("1.0001")), SqrtPriceFromTick(-2), "1e-40")
	requireClose(t, decimal.RequireFromString("1.0001"), PriceFromSqrtPrice(SqrtPriceFromTick(1)), "1e-40")
}

func TestSqrtPriceFromTickRecoversTickPrice(t *testing.T) {
	ticks := []int32{-200000, -199999, -123457, -60001, -887, -1, 1, 59, 887, 60000, 123457, 199999, 200000}
	for tick := int32(-200000); tick <= 200000; tick += 19997 {
		ticks = append(ticks, tick)
	}

	for _, tick := range ticks {
		got := PriceFromSqrtPrice(SqrtPriceFromTick(tick))
		requireClose(t, PriceFromTick(tick), got, "1e-30")
	}
}

func TestSqrtPriceFromTickMatchesChainBounds(t *testing.T) {
	q := decimal.NewFromBigInt(q96, 0)

	minRatio := SqrtPriceFromTick(MinTick).Mul(q)
	requireClose(t, decimal.RequireFromString("4295128739"), minRatio, "1e-9")

	maxRatio := SqrtPriceFromTick(MaxTick).Mul(q)
	requireClose(t, decimal.RequireFromString("1461446703485210103287273052203988822378723970342"), maxRatio, "1e-9")
}

func TestTickAtSqrtPrice(t *testing.T) {
	for _, tick := range []int32{-887272, -200000, -60, -1, 0, 1, 60, 200000, 887271} {
		require.Equal(t, tick, TickAtSqrtPrice(SqrtPriceFromTick(tick)), "tick %d", tick)
	}

	// Between two ticks rounds down.
	between := SqrtPriceFromTick(100).Mul(decimal.RequireFromString("1.00001"))
	require.Equal(t, int32(100), TickAtSqrtPrice(between))

	require.Equal(t, MinTick, TickAtSqrtPrice(decimal.Zero))
	require.Equal(t, MaxTick, TickAtSqrtPrice(decimal.New(1, 30)))
}

func TestAdjustForDecimals(t *testing.T) {
	price := decimal.RequireFromString("0.000000000003512345")

	got := AdjustForDecimals(price, 18, 6)
	require.True(t, got.Equal(price.Mul(decimal.New(1, 12))), "got %s", got)

	got = AdjustForDecimals(price, 6, 18)
	require.True(t, got.Equal(Quo(price, decimal.New(1, 12))), "got %s", got)

	require.True(t, AdjustForDecimals(price, 8, 8).Equal(price))
}

func TestAdjustForDecimalsRoundTrip(t *testing.T) {
	prices := []string{"1", "1234.5678", "0.000000000000000001", "79228162514264337593543950336.123456789"}
	pairs := [][2]uint8{{18, 6}, {6, 18}, {0, 18}, {8, 8}, {9, 2}}

	for _, raw := range prices {
		p := decimal.RequireFromString(raw)
		for _, pair := range pairs {
			back := AdjustForDecimals(AdjustForDecimals(p, pair[0], pair[1]), pair[1], pair[0])
			require.True(t, back.Equal(p), "price %s decimals %v: got %s", raw, pair, back)
		}
	}
}

func TestScaleAmount(t *testing.T) {
	raw, _ := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ScaleAmount(raw, 18).Equal(decimal.RequireFromString("1.5")))
	require.True(t, ScaleAmount(big.NewInt(2500000), 6).Equal(decimal.RequireFromString("2.5")))
	require.True(t, ScaleAmount(big.NewInt(42), 0).Equal(decimal.New(42, 0)))
	require.True(t, ScaleAmount(nil, 6).IsZero())
}

func TestQuoPrecision(t *testing.T) {
	third := Quo(decimal.New(1, 0), decimal.New(3, 0))
	coef := third.Coefficient().String()
	require.GreaterOrEqual(t, len(coef), Precision)

	tiny := Quo(decimal.New(1, -40), decimal.New(3, 0))
	require.GreaterOrEqual(t, len(tiny.Coefficient().String()), Precision)

	require.True(t, Quo(decimal.Zero, decimal.New(7, 0)).IsZero())
}

func TestSqrt(t *testing.T) {
	two := decimal.New(2, 0)
	root := Sqrt(two)
	requireClose(t, two, root.Mul(root), "1e-45")

	requireClose(t, decimal.New(2, 0), Sqrt(decimal.New(4, 0)), "1e-50")
	require.True(t, Sqrt(decimal.Zero).IsZero())

	small := decimal.New(1, -30)
	requireClose(t, decimal.New(1, -15), Sqrt(small), "1e-45")

	large := decimal.RequireFromString("3512.345678")
	r := Sqrt(large)
	requireClose(t, large, r.Mul(r), "1e-45")
}

func TestRound(t *testing.T) {
	third := Round(Quo(decimal.New(1, 0), decimal.New(3, 0)))
	require.Equal(t, Precision, len(third.Coefficient().String()))

	decoded := DecodeSqrtPrice(new(big.Int).Lsh(big.NewInt(3), 95))
	require.True(t, decoded.Equal(decimal.RequireFromString("1.5")))
	require.True(t, Round(decimal.Zero).IsZero())
}
