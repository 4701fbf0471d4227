package finance

// ratioEpsilon is the smallest denominator a multiple is reported for.
const ratioEpsilon = 1e-9

// Multiples holds the private-equity return ratios of one investor or class.
type Multiples struct {
	MOIC *float64 `json:"moic"`
	TVPI *float64 `json:"tvpi"`
	DPI  *float64 `json:"dpi"`
	RVPI *float64 `json:"rvpi"`
}

// Ratio returns num/den, or nil when den is zero.
func Ratio(num, den float64) *float64 {
	if den < ratioEpsilon && den > -ratioEpsilon {
		return nil
	}
	r := num / den
	return &r
}

// CalculateMultiples derives MOIC, TVPI, DPI and RVPI from paid-in capital,
// cash distributed and residual (undistributed) value. Every ratio is nil when
// nothing was contributed.
func CalculateMultiples(contributed, distributed, residual float64) Multiples {
	return Multiples{
		MOIC: Ratio(distributed+residual, contributed),
		TVPI: Ratio(distributed+residual, contributed),
		DPI:  Ratio(distributed, contributed),
		RVPI: Ratio(residual, contributed),
	}
}
