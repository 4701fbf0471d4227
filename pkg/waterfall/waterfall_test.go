package waterfall

import (
	"errors"
	"testing"

	"github.com/iwvelando/project-feasibility/pkg/finance"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func row(horizon int, values map[int]string) timeline.Row {
	r := timeline.NewRow(horizon)
	for p, v := range values {
		r[p] = d(v)
	}
	return r
}

func requireDecimal(t *testing.T, expected string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, d(expected).Equal(got), "expected %s, got %s %v", expected, got, msgAndArgs)
}

func lp(key, commitment string) Tranche {
	return Tranche{Key: key, Role: RoleLP, Commitment: d(commitment)}
}

func gp(key, commitment string) Tranche {
	return Tranche{Key: key, Role: RoleGP, Commitment: d(commitment)}
}

func promoteHurdle() Hurdle {
	return Hurdle{
		Trigger:           Trigger{Type: TriggerMultiple, Threshold: d("1.2")},
		SplitAfterCatchup: Split{LP: d("0.8"), GP: d("0.2")},
		Catchup:           Catchup{Enabled: true, GPTargetShareOfProfits: d("0.2")},
	}
}

func TestValidate(t *testing.T) {
	base := func() (Config, []Tranche) {
		return Config{Mode: ModeAmerican, Hurdles: []Hurdle{promoteHurdle()}},
			[]Tranche{lp("lp", "900"), gp("gp", "100")}
	}

	tests := []struct {
		name   string
		mutate func(*Config, *[]Tranche)
		field  string
	}{
		{"Valid", func(*Config, *[]Tranche) {}, ""},
		{"Unknown mode", func(c *Config, _ *[]Tranche) { c.Mode = "asian" }, "mode"},
		{"Unknown accrual level", func(c *Config, _ *[]Tranche) { c.AccrualLevel = "gp_only" }, "accrual_level"},
		{"Split does not sum to one", func(c *Config, _ *[]Tranche) {
			c.Hurdles[0].SplitAfterCatchup = Split{LP: d("0.8"), GP: d("0.25")}
		}, "hurdles[0].split_after_catchup"},
		{"Negative split share", func(c *Config, _ *[]Tranche) {
			c.Hurdles[0].SplitAfterCatchup = Split{LP: d("1.1"), GP: d("-0.1")}
		}, "hurdles[0].split_after_catchup"},
		{"Non-monotonic thresholds", func(c *Config, _ *[]Tranche) {
			second := promoteHurdle()
			second.Trigger.Threshold = d("1.2")
			c.Hurdles = append(c.Hurdles, second)
		}, "hurdles[1].trigger.threshold"},
		{"Mixed trigger types", func(c *Config, _ *[]Tranche) {
			second := promoteHurdle()
			second.Trigger = Trigger{Type: TriggerIRR, Threshold: d("1.5")}
			c.Hurdles = append(c.Hurdles, second)
		}, "hurdles[1].trigger.type"},
		{"Unknown trigger type", func(c *Config, _ *[]Tranche) { c.Hurdles[0].Trigger.Type = "npv" }, "hurdles[0].trigger.type"},
		{"Catch-up target of one", func(c *Config, _ *[]Tranche) {
			c.Hurdles[0].Catchup.GPTargetShareOfProfits = d("1")
		}, "hurdles[0].catchup.gp_target_share_of_profits"},
		{"Catch-up target of zero", func(c *Config, _ *[]Tranche) {
			c.Hurdles[0].Catchup.GPTargetShareOfProfits = d("0")
		}, "hurdles[0].catchup.gp_target_share_of_profits"},
		{"GP share without GP tranche", func(_ *Config, tr *[]Tranche) { *tr = (*tr)[:1] }, "hurdles"},
		{"Duplicate keys", func(_ *Config, tr *[]Tranche) { (*tr)[1].Key = "lp" }, "equity[1].key"},
		{"Missing key", func(_ *Config, tr *[]Tranche) { (*tr)[0].Key = "" }, "equity[0].key"},
		{"Unknown role", func(_ *Config, tr *[]Tranche) { (*tr)[0].Role = "sponsor" }, "equity[0].role"},
		{"Negative commitment", func(_ *Config, tr *[]Tranche) { (*tr)[0].Commitment = d("-1") }, "equity[0].commitment"},
		{"Negative preferred rate", func(_ *Config, tr *[]Tranche) {
			(*tr)[0].PreferredReturn.RatePa = d("-0.08")
		}, "equity[0].preferred_return.rate_pa"},
		{"Unknown compounding", func(_ *Config, tr *[]Tranche) {
			(*tr)[0].PreferredReturn.Compounding = "daily"
		}, "equity[0].preferred_return.compounding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, tranches := base()
			tt.mutate(&cfg, &tranches)
			err := Validate(cfg, tranches)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %v", err)
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLPOnlyWithoutPromoteMatchesRawIRR(t *testing.T) {
	horizon := 13
	contributions := row(horizon, map[int]string{0: "600", 1: "400"})
	distributable := row(horizon, map[int]string{6: "150", 12: "1050"})

	res, err := Run(zap.NewNop(), Input{
		Config:        Config{Mode: ModeAmerican},
		Tranches:      []Tranche{lp("fund", "1000")},
		Contributions: contributions,
		Distributable: distributable,
		Horizon:       horizon,
	})
	require.NoError(t, err)

	account := res.CapitalAccounts[0]
	raw := finance.IRR(distributable.Sub(contributions).Float64s())
	lpIRR := finance.IRR(account.NetFlows().Float64s())
	require.NotNil(t, raw)
	require.NotNil(t, lpIRR)
	require.InDelta(t, *raw, *lpIRR, 1e-12)
	requireDecimal(t, "1200", res.LP.Distributed)
	requireDecimal(t, "0", res.GP.Distributed)
	requireDecimal(t, "0", res.CarryPaid.Sum())
}

func TestPreferredAccrual(t *testing.T) {
	tests := []struct {
		name        string
		compounding Compounding
		accrued     []string
	}{
		{"Monthly compounding", CompoundMonthly, []string{"10", "10.1", "10.2"}},
		{"Simple", CompoundSimple, []string{"10", "10", "10"}},
		{"Annual compounding", CompoundAnnual, []string{"9.49", "9.58", "9.67"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tranche := lp("fund", "1000")
			tranche.PreferredReturn = PreferredReturn{RatePa: d("0.12"), Compounding: tt.compounding}
			res, err := Run(nil, Input{
				Config:        Config{Mode: ModeAmerican},
				Tranches:      []Tranche{tranche},
				Contributions: row(3, map[int]string{0: "1000"}),
				Distributable: row(3, map[int]string{2: "1100"}),
				Horizon:       3,
			})
			require.NoError(t, err)

			account := res.CapitalAccounts[0]
			accruedTotal := decimal.Zero
			for p, expected := range tt.accrued {
				requireDecimal(t, expected, account.PreferredAccrued[p], "period", p)
				accruedTotal = accruedTotal.Add(account.PreferredAccrued[p])
			}
			requireDecimal(t, "1000", account.ReturnedCapital[2])
			require.True(t, accruedTotal.Equal(account.PreferredPaid[2]))
			requireDecimal(t, "0", account.PreferredUnpaid[2])
			requireDecimal(t, "1100", account.Distributions[2])
			requireDecimal(t, "100", account.Profit[2])
		})
	}
}

func TestPreferredAccrualLPOnly(t *testing.T) {
	sponsor := gp("sponsor", "100")
	sponsor.PreferredReturn.RatePa = d("0.12")
	fund := lp("fund", "900")
	fund.PreferredReturn.RatePa = d("0.12")

	res, err := Run(nil, Input{
		Config:        Config{Mode: ModeAmerican, AccrualLevel: AccrueLPOnly},
		Tranches:      []Tranche{fund, sponsor},
		Contributions: row(2, map[int]string{0: "1000"}),
		Distributable: row(2, nil),
		Horizon:       2,
	})
	require.NoError(t, err)
	requireDecimal(t, "9", res.CapitalAccounts[0].PreferredAccrued[0])
	requireDecimal(t, "0", res.CapitalAccounts[1].PreferredAccrued.Sum())
}

func TestCatchupAndPromote(t *testing.T) {
	res, err := Run(zap.NewNop(), Input{
		Config:        Config{Mode: ModeAmerican, Hurdles: []Hurdle{promoteHurdle()}},
		Tranches:      []Tranche{lp("fund", "900"), gp("sponsor", "100")},
		Contributions: row(2, map[int]string{0: "1000"}),
		Distributable: row(2, map[int]string{1: "2000"}),
		Horizon:       2,
	})
	require.NoError(t, err)

	fund, sponsor := res.CapitalAccounts[0], res.CapitalAccounts[1]
	requireDecimal(t, "900", fund.Contributed[0])
	requireDecimal(t, "100", sponsor.Contributed[0])
	requireDecimal(t, "1700", fund.Distributions[1])
	requireDecimal(t, "300", sponsor.Distributions[1])
	requireDecimal(t, "100", sponsor.Promote[1])
	requireDecimal(t, "100", res.CarryPaid[1])
	requireDecimal(t, "0", res.Clawback)
	require.Equal(t, 1, res.HurdlesReached)

	// GP ends at its 20% catch-up target share of total profit.
	require.True(t, res.GP.Profit.Div(res.GP.Profit.Add(res.LP.Profit)).Equal(d("0.2")))
	requireDecimal(t, "2000", res.Distributed[1])
}

func TestClawbackOnFinalEconomics(t *testing.T) {
	res, err := Run(zap.NewNop(), Input{
		Config:        Config{Mode: ModeAmerican, Hurdles: []Hurdle{promoteHurdle()}},
		Tranches:      []Tranche{lp("fund", "1800"), gp("sponsor", "200")},
		Contributions: row(4, map[int]string{0: "1000", 2: "1000"}),
		Distributable: row(4, map[int]string{1: "2000"}),
		Horizon:       4,
	})
	require.NoError(t, err)

	requireDecimal(t, "100", res.Clawback)
	requireDecimal(t, "-100", res.GPDistributions[3])
	requireDecimal(t, "100", res.LPDistributions[3])
	requireDecimal(t, "1800", res.LP.Distributed)
	requireDecimal(t, "200", res.GP.Distributed)
	requireDecimal(t, "0", res.GP.Profit)
	require.False(t, res.LPDistributions[3].IsNegative())
	// Clawback never exceeds the carry the GP received.
	require.True(t, res.Clawback.LessThanOrEqual(res.CarryPaid.Sum()))
}

// twoTierHurdles catches the GP up to 20% once the LP has its capital back,
// then promotes it to 40% above a 1.5x LP multiple.
func twoTierHurdles() []Hurdle {
	return []Hurdle{
		{
			Trigger:           Trigger{Type: TriggerMultiple, Threshold: d("1.0")},
			SplitAfterCatchup: Split{LP: d("0.8"), GP: d("0.2")},
			Catchup:           Catchup{Enabled: true, GPTargetShareOfProfits: d("0.2")},
		},
		{
			Trigger:           Trigger{Type: TriggerMultiple, Threshold: d("1.5")},
			SplitAfterCatchup: Split{LP: d("0.6"), GP: d("0.4")},
		},
	}
}

func TestPromoteTiersSurviveTermination(t *testing.T) {
	res, err := Run(zap.NewNop(), Input{
		Config:        Config{Mode: ModeEuropean, Hurdles: twoTierHurdles()},
		Tranches:      []Tranche{lp("fund", "900"), gp("sponsor", "100")},
		Contributions: row(2, map[int]string{0: "1000"}),
		Distributable: row(2, map[int]string{1: "4000"}),
		Horizon:       2,
	})
	require.NoError(t, err)

	require.Equal(t, 2, res.HurdlesReached)
	requireDecimal(t, "787.5", res.CarryPaid.Sum())
	requireDecimal(t, "0", res.Clawback)
	requireDecimal(t, "2812.5", res.LP.Distributed)
	requireDecimal(t, "1187.5", res.GP.Distributed)

	share := res.GP.Profit.Div(res.GP.Profit.Add(res.LP.Profit))
	require.True(t, share.GreaterThan(d("0.2")), "GP profit share %s", share)
}

func TestClawbackKeepsLadderEntitlement(t *testing.T) {
	res, err := Run(zap.NewNop(), Input{
		Config:        Config{Mode: ModeAmerican, Hurdles: twoTierHurdles()},
		Tranches:      []Tranche{lp("fund", "1800"), gp("sponsor", "200")},
		Contributions: row(4, map[int]string{0: "1000", 2: "1000"}),
		Distributable: row(4, map[int]string{1: "2000", 3: "4000"}),
		Horizon:       4,
	})
	require.NoError(t, err)

	// Paid once at the end, 6,000 returns 2,000 of capital, lifts the LP to
	// 1.5x with 900/225 and splits the last 2,875 60/40: the GP is entitled
	// to 1,575.
	requireDecimal(t, "65.63", res.Clawback)
	requireDecimal(t, "1575", res.GP.Distributed)
	requireDecimal(t, "4425", res.LP.Distributed)
	requireDecimal(t, "0.34375", res.GP.Profit.Div(res.GP.Profit.Add(res.LP.Profit)))
	requireDecimal(t, "1187.5", res.GPDistributions[3])
	requireDecimal(t, "2812.5", res.LPDistributions[3])
	require.True(t, res.Clawback.LessThanOrEqual(res.CarryPaid.Sum()))
}

func TestEuropeanModeDistributesAtTerminal(t *testing.T) {
	res, err := Run(nil, Input{
		Config:        Config{Mode: ModeEuropean},
		Tranches:      []Tranche{lp("fund", "1000")},
		Contributions: row(3, map[int]string{0: "1000"}),
		Distributable: row(3, map[int]string{1: "500", 2: "700"}),
		Horizon:       3,
	})
	require.NoError(t, err)

	requireDecimal(t, "0", res.LPDistributions[1])
	requireDecimal(t, "1200", res.LPDistributions[2])
	requireDecimal(t, "0", res.UndistributedEnd)
}

func TestUnfundedCommitments(t *testing.T) {
	res, err := Run(nil, Input{
		Config:        Config{Mode: ModeAmerican},
		Tranches:      []Tranche{lp("a", "300"), lp("b", "200")},
		Contributions: row(2, map[int]string{0: "400", 1: "400"}),
		Distributable: row(2, nil),
		Horizon:       2,
	})
	require.NoError(t, err)

	requireDecimal(t, "240", res.CapitalAccounts[0].Contributed[0])
	requireDecimal(t, "160", res.CapitalAccounts[1].Contributed[0])
	requireDecimal(t, "0", res.UnfundedCalls[0])
	requireDecimal(t, "300", res.UnfundedCalls[1])
	requireDecimal(t, "500", res.LP.Contributed)
}

func TestIRRHurdle(t *testing.T) {
	horizon := 13
	res, err := Run(nil, Input{
		Config: Config{Mode: ModeAmerican, Hurdles: []Hurdle{{
			Trigger:           Trigger{Type: TriggerIRR, Threshold: d("0.1")},
			SplitAfterCatchup: Split{LP: d("0.5"), GP: d("0.5")},
		}}},
		Tranches:      []Tranche{lp("fund", "1000"), gp("sponsor", "0")},
		Contributions: row(horizon, map[int]string{0: "1000"}),
		Distributable: row(horizon, map[int]string{12: "2000"}),
		Horizon:       horizon,
	})
	require.NoError(t, err)

	// The LP first earns its 10% hurdle (1,100), then the remaining 900 splits 50/50.
	require.InDelta(t, 1550, res.LP.Distributed.InexactFloat64(), 0.011)
	require.InDelta(t, 450, res.GP.Distributed.InexactFloat64(), 0.011)
	require.True(t, res.CarryPaid.Sum().Equal(res.GP.Distributed))

	lpIRR := finance.IRR(res.CapitalAccounts[0].NetFlows().Float64s())
	require.NotNil(t, lpIRR)
	require.Greater(t, finance.AnnualizeMonthly(*lpIRR), 0.1)
}

func TestPayProRata(t *testing.T) {
	weights := []decimal.Decimal{d("1"), d("1"), d("1")}

	shares, paid := payProRata(d("100"), weights, nil)
	requireDecimal(t, "100", paid)
	requireDecimal(t, "33.33", shares[0])
	requireDecimal(t, "33.34", shares[2])

	caps := []decimal.Decimal{d("10"), d("20"), d("0")}
	shares, paid = payProRata(d("50"), caps, caps)
	requireDecimal(t, "30", paid)
	requireDecimal(t, "10", shares[0])
	requireDecimal(t, "20", shares[1])

	_, paid = payProRata(d("50"), []decimal.Decimal{d("0")}, []decimal.Decimal{d("0")})
	requireDecimal(t, "0", paid)
}

func TestConfigClone(t *testing.T) {
	cfg := Config{Mode: ModeAmerican, Hurdles: []Hurdle{promoteHurdle()}}
	clone := cfg.Clone()
	clone.Hurdles[0].SplitAfterCatchup.LP = d("0.5")
	requireDecimal(t, "0.8", cfg.Hurdles[0].SplitAfterCatchup.LP)
}
