package config

// Project holds the base project every scenario starts from.
type Project struct {
	Timeline  TimelineConfig   `yaml:"timeline" mapstructure:"timeline"`
	Valuation ValuationConfig  `yaml:"valuation,omitempty" mapstructure:"valuation"`
	CostItems []CostItem       `yaml:"costItems,omitempty" mapstructure:"costItems" validate:"dive"`
	UnitTypes []UnitType       `yaml:"unitTypes,omitempty" mapstructure:"unitTypes" validate:"dive"`
	Debt      []Facility       `yaml:"debt,omitempty" mapstructure:"debt" validate:"dive"`
	Equity    []Tranche        `yaml:"equity,omitempty" mapstructure:"equity" validate:"dive"`
	Waterfall *WaterfallConfig `yaml:"waterfall,omitempty" mapstructure:"waterfall"`
}

// Scenario adds items to the common project and may replace its waterfall.
type Scenario struct {
	Name      string           `yaml:"name" mapstructure:"name" validate:"required"`
	Active    bool             `yaml:"active" mapstructure:"active"`
	CostItems []CostItem       `yaml:"costItems,omitempty" mapstructure:"costItems" validate:"dive"`
	UnitTypes []UnitType       `yaml:"unitTypes,omitempty" mapstructure:"unitTypes" validate:"dive"`
	Debt      []Facility       `yaml:"debt,omitempty" mapstructure:"debt" validate:"dive"`
	Equity    []Tranche        `yaml:"equity,omitempty" mapstructure:"equity" validate:"dive"`
	Waterfall *WaterfallConfig `yaml:"waterfall,omitempty" mapstructure:"waterfall"`
}

// TimelineConfig is the period grid. StartDate is optional and only labels
// the periods.
type TimelineConfig struct {
	Periods   int    `yaml:"periods" mapstructure:"periods" validate:"gt=0"`
	StartDate string `yaml:"startDate,omitempty" mapstructure:"startDate"`
}

// ValuationConfig holds the annual discount rate used for the equity NPV.
type ValuationConfig struct {
	DiscountRate float64 `yaml:"discountRate,omitempty" mapstructure:"discountRate" validate:"gt=-1"`
}

// CostItem is a phased development cost. Amounts are in currency units and
// rates are annual fractions.
type CostItem struct {
	ID              string           `yaml:"id" mapstructure:"id" validate:"required"`
	Label           string           `yaml:"label,omitempty" mapstructure:"label"`
	Category        string           `yaml:"category,omitempty" mapstructure:"category"`
	BaseAmount      float64          `yaml:"baseAmount" mapstructure:"baseAmount"`
	StartPeriod     int              `yaml:"startPeriod" mapstructure:"startPeriod" validate:"gte=0"`
	DurationPeriods int              `yaml:"durationPeriods" mapstructure:"durationPeriods" validate:"gte=0"`
	EscalationRate  float64          `yaml:"escalationRate,omitempty" mapstructure:"escalationRate" validate:"gt=-1"`
	Weights         []float64        `yaml:"weights,omitempty" mapstructure:"weights" validate:"omitempty,dive,gte=0"`
	Optimizer       *OptimizerConfig `yaml:"optimizer,omitempty" mapstructure:"optimizer"`
}

// UnitType is a sale or rental revenue line over [StartPeriod, EndPeriod).
type UnitType struct {
	ID             string           `yaml:"id" mapstructure:"id" validate:"required"`
	Label          string           `yaml:"label,omitempty" mapstructure:"label"`
	Kind           string           `yaml:"kind" mapstructure:"kind" validate:"required,oneof=sale rental"`
	Units          float64          `yaml:"units" mapstructure:"units" validate:"gte=0"`
	Price          float64          `yaml:"price" mapstructure:"price" validate:"gte=0"`
	StartPeriod    int              `yaml:"startPeriod" mapstructure:"startPeriod" validate:"gte=0"`
	EndPeriod      int              `yaml:"endPeriod" mapstructure:"endPeriod" validate:"gtefield=StartPeriod"`
	EscalationRate float64          `yaml:"escalationRate,omitempty" mapstructure:"escalationRate" validate:"gt=-1"`
	Occupancy      *float64         `yaml:"occupancy,omitempty" mapstructure:"occupancy" validate:"omitempty,gte=0,lte=1"`
	Recognition    string           `yaml:"recognition,omitempty" mapstructure:"recognition" validate:"omitempty,oneof=handover linear"`
	HandoverPeriod *int             `yaml:"handoverPeriod,omitempty" mapstructure:"handoverPeriod" validate:"omitempty,gte=0"`
	RentBasis      string           `yaml:"rentBasis,omitempty" mapstructure:"rentBasis" validate:"omitempty,oneof=monthly daily"`
	Optimizer      *OptimizerConfig `yaml:"optimizer,omitempty" mapstructure:"optimizer"`
}

// Facility is one debt facility. LTC and fees are fractions, so 0.65 is a
// 65% loan-to-cost cap.
type Facility struct {
	Name              string  `yaml:"name" mapstructure:"name" validate:"required"`
	Limit             float64 `yaml:"limit" mapstructure:"limit" validate:"gte=0"`
	LTC               float64 `yaml:"ltc" mapstructure:"ltc" validate:"gte=0,lte=1"`
	Rate              float64 `yaml:"rate" mapstructure:"rate" validate:"gte=0"`
	RateBasis         string  `yaml:"rateBasis,omitempty" mapstructure:"rateBasis" validate:"omitempty,oneof=nominal effective"`
	AmortType         string  `yaml:"amortType" mapstructure:"amortType" validate:"required"`
	AvailabilityStart int     `yaml:"availabilityStart" mapstructure:"availabilityStart" validate:"gte=0"`
	AvailabilityEnd   int     `yaml:"availabilityEnd" mapstructure:"availabilityEnd" validate:"gtefield=AvailabilityStart"`
	TenorMonths       int     `yaml:"tenorMonths" mapstructure:"tenorMonths" validate:"gte=0"`
	UpfrontFee        float64 `yaml:"upfrontFee,omitempty" mapstructure:"upfrontFee" validate:"gte=0"`
	OngoingFee        float64 `yaml:"ongoingFee,omitempty" mapstructure:"ongoingFee" validate:"gte=0"`
	CommitmentFee     float64 `yaml:"commitmentFee,omitempty" mapstructure:"commitmentFee" validate:"gte=0"`
	DSRAMonths        int     `yaml:"dsraMonths,omitempty" mapstructure:"dsraMonths" validate:"gte=0"`
	DrawPriority      int     `yaml:"drawPriority,omitempty" mapstructure:"drawPriority"`
}

// Tranche is one equity position.
type Tranche struct {
	Name            string  `yaml:"name" mapstructure:"name" validate:"required"`
	Role            string  `yaml:"role" mapstructure:"role" validate:"required,oneof=LP GP lp gp"`
	Commitment      float64 `yaml:"commitment" mapstructure:"commitment" validate:"gte=0"`
	PreferredReturn float64 `yaml:"preferredReturn,omitempty" mapstructure:"preferredReturn" validate:"gte=0"`
	Compounding     string  `yaml:"compounding,omitempty" mapstructure:"compounding" validate:"omitempty,oneof=monthly annual simple"`
}

// WaterfallConfig is the distribution waterfall.
type WaterfallConfig struct {
	Mode         string   `yaml:"mode,omitempty" mapstructure:"mode" validate:"omitempty,oneof=european american"`
	AccrualLevel string   `yaml:"accrualLevel,omitempty" mapstructure:"accrualLevel" validate:"omitempty,oneof=all lp_only"`
	Hurdles      []Hurdle `yaml:"hurdles,omitempty" mapstructure:"hurdles" validate:"dive"`
}

// Hurdle is one promote tier. CatchupShare enables a GP catch-up to that share
// of profits; nil disables it.
type Hurdle struct {
	Trigger      string   `yaml:"trigger" mapstructure:"trigger" validate:"required,oneof=irr multiple"`
	Threshold    float64  `yaml:"threshold" mapstructure:"threshold" validate:"gte=0"`
	LPShare      float64  `yaml:"lpShare" mapstructure:"lpShare" validate:"gte=0,lte=1"`
	GPShare      float64  `yaml:"gpShare" mapstructure:"gpShare" validate:"gte=0,lte=1"`
	CatchupShare *float64 `yaml:"catchupShare,omitempty" mapstructure:"catchupShare" validate:"omitempty,gt=0,lt=1"`
}
