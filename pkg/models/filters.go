package models

// ScannerFilters narrows the momentum scanner. EnableRoss replaces every
// other flag with the strict five-step small-cap checklist.
type ScannerFilters struct {
	EnableRoss         bool `json:"enableRoss"`
	ProjVolume         bool `json:"projVolume"`
	MorningActive      bool `json:"morningActive"`
	Breakout           bool `json:"breakout"`
	HighVolatility     bool `json:"highVolatility"`
	ExcludeDerivatives bool `json:"excludeDerivatives"`
	LowFloatRetail     bool `json:"lowFloatRetail"`
}

// Market sessions accepted by EarningsFilters.Session.
const (
	SessionAll     = "ALL"
	SessionPre     = "PRE"
	SessionRegular = "REGULAR"
	SessionPost    = "POST"
)

// EarningsFilters narrows the earnings gap scanner.
type EarningsFilters struct {
	EPSBeat    bool   `json:"epsBeat"`
	RevBeat    bool   `json:"revBeat"`
	Move5Pct   bool   `json:"move5Percent"`
	Vol5M      bool   `json:"vol5M"`
	RVol2x     bool   `json:"rvol2x"`
	PriceRange bool   `json:"priceRange"`
	Session    string `json:"session"`
	Sector     string `json:"sector"`
}

// MoversFilters narrows the movers scanner. Mode is ALL, GAINERS or LOSERS;
// Cap is ALL, SMALL, MID or LARGE.
type MoversFilters struct {
	Mode string `json:"mode"`
	Cap  string `json:"cap"`
}
