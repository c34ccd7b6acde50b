package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// Scan kinds accepted by Scan.
const (
	ScanKindMarket   = "market"
	ScanKindEarnings = "earnings"
	ScanKindMovers   = "movers"
	ScanKindOversold = "oversold"
	ScanKindInsider  = "insider"
	ScanKindHeatmaps = "heatmaps"
)

// ScanKinds lists the scan kinds.
var ScanKinds = []string{
	ScanKindMarket, ScanKindEarnings, ScanKindMovers,
	ScanKindOversold, ScanKindInsider, ScanKindHeatmaps,
}

// ErrUnknownScan is returned for a scan kind not in ScanKinds.
var ErrUnknownScan = errors.New("unknown scan kind")

// ScanFilters carries the filter set of whichever scanner runs. Filters that
// do not apply to the kind are ignored.
type ScanFilters struct {
	Scanner  *models.ScannerFilters
	Earnings *models.EarningsFilters
	Movers   *models.MoversFilters
}

// DecodeScanFilters reads the JSON filter object of kind. Empty input
// yields no filters.
func DecodeScanFilters(kind string, raw json.RawMessage) (ScanFilters, error) {
	var f ScanFilters
	if len(raw) == 0 || string(raw) == "null" {
		return f, nil
	}

	var err error
	switch strings.ToLower(kind) {
	case ScanKindMarket:
		f.Scanner = new(models.ScannerFilters)
		err = json.Unmarshal(raw, f.Scanner)
	case ScanKindEarnings:
		f.Earnings = new(models.EarningsFilters)
		err = json.Unmarshal(raw, f.Earnings)
	case ScanKindMovers:
		f.Movers = new(models.MoversFilters)
		err = json.Unmarshal(raw, f.Movers)
	}
	if err != nil {
		return ScanFilters{}, fmt.Errorf("decode %s filters: %w", kind, err)
	}
	return f, nil
}

// Scan runs the scanner named by kind.
func (s *Service) Scan(ctx context.Context, kind string, force bool, f ScanFilters) (any, error) {
	switch strings.ToLower(kind) {
	case ScanKindMarket:
		return s.ScanMarket(ctx, force, f.Scanner)
	case ScanKindEarnings:
		return s.ScanEarningsGappers(ctx, force, f.Earnings)
	case ScanKindMovers:
		return s.ScanMarketMovers(ctx, force, f.Movers)
	case ScanKindOversold:
		return s.ScanOversoldRebounds(ctx, force)
	case ScanKindInsider:
		return s.ScanInsiderTrading(ctx, force)
	case ScanKindHeatmaps:
		return s.ScanMarketHeatmaps(ctx, force)
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownScan, kind, strings.Join(ScanKinds, ", "))
}
