package finance

// Summary is the aggregated profit view over a period, derived entirely from
// the ledger.
type Summary struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Revenue       float64 `json:"revenue"`
	COGS          float64 `json:"cogs"`
	GrossMargin   float64 `json:"gross_margin"`
	MarginPercent float64 `json:"margin_percent"`

	RevenueDisplay     string `json:"revenue_display"`
	COGSDisplay        string `json:"cogs_display"`
	GrossMarginDisplay string `json:"gross_margin_display"`
}

func buildSummary(from, to string, revenue, cogs float64) Summary {
	margin := revenue - cogs
	var pct float64
	if revenue > 0 {
		pct = margin / revenue * 100
	}
	return Summary{
		From:          from,
		To:            to,
		Revenue:       revenue,
		COGS:          cogs,
		GrossMargin:   margin,
		MarginPercent: pct,
	}
}
