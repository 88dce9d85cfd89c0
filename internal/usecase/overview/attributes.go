package overview

// Attribute is one row of the benchmark table.
type Attribute struct {
	Key   string
	Label string
}

// Attributes is the fixed benchmark row set, in display order.
var Attributes = []Attribute{
	{Key: "company_names", Label: "names"},
	{Key: "legal_structure", Label: "legal structure"},
	{Key: "stock_currency", Label: "stock currency"},
	{Key: "volatility_1y", Label: "Volatility 1 year (in EUR)"},
	{Key: "net_income", Label: "Net Income"},
	{Key: "roa", Label: "Return on Assets (ROA)"},
	{Key: "roe", Label: "Return on Equity (ROE)"},
	{Key: "revenue_growth", Label: "Revenue Growth"},
	{Key: "net_income_growth", Label: "Net Income Growth"},
	{Key: "eps_growth", Label: "EPS Growth"},
	{Key: "current_ratio", Label: "Current Ratio"},
	{Key: "quick_ratio", Label: "Quick Ratio"},
	{Key: "debt_to_equity", Label: "Debt to Equity Ratio"},
}
