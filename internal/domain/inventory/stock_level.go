package inventory

// StockLevel is a coarse classification of a part's stock against its minimum.
type StockLevel string

const (
	StockLow        StockLevel = "Low"
	StockMedium     StockLevel = "Medium"
	StockSufficient StockLevel = "Sufficient"
)

func ClassifyStock(stock, minimum int) StockLevel {
	switch {
	case stock <= minimum:
		return StockLow
	case stock <= minimum*2:
		return StockMedium
	default:
		return StockSufficient
	}
}
