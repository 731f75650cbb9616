package port

// Metrics engine counters; implementations must be safe for concurrent use
type Metrics interface {
	Evaluation(symbol string, triggered bool)
	PositionOpened(symbol string)
	PositionClosed(symbol string)
	OrderFailed(symbol string, side string)
	PartialLeg(transition string)
}
