package service

// NopMetrics discards every counter
type NopMetrics struct{}

func (NopMetrics) Evaluation(string, bool) {}
func (NopMetrics) PositionOpened(string) {}
func (NopMetrics) PositionClosed(string) {}
func (NopMetrics) OrderFailed(string, string) {}
func (NopMetrics) PartialLeg(string) {}
