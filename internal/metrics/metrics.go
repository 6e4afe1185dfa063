package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	OrdersPlaced       Counter
	OrdersFailed       Counter
	CancelsRequested   Counter
	InfoRequests       Counter
	BridgeTimeouts     Counter
	FillsRecorded      Counter
	RecorderWriteError Counter
	RecorderPollError  Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		OrdersPlaced:       n,
		OrdersFailed:       n,
		CancelsRequested:   n,
		InfoRequests:       n,
		BridgeTimeouts:     n,
		FillsRecorded:      n,
		RecorderWriteError: n,
		RecorderPollError:  n,
	}
}
