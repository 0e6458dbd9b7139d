package utils

type Metric struct {
	CalendarRefresh chan float64
	RefreshFailure  chan struct{}
	ParseFailure    chan struct{}
}

func NewMetric() *Metric {
	return &Metric{
		CalendarRefresh: make(chan float64),
		RefreshFailure:  make(chan struct{}),
		ParseFailure:    make(chan struct{}),
	}
}
