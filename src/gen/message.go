package gen

// Message is what a worker reports back to the hart that started it.
type Message struct {
	CPU   uint16
	Hart  uint16
	Value int64

	Cycles       uint64
	Instructions uint64
	ICacheMisses uint64
	DCacheMisses uint64
}
