package engine

// HistoryPoints is the chart length: 48 half-hour samples, 24h.
const HistoryPoints = 48

// History is a fixed-capacity ring of chart samples, oldest first.
type History struct {
	buf   [HistoryPoints]float64
	count int
}

// Push appends a sample, evicting the oldest when full.
func (h *History) Push(v float64) {
	if h.count < HistoryPoints {
		h.buf[h.count] = v
		h.count++
		return
	}
	copy(h.buf[:], h.buf[1:])
	h.buf[HistoryPoints-1] = v
}

// Replace overwrites the ring with prices, keeping the newest HistoryPoints.
func (h *History) Replace(prices []float64) {
	if len(prices) > HistoryPoints {
		prices = prices[len(prices)-HistoryPoints:]
	}
	h.buf = [HistoryPoints]float64{}
	h.count = copy(h.buf[:], prices)
}

// Len returns the number of valid samples.
func (h *History) Len() int { return h.count }

// Values returns a copy of the valid samples, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, h.count)
	copy(out, h.buf[:h.count])
	return out
}
