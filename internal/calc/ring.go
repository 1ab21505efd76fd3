package calc

import "github.com/shopspring/decimal"

// closeRing is a fixed-capacity circular buffer of closes, grounded on the
// teacher's indicator.SMA ring-buffer technique but adapted to decimal
// arithmetic and able to serve both the MA20 and MA200 windows from one
// buffer (spec §3: close-history ring, cap 200).
type closeRing struct {
	buf   []decimal.Decimal
	idx   int
	count int
	cap   int
}

func newCloseRing(capacity int) *closeRing {
	return &closeRing{buf: make([]decimal.Decimal, capacity), cap: capacity}
}

// Push appends a new close, evicting the oldest once the ring is full.
func (r *closeRing) Push(c decimal.Decimal) {
	r.buf[r.idx] = c
	r.idx = (r.idx + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
}

// MA returns the simple moving average of the most recent n closes and
// whether enough history exists to compute it.
func (r *closeRing) MA(n int) (decimal.Decimal, bool) {
	if r.count < n {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	// Walk backwards from the most recently written slot.
	pos := (r.idx - 1 + r.cap) % r.cap
	for i := 0; i < n; i++ {
		sum = sum.Add(r.buf[pos])
		pos = (pos - 1 + r.cap) % r.cap
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}
