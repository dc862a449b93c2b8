package domain

// Quote is the latest price tuple for one token.
type Quote struct {
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"` // 24h change in percent
	High24h   float64 `json:"high_24h"`
	Low24h    float64 `json:"low_24h"`
}

// StableQuote is the fixed quote shown for pegged tokens.
var StableQuote = Quote{Price: 1.0, ChangePct: 0, High24h: 1.0, Low24h: 1.0}

// ChangeDirection returns "positive", "negative", or "neutral"
func (q Quote) ChangeDirection() string {
	if q.ChangePct > 0 {
		return "positive"
	}
	if q.ChangePct < 0 {
		return "negative"
	}
	return "neutral"
}
