package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"token_ticker/internal/domain"
)

// ErrMalformed marks a body that could not be turned into prices.
var ErrMalformed = errors.New("malformed response")

func parseNumber(field, s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformed, field, s)
	}
	return d.InexactFloat64(), nil
}

func quoteFromWire(w tickerWire) (domain.Quote, error) {
	if w.Last == "" || w.ChangePercentage == "" {
		return domain.Quote{}, fmt.Errorf("%w: missing last or change_percentage", ErrMalformed)
	}
	price, err := parseNumber("last", w.Last)
	if err != nil {
		return domain.Quote{}, err
	}
	change, err := parseNumber("change_percentage", w.ChangePercentage)
	if err != nil {
		return domain.Quote{}, err
	}

	q := domain.Quote{Price: price, ChangePct: change, High24h: price, Low24h: price}
	if w.High24h != "" {
		if q.High24h, err = parseNumber("high_24h", w.High24h); err != nil {
			return domain.Quote{}, err
		}
	}
	if w.Low24h != "" {
		if q.Low24h, err = parseNumber("low_24h", w.Low24h); err != nil {
			return domain.Quote{}, err
		}
	}
	return q, nil
}

// ParseTicker decodes a /spot/tickers body: an object or an array whose first
// element is the ticker.
func ParseTicker(body []byte) (domain.Quote, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return domain.Quote{}, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var w tickerWire
	if body[0] == '[' {
		var arr []tickerWire
		if err := json.Unmarshal(body, &arr); err != nil {
			return domain.Quote{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(arr) == 0 {
			return domain.Quote{}, fmt.Errorf("%w: empty ticker array", ErrMalformed)
		}
		w = arr[0]
	} else if err := json.Unmarshal(body, &w); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return quoteFromWire(w)
}

// candle columns: [ts, quote_volume, close, high, low, open, base_volume, closed]
const candleCloseIdx = 2

// ParseCandles decodes a /spot/candlesticks body into close prices, oldest
// first, keeping at most limit of the newest. Any bad row fails the parse.
func ParseCandles(body []byte, limit int) ([]float64, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	closes := make([]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) <= candleCloseIdx {
			return nil, fmt.Errorf("%w: candle %d has %d columns", ErrMalformed, i, len(row))
		}
		var s string
		if err := json.Unmarshal(row[candleCloseIdx], &s); err != nil {
			return nil, fmt.Errorf("%w: candle %d close: %v", ErrMalformed, i, err)
		}
		v, err := parseNumber("close", s)
		if err != nil {
			return nil, err
		}
		closes = append(closes, v)
	}

	if limit > 0 && len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	return closes, nil
}

// StreamUpdate is a parsed spot.tickers push.
type StreamUpdate struct {
	Pair         string
	Quote        domain.Quote
	ServerTimeMs int64
}

// ParseStreamMessage decodes an inbound frame. ok is false for frames that are
// not ticker updates (acks, pongs, other channels).
func ParseStreamMessage(msg []byte) (u StreamUpdate, ok bool, err error) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return StreamUpdate{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Error != nil {
		return StreamUpdate{}, false, fmt.Errorf("gate ws error %d: %s", m.Error.Code, m.Error.Message)
	}
	if m.Channel != ChannelTickers || m.Event != EventUpdate || len(m.Result) == 0 {
		return StreamUpdate{}, false, nil
	}

	var w tickerWire
	if err := json.Unmarshal(m.Result, &w); err != nil {
		return StreamUpdate{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	q, err := quoteFromWire(w)
	if err != nil {
		return StreamUpdate{}, false, err
	}

	serverMs := m.TimeMs
	if serverMs == 0 {
		serverMs = m.Time * 1000
	}
	return StreamUpdate{Pair: w.CurrencyPair, Quote: q, ServerTimeMs: serverMs}, true, nil
}
