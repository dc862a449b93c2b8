package gate

import "encoding/json"

// Channels and events of the v4 spot WebSocket API.
const (
	ChannelTickers = "spot.tickers"
	ChannelPing    = "spot.ping"
	ChannelPong    = "spot.pong"

	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventUpdate      = "update"
)

// tickerWire is one element of GET /spot/tickers.
type tickerWire struct {
	CurrencyPair     string `json:"currency_pair"`
	Last             string `json:"last"`
	ChangePercentage string `json:"change_percentage"`
	High24h          string `json:"high_24h"`
	Low24h           string `json:"low_24h"`
}

// wsRequest is an outbound frame (subscribe, unsubscribe, ping).
type wsRequest struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event,omitempty"`
	Payload []string `json:"payload,omitempty"`
}

// wsMessage is an inbound frame. Result stays raw until the channel is known.
type wsMessage struct {
	Time    int64           `json:"time"`
	TimeMs  int64           `json:"time_ms"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Error   *wsError        `json:"error"`
	Result  json.RawMessage `json:"result"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
