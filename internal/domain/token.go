package domain

import (
	"log/slog"
	"strings"
)

// MaxActiveTokens caps how many registry entries can be tracked at once.
const MaxActiveTokens = 6

// DefaultSelection is used when nothing is persisted or configured.
const DefaultSelection = "bitcoin,ethereum,paxg,chainbase,sui"

// TokenInfo is static metadata for one trackable token.
// An empty Pair marks a stablecoin: pegged at 1.00 and never fetched.
type TokenInfo struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Pair   string `json:"pair"`
	Logo   string `json:"logo"`
}

// IsStablecoin reports whether the token has no exchange pair.
func (t TokenInfo) IsStablecoin() bool {
	return t.Pair == ""
}

var registry = [...]TokenInfo{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Pair: "BTC_USDT", Logo: "btc"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Pair: "ETH_USDT", Logo: "eth"},
	{ID: "paxg", Symbol: "PAXG", Name: "PAX Gold", Pair: "PAXG_USDT", Logo: "paxg"},
	{ID: "chainbase", Symbol: "C", Name: "Chainbase", Pair: "C_USDT", Logo: "chainbase"},
	{ID: "sui", Symbol: "SUI", Name: "Sui", Pair: "SUI_USDT", Logo: "sui"},
	{ID: "doge", Symbol: "DOGE", Name: "Dogecoin", Pair: "DOGE_USDT", Logo: "doge"},
	{ID: "solana", Symbol: "SOL", Name: "Solana", Pair: "SOL_USDT", Logo: "sol"},
	{ID: "tron", Symbol: "TRX", Name: "Tron", Pair: "TRX_USDT", Logo: "trx"},
	{ID: "usdc", Symbol: "USDC", Name: "USD Coin", Pair: "USDC_USDT", Logo: "usdc"},
	{ID: "usdt", Symbol: "USDT", Name: "Tether", Pair: "", Logo: "usdt"},
}

// Registry returns a copy of every known token in registration order.
func Registry() []TokenInfo {
	out := make([]TokenInfo, len(registry))
	copy(out, registry[:])
	return out
}

// LookupToken finds a registry entry by ID.
func LookupToken(id string) (TokenInfo, bool) {
	for _, t := range registry {
		if t.ID == id {
			return t, true
		}
	}
	return TokenInfo{}, false
}

// ParseSelection resolves a comma separated list of token IDs.
// Unknown IDs and duplicates are skipped and the result is capped at MaxActiveTokens.
func ParseSelection(csv string) []TokenInfo {
	var out []TokenInfo
	seen := make(map[string]bool)

	for _, raw := range strings.Split(csv, ",") {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" || seen[id] {
			continue
		}
		t, ok := LookupToken(id)
		if !ok {
			slog.Warn("Unknown token id in selection", slog.String("id", id))
			continue
		}
		if len(out) == MaxActiveTokens {
			slog.Warn("Token selection truncated", slog.Int("max", MaxActiveTokens))
			break
		}
		seen[id] = true
		out = append(out, t)
	}
	return out
}

// SelectionString is the inverse of ParseSelection.
func SelectionString(tokens []TokenInfo) string {
	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	return strings.Join(ids, ",")
}
