package domain

// AppConfig is one persisted user setting (Key-Value).
type AppConfig struct {
	Key            string `json:"key"`
	Value          string `json:"value"`
	UpdatedAtUnixM int64  `json:"updated_at_unix,string"`
}
