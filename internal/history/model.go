package history

import (
	"encoding/json"
	"time"
)

// DefaultLimit is how many entries each owner keeps. Inserting past the
// limit evicts the oldest entries.
const DefaultLimit = 20

// Entry is one stored analysis in a user's history.
type Entry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"-"`
	Signal       string          `json:"signal"`
	Trend        string          `json:"trend"`
	TradeGrade   string          `json:"tradeGrade,omitempty"`
	Pattern      string          `json:"pattern,omitempty"`
	RiskReward   string          `json:"riskReward,omitempty"`
	Confidence   int             `json:"confidence"`
	ThumbnailKey string          `json:"-"`
	Result       json.RawMessage `json:"result"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// HasThumbnail reports whether the entry has a stored preview image.
func (e Entry) HasThumbnail() bool {
	return e.ThumbnailKey != ""
}
