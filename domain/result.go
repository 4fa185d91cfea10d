package domain

// Sample is one completed round trip as observed by the source.
type Sample struct {
	ClientID       string `json:"client_id"`
	Seq            int    `json:"seq"`
	SendMillis     int64  `json:"send_millis"`
	ReceivedMillis int64  `json:"received_millis"`
	ResponseMillis int64  `json:"response_millis"`
	Trail          string `json:"trail"` // full encoded wire line
}

// SummaryRow is one averaged latency component, labeled T1..Tn for the
// per-hop durations and Tn+1 for the derived return network leg.
type SummaryRow struct {
	Label     string  `json:"label"`
	AvgMillis float64 `json:"avg_millis"`
}

// Summary aggregates a finished run.
type Summary struct {
	Rows              []SummaryRow `json:"rows"`
	AvgResponseMillis float64      `json:"avg_response_millis"`
	MaxResponseMillis int64        `json:"max_response_millis"`
	Observed          int          `json:"observed"`
	Dropped           uint64       `json:"dropped"`
}
