package model

// Action kinds stamped by the ingest gateway. Dispatch in the projector is an
// exact, case-sensitive match against these values.
const (
	ActionHeartbeat = "HEARTBEAT"
	ActionDrink     = "DRINK"
)

// GameAction is the v1 event envelope carried from ingestion through Kafka to
// projection. Action and Timestamp are server-assigned at admission; client
// values for those fields are never trusted. Timestamp is epoch milliseconds.
type GameAction struct {
	UserID    string `json:"userId"`
	Region    string `json:"region"`
	MatchID   string `json:"matchId"`
	Action    string `json:"action"`
	Amount    int    `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// MemberScore is an ordered (member, score) pair as returned by the store's
// descending range read. Rank is not stored; the query layer assigns it.
type MemberScore struct {
	UserID string
	Score  float64
}

// LeaderboardEntry is one ranked row of a match leaderboard. Rank is assigned
// at read time from the store's descending score order, 1-based.
type LeaderboardEntry struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// LeaderboardResponse is the query API payload for a match leaderboard.
type LeaderboardResponse struct {
	MatchID   string             `json:"matchId"`
	Entries   []LeaderboardEntry `json:"entries"`
	Timestamp int64              `json:"timestamp"`
}

// OnlineCountResponse is the query API payload for the presence count.
type OnlineCountResponse struct {
	OnlineCount int64 `json:"onlineCount"`
	Timestamp   int64 `json:"timestamp"`
}

// UniquesResponse is the query API payload for a minute bucket's approximate
// distinct-player count.
type UniquesResponse struct {
	Minute    string `json:"minute"`
	Count     int64  `json:"count"`
	Timestamp int64  `json:"timestamp"`
}

// AcceptedResponse acknowledges an admitted event.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a rejection reason for the ingest API.
type ErrorResponse struct {
	Error string `json:"error"`
}
