package twitch

// State is the outcome of a single liveness poll.
type State int

const (
	// StateOffline means the upstream answered and the channel is not
	// broadcasting.
	StateOffline State = iota
	// StateLive means the channel is currently broadcasting.
	StateLive
	// StateUnknown means the query failed (network, rate limit, malformed
	// response, breaker open). Callers treat it like offline but it is
	// logged distinctly.
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Status is a liveness record. Ephemeral: valid only for the poll that
// produced it. Handle is set only when live, and is not stable across
// polls.
type Status struct {
	State  State
	Handle string
}

// Live reports whether the record indicates an ongoing broadcast.
func (s Status) Live() bool { return s.State == StateLive }

// Channel is display metadata for one roster entry, fetched fresh on each
// request and never cached.
type Channel struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Followers   int    `json:"followerCount"`
	IsLive      bool   `json:"isLive"`
}

// Helix wire types.

type userData struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type usersResponse struct {
	Data []userData `json:"data"`
}

type streamData struct {
	UserLogin string `json:"user_login"`
	Type      string `json:"type"`
}

type streamsResponse struct {
	Data []streamData `json:"data"`
}

type followersResponse struct {
	Total int `json:"total"`
}
