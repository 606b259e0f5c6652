package network

import "encoding/json"

// Message types - Client → Server
const (
	MsgTypeJoin          = "join"
	MsgTypeLeave         = "leave"
	MsgTypeChat          = "chat"
	MsgTypePing          = "ping"
	MsgTypeClaimTile     = "claim_tile"
	MsgTypeReleaseTile   = "release_tile"
	MsgTypePlaceBuilding = "place_building"
	MsgTypeCancelBuild   = "cancel_building"
	MsgTypeEndTurn       = "end_turn"
	MsgTypeRequestState  = "request_state"
)

// Message types - Server → Client
const (
	MsgTypeWelcome       = "welcome"
	MsgTypePlayerJoined  = "player_joined"
	MsgTypePlayerLeft    = "player_left"
	MsgTypeChatBroadcast = "chat"
	MsgTypeSessionStatus = "session_status"
	MsgTypeTileOwner     = "tile_owner"
	MsgTypeBorderUpdate  = "border_update"
	MsgTypeConstruction  = "construction"
	MsgTypeTurn          = "turn"
	MsgTypeState         = "state"
	MsgTypeError         = "error"
	MsgTypePong          = "pong"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Coord is an axial hex coordinate on the wire.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// --- Client Message Payloads ---

// JoinPayload is sent by client to join the session
type JoinPayload struct{}

// ChatPayload is sent by client to send a chat message
type ChatPayload struct {
	Message string `json:"message"`
}

// TilePayload targets one tile (claim_tile, release_tile).
type TilePayload struct {
	Coord Coord `json:"coord"`
}

// PlaceBuildingPayload asks to build kind on a tile.
type PlaceBuildingPayload struct {
	Coord Coord  `json:"coord"`
	Kind  string `json:"kind"`
}

// CancelBuildingPayload cancels a queued construction job.
type CancelBuildingPayload struct {
	JobID string `json:"job_id"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	PlayerID      string        `json:"player_id"`
	Username      string        `json:"username"`
	OwnerID       int           `json:"owner_id"`
	SessionID     string        `json:"session_id"`
	Spawn         Coord         `json:"spawn"`
	SessionStatus SessionStatus `json:"session_status"`
}

// PlayerJoinedPayload notifies clients when a player joins
type PlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	OwnerID  int    `json:"owner_id"`
}

// PlayerLeftPayload notifies clients when a player leaves
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// ChatBroadcastPayload broadcasts a chat message to all clients
type ChatBroadcastPayload struct {
	PlayerID  string `json:"player_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp
}

// SessionStatus represents the current session state
type SessionStatus struct {
	State       string `json:"state"`
	Mode        string `json:"mode"`
	Turn        int    `json:"turn"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	ServerTick  int64  `json:"server_tick"`
	Uptime      int64  `json:"uptime"`
}

// TileOwnerPayload reports an ownership change.
type TileOwnerPayload struct {
	Coord    Coord `json:"coord"`
	Previous int   `json:"previous"`
	Current  int   `json:"current"`
}

// BorderPayload reports a border transition. Edges is the six-bit mask,
// bit i set when edge i faces another owner, neutral ground or the map edge.
type BorderPayload struct {
	Event   string `json:"event"` // created | updated | removed
	Coord   Coord  `json:"coord"`
	OwnerID int    `json:"owner_id"`
	Edges   uint8  `json:"edges"`
}

// ConstructionPayload reports a construction job event.
type ConstructionPayload struct {
	Event      string  `json:"event"`
	JobID      string  `json:"job_id"`
	OwnerID    int     `json:"owner_id"`
	BuildingID string  `json:"building_id"`
	Kind       string  `json:"kind"`
	Coord      Coord   `json:"coord"`
	Progress   float64 `json:"progress"`
}

// TurnPayload announces the start of a turn.
type TurnPayload struct {
	Turn int `json:"turn"`
}

// TileState is one tile in a state dump.
type TileState struct {
	Coord    Coord  `json:"coord"`
	Terrain  string `json:"terrain"`
	OwnerID  int    `json:"owner_id"`
	Edges    uint8  `json:"edges,omitempty"`
	Building string `json:"building,omitempty"`
}

// StatePayload is the full map state sent on request.
type StatePayload struct {
	Turn  int         `json:"turn"`
	Mode  string      `json:"mode"`
	Tiles []TileState `json:"tiles"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
