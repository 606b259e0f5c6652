package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gravitas-games/hexrts/internal/config"
	"github.com/gravitas-games/hexrts/internal/construction"
	"github.com/gravitas-games/hexrts/internal/game"
	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/network"
	"github.com/gravitas-games/hexrts/internal/persistence"
	"github.com/gravitas-games/hexrts/internal/territory"
	"github.com/gravitas-games/hexrts/internal/tick"
	"github.com/gravitas-games/hexrts/pkg/models"
)

var (
	// ErrSessionFull is returned when every owner slot is taken.
	ErrSessionFull = errors.New("session is full")
	// ErrSessionStopped is returned for commands sent after the session ended.
	ErrSessionStopped = errors.New("session stopped")
	// ErrNotJoined is returned for game commands from players without a slot.
	ErrNotJoined = errors.New("player has not joined")
)

// Session represents a game session. The world is only touched by the
// goroutine running Run; other goroutines go through Exec.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Player management
	players     map[string]*models.Player // playerID -> Player
	connections map[string]*Connection    // playerID -> Connection
	slots       map[string]int            // playerID -> owner id, kept across reconnects
	mu          sync.RWMutex

	world    *game.World
	spawns   []hex.Axial
	store    *persistence.DB
	commands chan command
	done     chan struct{}

	// Simulation-goroutine state
	turnVotes map[int]bool

	status     SessionStatus
	serverTick atomic.Int64
	turnNo     atomic.Int64

	config *config.Config
	logger *slog.Logger
}

type command struct {
	fn    func(*game.World) error
	reply chan error
}

// SessionStatus represents the current state of the session
type SessionStatus struct {
	State       string `json:"state"` // "waiting", "running", "stopped"
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	ServerTick  int64  `json:"server_tick"`
	Uptime      int64  `json:"uptime"` // seconds
}

// NewSession creates a new game session. With a store, the map is loaded
// from it when it holds one; otherwise a fresh map is generated.
func NewSession(ctx context.Context, id string, cfg *config.Config, store *persistence.DB, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)

	var opts []game.Option
	opts = append(opts, game.WithLogger(logger))
	if store != nil {
		g, err := store.LoadGrid(ctx, gamemap.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("load map: %w", err)
		}
		if g.Len() > 0 {
			jobs, err := store.LoadJobs(ctx)
			if err != nil {
				return nil, fmt.Errorf("load jobs: %w", err)
			}
			opts = append(opts, game.WithGrid(g), game.WithJobs(jobs))
		}
	}

	world, err := game.NewWorld(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		players:     make(map[string]*models.Player),
		connections: make(map[string]*Connection),
		slots:       make(map[string]int),
		world:       world,
		spawns:      world.SpawnPoints(cfg.Session.MaxPlayers, cfg.Session.MapRadius),
		store:       store,
		commands:    make(chan command, 64),
		done:        make(chan struct{}),
		turnVotes:   make(map[int]bool),
		config:      cfg,
		logger:      logger,
		status: SessionStatus{
			State:      "waiting",
			MaxPlayers: cfg.Session.MaxPlayers,
		},
	}

	s.turnNo.Store(int64(world.Turns.Turn()))
	world.Turns.AddListener(s)
	world.Grid.OnOwnerChanged(s.onOwnerChanged)
	if world.Borders != nil {
		world.Borders.OnBorderChanged(s.onBorderChanged)
	}

	logger.Info("session created", "map_radius", cfg.Session.MapRadius, "tiles", world.Grid.Len(),
		"mode", world.Mode.Mode(), "spawns", len(s.spawns))
	return s, nil
}

// Run drives the simulation until ctx ends, then saves the world. It must be
// called once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.world.Close()

	frames := time.NewTicker(s.config.TickInterval())
	defer frames.Stop()

	var autosave <-chan time.Time
	if s.store != nil && s.config.Database.Autosave > 0 {
		t := time.NewTicker(s.config.Database.Autosave)
		defer t.Stop()
		autosave = t.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.setState("stopped")
			s.drain()
			if s.store != nil {
				saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.save(saveCtx); err != nil {
					s.logger.Error("final save failed", "error", err)
					return err
				}
			}
			return nil

		case now := <-frames.C:
			s.world.Frame(now.Sub(last))
			last = now
			s.serverTick.Add(1)

		case cmd := <-s.commands:
			cmd.reply <- s.run(cmd.fn)

		case <-autosave:
			if err := s.save(ctx); err != nil {
				s.logger.Error("autosave failed", "error", err)
			}
		}
	}
}

func (s *Session) run(fn func(*game.World) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session command panicked", "panic", r)
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return fn(s.world)
}

// drain fails every command still queued once the loop stops.
func (s *Session) drain() {
	for {
		select {
		case cmd := <-s.commands:
			cmd.reply <- ErrSessionStopped
		default:
			return
		}
	}
}

// Exec runs fn on the simulation goroutine and returns its error.
func (s *Session) Exec(ctx context.Context, fn func(*game.World) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		// Run may have answered just before stopping.
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrSessionStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) save(ctx context.Context) error {
	if err := s.store.SaveGrid(ctx, s.world.Grid); err != nil {
		return fmt.Errorf("save grid: %w", err)
	}
	if err := s.store.SaveJobs(ctx, s.world.SavedJobs()); err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	turn := s.world.Turns.Turn()
	if err := s.store.SaveSnapshot(ctx, turn, s.world.Grid); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return s.store.SaveMeta(ctx, "turn", strconv.Itoa(turn))
}

// Join gives the player an owner slot and starting territory, and registers
// the connection for broadcasts. A returning player gets their old slot.
func (s *Session) Join(ctx context.Context, player *models.Player, conn *Connection) (network.WelcomePayload, error) {
	var spawn hex.Axial
	owner, err := s.assignSlot(player.ID)
	if err != nil {
		return network.WelcomePayload{}, err
	}
	err = s.Exec(ctx, func(w *game.World) error {
		if owner < len(s.spawns) {
			spawn = s.spawns[owner]
			if len(w.Grid.OwnedBy(owner)) == 0 {
				if _, err := w.Claim(owner, spawn, s.config.Session.ClaimRadius); err != nil {
					return err
				}
			}
		}
		w.Events.Subscribe(owner, s.onConstruction)
		w.Queue(owner)
		return nil
	})
	if err != nil {
		return network.WelcomePayload{}, err
	}

	player.OwnerID = owner
	player.SessionID = s.ID
	s.mu.Lock()
	s.players[player.ID] = player
	s.connections[player.ID] = conn
	s.status.PlayerCount = len(s.players)
	s.status.State = "running"
	s.mu.Unlock()

	s.logger.Info("player joined", "player", player.ID, "username", player.Username, "owner", owner, "spawn", spawn)
	return network.WelcomePayload{
		PlayerID:      player.ID,
		Username:      player.Username,
		OwnerID:       owner,
		SessionID:     s.ID,
		Spawn:         network.Coord{Q: spawn.Q, R: spawn.R},
		SessionStatus: s.NetworkStatus(),
	}, nil
}

func (s *Session) assignSlot(playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.slots[playerID]; ok {
		return owner, nil
	}
	if len(s.slots) >= s.config.Session.MaxPlayers {
		return models.NoOwner, ErrSessionFull
	}
	used := make(map[int]bool, len(s.slots))
	for _, o := range s.slots {
		used[o] = true
	}
	owner := 0
	for used[owner] {
		owner++
	}
	s.slots[playerID] = owner
	return owner, nil
}

// RemovePlayer removes a player from the session. Their territory and slot
// stay so they can reconnect. It must not be called from the simulation
// goroutine.
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	player, exists := s.players[playerID]
	if exists {
		delete(s.players, playerID)
		delete(s.connections, playerID)
		s.status.PlayerCount = len(s.players)
	}
	s.mu.Unlock()

	if !exists {
		return
	}
	s.logger.Info("player left", "player", playerID, "username", player.Username)

	// The leaver may have been the last player the others were waiting on.
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	err := s.Exec(ctx, func(w *game.World) error {
		delete(s.turnVotes, player.OwnerID)
		_, _, err := s.settleTurn(w)
		return err
	})
	if err != nil && !errors.Is(err, ErrSessionStopped) {
		s.logger.Warn("turn vote recheck failed", "player", playerID, "error", err)
	}
}

// GetPlayer retrieves a player by ID
func (s *Session) GetPlayer(playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

// GetPlayers returns all players in the session
func (s *Session) GetPlayers() []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*models.Player, 0, len(s.players))
	for _, player := range s.players {
		players = append(players, player)
	}
	return players
}

// BroadcastMessage sends a message to all connected players
func (s *Session) BroadcastMessage(msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		conn.SendMessage(msg)
	}
}

// BroadcastExcept sends a message to all players except the specified connection
func (s *Session) BroadcastExcept(exclude *Connection, msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		if conn != exclude {
			conn.SendMessage(msg)
		}
	}
}

// SendToOwner sends a message to the player holding owner.
func (s *Session) SendToOwner(owner int, msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, conn := range s.connections {
		if p := s.players[id]; p != nil && p.OwnerID == owner {
			conn.SendMessage(msg)
		}
	}
}

// GetStatus returns the current session status
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	status.ServerTick = s.serverTick.Load()
	status.Uptime = int64(time.Since(s.CreatedAt).Seconds())
	return status
}

// NetworkStatus returns the status in wire form.
func (s *Session) NetworkStatus() network.SessionStatus {
	st := s.GetStatus()
	return network.SessionStatus{
		State:       st.State,
		Mode:        s.world.Mode.Mode().String(),
		Turn:        int(s.turnNo.Load()),
		PlayerCount: st.PlayerCount,
		MaxPlayers:  st.MaxPlayers,
		ServerTick:  st.ServerTick,
		Uptime:      st.Uptime,
	}
}

// OnTurnStart implements tick.TurnListener.
func (s *Session) OnTurnStart(turn int) { s.turnNo.Store(int64(turn)) }

// OnTurnEnd implements tick.TurnListener.
func (s *Session) OnTurnEnd(int) {}

func (s *Session) setState(state string) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

// VoteEndTurn records that owner is done. When every connected player has
// voted the turn ends and the new turn number is returned with true.
func (s *Session) VoteEndTurn(w *game.World, owner int) (int, bool, error) {
	if w.Mode.Mode() != tick.TurnBased {
		return w.Turns.Turn(), false, tick.ErrNotTurnBased
	}
	s.turnVotes[owner] = true
	return s.settleTurn(w)
}

// settleTurn ends the turn once at least one vote is in and no connected
// player is still waiting to vote.
func (s *Session) settleTurn(w *game.World) (int, bool, error) {
	if w.Mode.Mode() != tick.TurnBased || len(s.turnVotes) == 0 {
		return w.Turns.Turn(), false, nil
	}

	s.mu.RLock()
	waiting := 0
	for _, p := range s.players {
		if !s.turnVotes[p.OwnerID] {
			waiting++
		}
	}
	s.mu.RUnlock()
	if waiting > 0 {
		return w.Turns.Turn(), false, nil
	}

	clear(s.turnVotes)
	turn, err := w.EndTurn()
	if err != nil {
		return turn, false, err
	}
	s.BroadcastMessage(&network.ServerMessage{
		Type:    network.MsgTypeTurn,
		Payload: network.TurnPayload{Turn: turn},
	})
	return turn, true, nil
}

// State builds the full map dump on the simulation goroutine.
func State(w *game.World) network.StatePayload {
	state := network.StatePayload{
		Turn: w.Turns.Turn(),
		Mode: w.Mode.Mode().String(),
	}
	for t := range w.Grid.Tiles() {
		c := t.Coord()
		ts := network.TileState{
			Coord:   network.Coord{Q: c.Q, R: c.R},
			Terrain: t.Terrain.String(),
			OwnerID: t.Owner(),
		}
		if w.Borders != nil {
			if b, ok := w.Borders.Border(c); ok {
				ts.Edges = uint8(b.Mask)
			}
		}
		if b := t.OccupyingBuilding(); b != nil {
			ts.Building = string(b.Kind)
		}
		state.Tiles = append(state.Tiles, ts)
	}
	return state
}

func (s *Session) onOwnerChanged(t *gamemap.Tile, previous, current int) {
	c := t.Coord()
	s.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypeTileOwner,
		Payload: network.TileOwnerPayload{
			Coord:    network.Coord{Q: c.Q, R: c.R},
			Previous: previous,
			Current:  current,
		},
	})
}

func (s *Session) onBorderChanged(ev territory.BorderEvent) {
	s.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypeBorderUpdate,
		Payload: network.BorderPayload{
			Event:   ev.Kind.String(),
			Coord:   network.Coord{Q: ev.Border.Coord.Q, R: ev.Border.Coord.R},
			OwnerID: ev.Border.OwnerID,
			Edges:   uint8(ev.Border.Mask),
		},
	})
}

func (s *Session) onConstruction(ev construction.Event) {
	b := ev.Job.Building
	s.SendToOwner(ev.Job.Owner, &network.ServerMessage{
		Type: network.MsgTypeConstruction,
		Payload: network.ConstructionPayload{
			Event:      ev.Type.String(),
			JobID:      string(ev.Job.ID),
			OwnerID:    ev.Job.Owner,
			BuildingID: b.ID,
			Kind:       string(b.Kind),
			Coord:      network.Coord{Q: b.Q, R: b.R},
			Progress:   ev.Job.Progress(),
		},
	})
}
