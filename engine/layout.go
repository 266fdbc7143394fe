package engine

import (
	"fmt"
	"strings"
)

// NumTiles is the edge length of the square kitchen grid.
const NumTiles = 5

// Station identifies a workstation kind.
type Station uint8

const (
	StationNone     Station = iota // 0
	StationBuns                    // 1
	StationPatty                   // 2
	StationLettuce                 // 3
	StationTomato                  // 4
	StationSauce                   // 5
	StationDelivery                // 6
)

var stationNames = [...]string{"none", "buns", "patty", "lettuce", "tomato", "sauce", "delivery"}

func (s Station) String() string {
	if int(s) < len(stationNames) {
		return stationNames[s]
	}
	return fmt.Sprintf("Station(%d)", uint8(s))
}

// ParseStation converts a station name into a Station. "ketchup" is an
// alias for sauce, matching the proposition naming of the artifacts.
func ParseStation(name string) (Station, error) {
	n := strings.ToLower(name)
	if n == "ketchup" {
		return StationSauce, nil
	}
	for i, s := range stationNames {
		if i > 0 && n == s {
			return Station(i), nil
		}
	}
	return StationNone, fmt.Errorf("unknown station %q", name)
}

// Workstation binds a station to the tile an agent stands on to use it.
type Workstation struct {
	Station     Station
	Stand       Position // tile the agent occupies while using the station
	Facing      Move     // direction of the station tile from Stand
	Moves       []Move   // legal moves on Stand when not interacting (human side)
	Proposition string   // observation proposition bound to Stand, if any
}

// Anchor returns the tile the agent steps toward while interacting.
func (w *Workstation) Anchor() Position { return w.Stand.Step(w.Facing) }

// Layout holds the fixed tile constants of the kitchen.
type Layout struct {
	Size       int
	HumanStart Position
	RobotStart Position
	Human      []Workstation
	Robot      []Workstation
}

// DefaultLayout returns the kitchen used by the study: a single row of
// ingredient stations at y=2 shared by both agents, the human walking the
// row above it, the robot the row below, and one delivery counter per side.
func DefaultLayout() *Layout {
	return &Layout{
		Size:       NumTiles,
		HumanStart: Position{X: 2, Y: 4},
		RobotStart: Position{X: 2, Y: 0},
		Human: []Workstation{
			{Station: StationDelivery, Stand: Position{2, 4}, Facing: MoveLeft, Proposition: "delivery_h",
				Moves: []Move{MoveIdle, MoveInteract, MoveDown}},
			{Station: StationPatty, Stand: Position{0, 3}, Facing: MoveDown, Proposition: "patty_h",
				Moves: []Move{MoveIdle, MoveInteract, MoveRight}},
			{Station: StationBuns, Stand: Position{1, 3}, Facing: MoveDown, Proposition: "buns_h",
				Moves: []Move{MoveIdle, MoveInteract, MoveLeft, MoveRight}},
			{Station: StationTomato, Stand: Position{2, 3}, Facing: MoveDown, Proposition: "tomato_h",
				Moves: []Move{MoveIdle, MoveInteract, MoveUp, MoveLeft, MoveRight}},
			{Station: StationSauce, Stand: Position{3, 3}, Facing: MoveDown, Proposition: "ketchup_h",
				Moves: []Move{MoveIdle, MoveInteract, MoveLeft, MoveRight}},
			{Station: StationLettuce, Stand: Position{4, 3}, Facing: MoveDown, Proposition: "lettuce_h",
				Moves: []Move{MoveIdle, MoveInteract, MoveLeft}},
		},
		Robot: []Workstation{
			{Station: StationDelivery, Stand: Position{2, 0}, Facing: MoveLeft, Proposition: "delivery_r"},
			{Station: StationPatty, Stand: Position{0, 1}, Facing: MoveUp, Proposition: "patty_r"},
			{Station: StationBuns, Stand: Position{1, 1}, Facing: MoveUp, Proposition: "buns_r"},
			{Station: StationTomato, Stand: Position{2, 1}, Facing: MoveUp, Proposition: "tomato_r"},
			{Station: StationSauce, Stand: Position{3, 1}, Facing: MoveUp, Proposition: "ketchup_r"},
			{Station: StationLettuce, Stand: Position{4, 1}, Facing: MoveUp, Proposition: "lettuce_r"},
		},
	}
}

func stationAt(list []Workstation, pos Position) (*Workstation, bool) {
	for i := range list {
		if list[i].Stand == pos {
			return &list[i], true
		}
	}
	return nil, false
}

// HumanStation returns the human workstation whose stand tile is pos.
func (l *Layout) HumanStation(pos Position) (*Workstation, bool) { return stationAt(l.Human, pos) }

// RobotStation returns the robot workstation whose stand tile is pos.
func (l *Layout) RobotStation(pos Position) (*Workstation, bool) { return stationAt(l.Robot, pos) }

// StandOf returns the stand tile of a station for one side.
func (l *Layout) StandOf(player Player, st Station) (Position, bool) {
	list := l.Human
	if player == PlayerRobot {
		list = l.Robot
	}
	for i := range list {
		if list[i].Station == st {
			return list[i].Stand, true
		}
	}
	return Position{}, false
}

// Anchor returns the interaction anchor for an agent standing on pos: one
// tile toward the workstation. Human stations are checked before robot ones.
func (l *Layout) Anchor(pos Position) (Position, error) {
	if w, ok := l.HumanStation(pos); ok {
		return w.Anchor(), nil
	}
	if w, ok := l.RobotStation(pos); ok {
		return w.Anchor(), nil
	}
	return Position{}, integrityf("no workstation to interact with at %s", pos)
}

// PropositionTile returns the stand tile bound to a proposition name.
func (l *Layout) PropositionTile(name string) (Position, bool) {
	for _, list := range [][]Workstation{l.Human, l.Robot} {
		for i := range list {
			if list[i].Proposition != "" && list[i].Proposition == name {
				return list[i].Stand, true
			}
		}
	}
	return Position{}, false
}

// HumanMoves returns the human's legal moves. While engaged in an
// interaction the only legal move is Interact; otherwise the stand tile's
// move table applies. Standing anywhere else means the layout and the
// resolver have diverged.
func (l *Layout) HumanMoves(pos Position, in Interaction) ([]Move, error) {
	if in.Engaged() {
		return []Move{MoveInteract}, nil
	}
	w, ok := l.HumanStation(pos)
	if !ok || len(w.Moves) == 0 {
		return nil, integrityf("no legal human moves at %s", pos)
	}
	moves := make([]Move, len(w.Moves))
	copy(moves, w.Moves)
	return moves, nil
}

// Validate checks that every stand lies on the grid, anchors stay on the
// grid, and both start tiles are human/robot stands respectively.
func (l *Layout) Validate() error {
	onGrid := func(p Position) bool { return p.X >= 0 && p.Y >= 0 && p.X < l.Size && p.Y < l.Size }
	for _, list := range [][]Workstation{l.Human, l.Robot} {
		for _, w := range list {
			if !onGrid(w.Stand) || !onGrid(w.Anchor()) {
				return fmt.Errorf("layout: %s station at %s leaves the %dx%d grid", w.Station, w.Stand, l.Size, l.Size)
			}
		}
	}
	if _, ok := l.HumanStation(l.HumanStart); !ok {
		return fmt.Errorf("layout: human start %s is not a human stand", l.HumanStart)
	}
	if !onGrid(l.RobotStart) {
		return fmt.Errorf("layout: robot start %s is off the grid", l.RobotStart)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Keyboard intents
// ---------------------------------------------------------------------------

// Key is a raw directional input from the participant.
type Key uint8

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeySpace
)

// ParseKey converts a key name ("left", "space", ...) into a Key.
func ParseKey(name string) (Key, error) {
	switch strings.ToLower(name) {
	case "left", "arrowleft":
		return KeyLeft, nil
	case "right", "arrowright":
		return KeyRight, nil
	case "up", "arrowup":
		return KeyUp, nil
	case "down", "arrowdown":
		return KeyDown, nil
	case "space", " ":
		return KeySpace, nil
	}
	return KeyNone, fmt.Errorf("unknown key %q", name)
}

// MoveForKey maps a key press to a move for a human standing on pos.
// Pressing toward a workstation means Interact: Left on the delivery stand,
// Down on an ingredient stand. Space idles.
func (l *Layout) MoveForKey(k Key, pos Position) (Move, bool) {
	w, atStation := l.HumanStation(pos)
	switch k {
	case KeyLeft:
		if atStation && w.Station == StationDelivery {
			return MoveInteract, true
		}
		return MoveLeft, true
	case KeyRight:
		return MoveRight, true
	case KeyUp:
		return MoveUp, true
	case KeyDown:
		if atStation && w.Station != StationDelivery {
			return MoveInteract, true
		}
		return MoveDown, true
	case KeySpace:
		return MoveIdle, true
	}
	return MoveNone, false
}
