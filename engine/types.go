package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIntegrity marks a synthesis artifact that disagrees with the engine's
// assumptions: missing transitions, malformed guards, unknown labels, or an
// adviser entry with more than one guard. It is never caused by participant
// input and is not recoverable within a session.
var ErrIntegrity = errors.New("synthesis artifact integrity violation")

// integrityf wraps ErrIntegrity with a formatted detail message.
func integrityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Moves
// ---------------------------------------------------------------------------

// Move is one agent's discrete intent for a single step.
type Move uint8

const (
	MoveNone     Move = iota // 0: no action label (observation/environment edges)
	MoveIdle                 // 1
	MoveUp                   // 2: +y
	MoveDown                 // 3: -y
	MoveLeft                 // 4: -x
	MoveRight                // 5: +x
	MoveInteract             // 6
)

var moveNames = [...]string{"None", "Idle", "Up", "Down", "Left", "Right", "Interact"}

func (m Move) String() string {
	if int(m) < len(moveNames) {
		return moveNames[m]
	}
	return fmt.Sprintf("Move(%d)", uint8(m))
}

// ParseMove converts an action label into a Move. Matching is case-insensitive.
// The empty label parses as MoveNone.
func ParseMove(label string) (Move, error) {
	if label == "" {
		return MoveNone, nil
	}
	for i, name := range moveNames {
		if strings.EqualFold(label, name) {
			return Move(i), nil
		}
	}
	return MoveNone, fmt.Errorf("unknown move label %q", label)
}

// Delta returns the grid displacement of a move.
// Idle, Interact and None do not displace the agent.
func (m Move) Delta() (dx, dy int) {
	switch m {
	case MoveUp:
		return 0, 1
	case MoveDown:
		return 0, -1
	case MoveLeft:
		return -1, 0
	case MoveRight:
		return 1, 0
	}
	return 0, 0
}

// containsMove reports whether m is in moves.
func containsMove(moves []Move, m Move) bool {
	for _, x := range moves {
		if x == m {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Players
// ---------------------------------------------------------------------------

// Player tags the owner of a graph node.
type Player uint8

const (
	PlayerUnknown     Player = iota // 0: owner not recorded in the artifact
	PlayerHuman                     // 1
	PlayerRobot                     // 2
	PlayerEnvironment               // 3: probabilistic/environment step
)

var playerNames = [...]string{"unknown", "human", "robot", "env"}

func (p Player) String() string {
	if int(p) < len(playerNames) {
		return playerNames[p]
	}
	return fmt.Sprintf("Player(%d)", uint8(p))
}

// ParsePlayer converts an owner tag into a Player. "prob" and "environment"
// are accepted as aliases for the environment player.
func ParsePlayer(tag string) (Player, error) {
	switch strings.ToLower(tag) {
	case "", "unknown":
		return PlayerUnknown, nil
	case "human", "h":
		return PlayerHuman, nil
	case "robot", "r":
		return PlayerRobot, nil
	case "env", "environment", "prob", "p":
		return PlayerEnvironment, nil
	}
	return PlayerUnknown, fmt.Errorf("unknown player tag %q", tag)
}

// ---------------------------------------------------------------------------
// Grid positions
// ---------------------------------------------------------------------------

// Position is an integer grid coordinate. (0,0) is the bottom-left tile.
type Position struct {
	X int
	Y int
}

// Step returns the position reached by applying m.
func (p Position) Step(m Move) Position {
	dx, dy := m.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }
