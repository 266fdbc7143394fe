package engine

import "strings"

// Guard alphabet.
const (
	GuardOne      = '1'
	GuardZero     = '0'
	GuardWildcard = 'X'
)

// MatchGuard reports whether obs satisfies guard: every position where the
// guard is not 'X' must equal the observation character. Guards and
// observations of different widths are an integrity fault.
func MatchGuard(obs, guard string) (bool, error) {
	if len(obs) != len(guard) {
		return false, integrityf("guard %q and observation %q differ in width", guard, obs)
	}
	for i := 0; i < len(guard); i++ {
		if guard[i] != GuardWildcard && guard[i] != obs[i] {
			return false, nil
		}
	}
	return true, nil
}

// EncodeObservation derives the human observation bit string, one bit per
// proposition in props. A bit is '1' only when the agent is engaged in an
// interaction and stands on the tile bound to that proposition. Propositions
// unknown to the layout always encode '0'.
func EncodeObservation(pos Position, in Interaction, props []string, layout *Layout) string {
	var sb strings.Builder
	sb.Grow(len(props))
	for _, ap := range props {
		tile, ok := layout.PropositionTile(ap)
		if ok && in.Engaged() && tile == pos {
			sb.WriteByte(GuardOne)
		} else {
			sb.WriteByte(GuardZero)
		}
	}
	return sb.String()
}
