package engine

// Results is the summary handed to the result sink when a session ends.
// Counters are cumulative over the whole session and survive resets.
type Results struct {
	ParticipantID  int
	AdviserMode    AdviserMode
	StepsTaken     uint32
	SafetyViolated uint32
	HumanBurgers   uint32
	RobotBurgers   uint32
}

// Burgers returns the total number of burgers delivered by both agents.
func (r Results) Burgers() uint32 { return r.HumanBurgers + r.RobotBurgers }
