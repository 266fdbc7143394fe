package engine

// Progress tracks one agent's burger assembly: five ingredient flags and the
// number of burgers delivered since the last reset.
type Progress struct {
	Buns    bool
	Patty   bool
	Lettuce bool
	Tomato  bool
	Sauce   bool
	Burgers int
}

// Collect sets the flag of an ingredient station. Delivery and unknown
// stations are ignored.
func (p *Progress) Collect(st Station) {
	switch st {
	case StationBuns:
		p.Buns = true
	case StationPatty:
		p.Patty = true
	case StationLettuce:
		p.Lettuce = true
	case StationTomato:
		p.Tomato = true
	case StationSauce:
		p.Sauce = true
	}
}

// Complete reports whether all five ingredients are present.
func (p *Progress) Complete() bool {
	return p.Buns && p.Patty && p.Lettuce && p.Tomato && p.Sauce
}

// MakeBurger delivers a burger if all five ingredients are present, clearing
// the flags and incrementing Burgers. A partial delivery changes nothing.
func (p *Progress) MakeBurger() bool {
	if !p.Complete() {
		return false
	}
	burgers := p.Burgers + 1
	*p = Progress{Burgers: burgers}
	return true
}

// Reset returns p to its session-start value.
func (p *Progress) Reset() { *p = Progress{} }

// Flags returns the ingredient flags in station order: buns, patty, lettuce,
// tomato, sauce.
func (p *Progress) Flags() [5]bool {
	return [5]bool{p.Buns, p.Patty, p.Lettuce, p.Tomato, p.Sauce}
}

// applyStation applies a workstation effect for an engaged agent standing
// at st. Sauce needs both agents: a human at the sauce station while the
// robot works it is assisting and collects nothing, and the robot only
// collects sauce while assisted. It reports whether a burger was delivered.
func (p *Progress) applyStation(player Player, st Station, partnerAtSauce bool) bool {
	switch st {
	case StationNone:
		return false
	case StationDelivery:
		return p.MakeBurger()
	case StationSauce:
		if (player == PlayerHuman && !partnerAtSauce) || (player == PlayerRobot && partnerAtSauce) {
			p.Collect(StationSauce)
		}
		return false
	default:
		p.Collect(st)
		return false
	}
}
