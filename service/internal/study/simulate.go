package study

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/sirupsen/logrus"
)

// Participant decides the simulated human's next move from the study.
type Participant func(st *engine.Study) (engine.Move, error)

// GuidedParticipant follows the strict-guidance choreography exactly.
func GuidedParticipant(st *engine.Study) (engine.Move, error) {
	return st.GuidedMove()
}

// RandomParticipant returns a participant picking uniformly among legal
// moves, seeded for reproducible runs.
func RandomParticipant(seed uint64) Participant {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(st *engine.Study) (engine.Move, error) {
		legal, err := st.HumanMoves()
		if err != nil {
			return engine.MoveNone, err
		}
		return legal[rng.IntN(len(legal))], nil
	}
}

// Simulate runs st headless with fixed ticks of dt until the session timer
// expires. p is asked for the next move as soon as the previous one is
// consumed, so moves for the next step are queued during the animation.
func Simulate(ctx context.Context, st *engine.Study, dt time.Duration, p Participant) (engine.Results, error) {
	if dt <= 0 {
		return engine.Results{}, fmt.Errorf("simulate: tick must be positive, got %s", dt)
	}
	log := logrus.WithField("participant", st.Results().ParticipantID)
	for !st.Ended() {
		if err := ctx.Err(); err != nil {
			return st.Results(), err
		}
		if st.State != engine.StateFadingOut {
			if _, queued := st.PendingHumanMove(); !queued {
				m, err := p(st)
				if err != nil {
					return st.Results(), err
				}
				st.QueueHumanMove(m)
			}
		}
		ev, err := st.Tick(dt)
		if err != nil {
			return st.Results(), err
		}
		if out := ev.Outcome; out != nil && out.Violated {
			log.WithFields(logrus.Fields{"human": out.HumanMove, "obs": out.Observation}).Debug("Simulated violation")
		}
	}
	return st.Results(), nil
}
