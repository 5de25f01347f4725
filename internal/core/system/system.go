package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput     Phase = iota // 0: accept/tear down sessions, drain message queues
	PhaseSimulate               // 1: advance authoritative state by one fixed step
	PhaseInterest               // 2: recompute per-client interest sets
	PhaseReplicate              // 3: diff shadows, build spawn/update/despawn messages
	PhaseStream                 // 4: queue bulk chunk data
	PhaseOutput                 // 5: drain budgets, flush sessions
	PhasePersist                // 6: snapshot capture
	PhaseCleanup                // 7: destroy despawned entities
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
