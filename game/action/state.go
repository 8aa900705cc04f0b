package action

// State is the movement/action state of one actor.
type State int

const (
	Idle State = iota
	Move
	Attack
	Damage
	Dead
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Move:
		return "move"
	case Attack:
		return "attack"
	case Damage:
		return "damage"
	case Dead:
		return "dead"
	}
	return "unknown"
}

// Event drives Transition.
type Event int

const (
	EventMove Event = iota
	EventArrive
	EventAttack
	EventAttackEnd
	EventDamage
	EventDamageEnd
	EventDie
	EventReset
)

// Transition returns the state reached from s on e and whether e is legal in s.
// Illegal events leave the state unchanged.
func Transition(s State, e Event) (State, bool) {
	switch e {
	case EventMove:
		if s == Idle || s == Move {
			return Move, true
		}
	case EventArrive:
		if s == Move {
			return Idle, true
		}
	case EventAttack:
		if s == Idle {
			return Attack, true
		}
	case EventAttackEnd:
		if s == Attack {
			return Idle, true
		}
	case EventDamage:
		if s == Idle || s == Move {
			return Damage, true
		}
	case EventDamageEnd:
		if s == Damage {
			return Idle, true
		}
	case EventDie:
		if s != Dead {
			return Dead, true
		}
	case EventReset:
		return Idle, true
	}
	return s, false
}
