package ai

// Context is passed to every behavior tree node during a tick.
// Agent is the owning entity's state; action functions assert it to their own type.
type Context struct {
	Agent any
	DT    float64 // seconds since last tick
}
