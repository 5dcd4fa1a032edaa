package evo

// Command steers a live run from outside the tick loop.
type Command string

const (
	CommandPause    Command = "pause"
	CommandContinue Command = "continue"
	CommandStop     Command = "stop"
	// CommandAdvance forces the Evaluating -> Resetting sequence without
	// waiting for the all-dead or timeout condition.
	CommandAdvance Command = "advance"
)
