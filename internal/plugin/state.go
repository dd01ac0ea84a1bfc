package plugin

// State is a step in a plugin process's lifecycle. States only move
// forward, except that any state may drop into LaunchFailure or Error.
type State int

const (
	StateUninitialized State = iota
	StateInitialized         // Init called
	StateListening           // listener bound, process not started
	StateLaunched            // process started, waiting for it to dial in
	StateConnected           // authenticated, waiting for hello
	StateHello               // hello received, load_plugin about to go out
	StateLoading             // waiting for load_plugin_response
	StateRunning             // steady state
	StateLaunchFailure       // failed before reaching Running
	StateError               // failed after reaching Running
	StateGoodbye             // shutdown requested, shutdown_plugin about to go out
	StateExiting             // waiting for the process to exit
	StateCleanup             // tearing down
	StateDone                // finished
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateInitialized:   "initialized",
	StateListening:     "listening",
	StateLaunched:      "launched",
	StateConnected:     "connected",
	StateHello:         "hello",
	StateLoading:       "loading",
	StateRunning:       "running",
	StateLaunchFailure: "launch_failure",
	StateError:         "error",
	StateGoodbye:       "goodbye",
	StateExiting:       "exiting",
	StateCleanup:       "cleanup",
	StateDone:          "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
