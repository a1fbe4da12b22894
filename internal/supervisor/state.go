// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package supervisor

// State is the supervisor's position in the start sequence.
type State int32

const (
	Idle State = iota
	Probing
	Attached
	Preparing
	Building
	Spawning
	Polling
	Healthy
	Failed
)

var stateNames = [...]string{
	Idle:      "idle",
	Probing:   "probing",
	Attached:  "attached",
	Preparing: "preparing",
	Building:  "building",
	Spawning:  "spawning",
	Polling:   "polling",
	Healthy:   "healthy",
	Failed:    "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Ownership says whether a Handle controls the bridge process.
type Ownership int

const (
	// AttachedBridge means the bridge was already running; Stop leaves it alone.
	AttachedBridge Ownership = iota
	// OwnedBridge means this process spawned the bridge and Stop kills it.
	OwnedBridge
)

func (o Ownership) String() string {
	if o == OwnedBridge {
		return "owned"
	}
	return "attached"
}
