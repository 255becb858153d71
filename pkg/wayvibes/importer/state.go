package importer

// State is a step of the import state machine.
type State int

// Import states in the order an import passes through them. Normalizing is
// skipped when the manifest is already at the archive root. Any failure ends
// in RolledBack.
const (
	StateIdle State = iota
	StateDetecting
	StateExtracting
	StateLocatingManifest
	StateNormalizing
	StateValidating
	StateFinalizing
	StateCommitted
	StateRolledBack
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateDetecting:        "detecting",
	StateExtracting:       "extracting",
	StateLocatingManifest: "locating manifest",
	StateNormalizing:      "normalizing",
	StateValidating:       "validating",
	StateFinalizing:       "finalizing",
	StateCommitted:        "committed",
	StateRolledBack:       "rolled back",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends an import.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}
