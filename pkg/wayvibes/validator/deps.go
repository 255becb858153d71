package validator

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external program wayvibes-ui relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement was found on PATH.
type Status struct {
	Name        string `json:"name" yaml:"name"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Optional    bool   `json:"optional" yaml:"optional"`
	Available   bool   `json:"available" yaml:"available"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Detail      string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(reqs []Requirement) []Status {
	out := make([]Status, 0, len(reqs))
	for _, req := range reqs {
		st := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(st.Command); {
		case st.Command == "":
			st.Detail = "command not configured"
		case err != nil:
			st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		default:
			st.Available = true
			st.Path = path
		}
		out = append(out, st)
	}
	return out
}

// Requirements lists the programs used for validation and playback.
func Requirements(validatorBin, playerBin string) []Requirement {
	reqs := []Requirement{{
		Name:        "wayvibes",
		Command:     validatorBin,
		Description: "validates sound packs during import",
	}}
	if playerBin != "" && playerBin != validatorBin {
		reqs = append(reqs, Requirement{
			Name:        "player",
			Command:     playerBin,
			Description: "plays the active sound pack",
			Optional:    true,
		})
	}
	return reqs
}
