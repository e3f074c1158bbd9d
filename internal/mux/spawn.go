package mux

import (
	"github.com/FScoward/funhou-sub000/internal/ptyproc"
)

// ProcessHandle is the multiplexer's view of one live PTY process. It
// matches the adapter contract: arbitrary-sized output chunks pushed through
// a data callback, no inherent framing.
type ProcessHandle interface {
	Write(data []byte) error
	Resize(cols, rows uint16) error
	Kill() error
	OnData(cb func([]byte)) (remove func())
	Alive() bool
}

// SpawnFunc starts (or resumes, when resumeRef is non-empty) the wrapped CLI
// process in cwd with the given initial size.
type SpawnFunc func(cwd string, cols, rows uint16, resumeRef string) (ProcessHandle, error)

// CommandSpawner returns a SpawnFunc that launches command inside shell via
// a PTY. A resume ref is passed through as the CLI's --resume flag, so the
// wrapped process picks up its prior conversation.
func CommandSpawner(shell, command string) SpawnFunc {
	return func(cwd string, cols, rows uint16, resumeRef string) (ProcessHandle, error) {
		initial := command
		if resumeRef != "" {
			initial = command + " --resume " + resumeRef
		}
		return ptyproc.Spawn(ptyproc.Options{
			Shell:          shell,
			Cwd:            cwd,
			Cols:           cols,
			Rows:           rows,
			InitialCommand: initial,
		})
	}
}
