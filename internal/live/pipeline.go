package live

import (
	"fmt"

	"hls-live/internal/media"
)

// Stage names a point in the session lifecycle that handlers attach to.
type Stage int

const (
	StagePlay Stage = iota
	StageClose
	StageFrame
	numStages
)

func (s Stage) String() string {
	switch s {
	case StagePlay:
		return "play"
	case StageClose:
		return "close"
	case StageFrame:
		return "frame"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Event carries the subject of one stage invocation. Play and close events
// set Viewer; frame events set Frame.
type Event struct {
	Stage  Stage
	Stream *StreamState
	Viewer *Viewer
	Frame  *media.Frame
	Reason string
}

// StageHandler processes one stage event.
type StageHandler interface {
	Handle(ev *Event) error
}

// HandlerFunc adapts a function to StageHandler.
type HandlerFunc func(ev *Event) error

func (f HandlerFunc) Handle(ev *Event) error {
	return f(ev)
}

// Middleware wraps the next handler of a stage.
type Middleware func(next StageHandler) StageHandler

type stage struct {
	base  StageHandler
	mws   []Middleware
	chain StageHandler
}

// Pipeline holds an ordered handler chain per stage. Middleware registered
// first runs outermost; each one decides whether to forward to next.
type Pipeline struct {
	stages [numStages]stage
}

// NewPipeline returns a pipeline whose stages do nothing until handled.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	for i := range p.stages {
		p.stages[i].base = HandlerFunc(func(*Event) error { return nil })
		p.build(Stage(i))
	}
	return p
}

// Handle sets the terminal handler of a stage.
func (p *Pipeline) Handle(s Stage, h StageHandler) {
	p.stages[s].base = h
	p.build(s)
}

// Use appends middleware to a stage.
func (p *Pipeline) Use(s Stage, mws ...Middleware) {
	p.stages[s].mws = append(p.stages[s].mws, mws...)
	p.build(s)
}

func (p *Pipeline) build(s Stage) {
	st := &p.stages[s]
	h := st.base
	for i := len(st.mws) - 1; i >= 0; i-- {
		h = st.mws[i](h)
	}
	st.chain = h
}

// Run dispatches ev to the chain of ev.Stage.
func (p *Pipeline) Run(ev *Event) error {
	if ev.Stage < 0 || ev.Stage >= numStages {
		return fmt.Errorf("pipeline: unknown %s", ev.Stage)
	}
	return p.stages[ev.Stage].chain.Handle(ev)
}
