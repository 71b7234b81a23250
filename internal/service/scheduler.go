package service

import "github.com/Strob0t/CoachForge/internal/domain/turn"

// Phase is the pass a step runs in.
type Phase int

const (
	// PhaseGather steps collect context for the response.
	PhaseGather Phase = iota
	// PhaseRespond steps produce the coach answer.
	PhaseRespond
)

// stepSpec declares the phase of a step kind and the kinds whose results it
// consumes.
type stepSpec struct {
	phase Phase
	deps  []turn.Kind
}

var defaultStepSpecs = map[turn.Kind]stepSpec{
	turn.KindTranscription: {phase: PhaseGather},
	turn.KindVision:        {phase: PhaseGather},
	turn.KindMood:          {phase: PhaseGather, deps: []turn.Kind{turn.KindTranscription}},
	turn.KindNutrition:     {phase: PhaseGather, deps: []turn.Kind{turn.KindTranscription}},
	turn.KindHistory:       {phase: PhaseGather, deps: []turn.Kind{turn.KindTranscription}},
	turn.KindCoaching: {phase: PhaseRespond, deps: []turn.Kind{
		turn.KindTranscription, turn.KindMood, turn.KindNutrition, turn.KindHistory,
	}},
}

// Step is one command bound to its step kind.
type Step struct {
	Kind    turn.Kind
	Command turn.Command
}

// Plan is the execution order of a turn. Gather waves run one after the
// other; steps within a wave do not depend on each other.
type Plan struct {
	Gather  [][]Step
	Respond []Step
}

// Size returns the number of steps in the plan.
func (p Plan) Size() int {
	n := len(p.Respond)
	for _, w := range p.Gather {
		n += len(w)
	}
	return n
}

// Scheduler orders steps by their declared dependencies.
type Scheduler struct {
	specs map[turn.Kind]stepSpec
}

// NewScheduler creates a Scheduler. With threadVision the coaching step also
// waits for the vision result.
func NewScheduler(threadVision bool) *Scheduler {
	specs := make(map[turn.Kind]stepSpec, len(defaultStepSpecs))
	for k, v := range defaultStepSpecs {
		specs[k] = v
	}
	if threadVision {
		c := specs[turn.KindCoaching]
		c.deps = append(append([]turn.Kind(nil), c.deps...), turn.KindVision)
		specs[turn.KindCoaching] = c
	}
	return &Scheduler{specs: specs}
}

// DependsOn reports whether kind consumes the result of dep.
func (s *Scheduler) DependsOn(kind, dep turn.Kind) bool {
	for _, d := range s.specs[kind].deps {
		if d == dep {
			return true
		}
	}
	return false
}

// Plan splits steps into the gather and respond phases. Gather steps are
// grouped into waves: a step joins the first wave after every gather step
// it depends on. Input order is kept within a wave and within the respond
// phase. Unknown kinds gather without dependencies.
func (s *Scheduler) Plan(steps []Step) Plan {
	var p Plan
	var gather []Step
	for _, st := range steps {
		if s.specs[st.Kind].phase == PhaseRespond {
			p.Respond = append(p.Respond, st)
			continue
		}
		gather = append(gather, st)
	}

	pending := make(map[turn.Kind]int, len(gather))
	for _, st := range gather {
		pending[st.Kind]++
	}

	for len(gather) > 0 {
		var wave, rest []Step
		for _, st := range gather {
			if s.ready(st.Kind, pending) {
				wave = append(wave, st)
			} else {
				rest = append(rest, st)
			}
		}
		if len(wave) == 0 {
			// Dependency cycle: run the remainder in input order.
			wave, rest = rest, nil
		}
		for _, st := range wave {
			pending[st.Kind]--
		}
		p.Gather = append(p.Gather, wave)
		gather = rest
	}
	return p
}

func (s *Scheduler) ready(kind turn.Kind, pending map[turn.Kind]int) bool {
	for _, d := range s.specs[kind].deps {
		if d != kind && pending[d] > 0 {
			return false
		}
	}
	return true
}
