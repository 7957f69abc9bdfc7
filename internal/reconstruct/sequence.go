package reconstruct

import (
	"fmt"
	"sort"

	"github.com/akr81/CounterExample2Sequence/internal/trace"
)

// Arrow is the diagram arrow style of a message
type Arrow string

const (
	ArrowSync  Arrow = "->"  // Sends, assignments and guards
	ArrowReply Arrow = "-->" // Receives
)

// Message is one diagram transition
type Message struct {
	Source      string
	Arrow       Arrow
	Destination string
	Label       string // "s.<step>: l.<line>: <text>"
	Step        int
	Location    string
	Loop        bool
}

// LoopRange is the index range of Messages inside the accepting cycle.
// Start may equal End when the cycle holds no step.
type LoopRange struct {
	Active bool
	Start  int
	End    int
}

// Sequence is everything a diagram renderer needs from a full trace
type Sequence struct {
	Participants []string // Sorted, de-duplicated process names
	Messages     []Message
	Loop         LoopRange
}

type sequenceBuilder struct {
	participants map[string]bool
	seq          Sequence
}

func newSequenceBuilder() *sequenceBuilder {
	return &sequenceBuilder{participants: make(map[string]bool)}
}

func (b *sequenceBuilder) startLoop() {
	if b.seq.Loop.Active {
		return
	}
	b.seq.Loop.Active = true
	b.seq.Loop.Start = len(b.seq.Messages)
}

func (b *sequenceBuilder) add(ev trace.Event) {
	var step trace.Step
	var src, dst, text string
	arrow := ArrowSync
	switch e := ev.(type) {
	case trace.StepMessage:
		step = e.Step
		text = e.Payload
		if e.Direction == trace.Send {
			src, dst = e.Process, e.Channel
		} else {
			src, dst = e.Channel, e.Process
			arrow = ArrowReply
		}
	case trace.StepAssignment:
		step = e.Step
		src, dst, text = e.Process, e.Process, e.Action
	case trace.StepGuard:
		step = e.Step
		src, dst, text = e.Process, e.Process, e.Action
	default:
		return
	}

	b.participants[step.Process] = true
	b.seq.Messages = append(b.seq.Messages, Message{
		Source:      src,
		Arrow:       arrow,
		Destination: dst,
		Label:       fmt.Sprintf("s.%d: l.%s: %s", step.Number, step.Line(), text),
		Step:        step.Number,
		Location:    step.Location,
		Loop:        b.seq.Loop.Active,
	})
}

func (b *sequenceBuilder) build() *Sequence {
	seq := b.seq
	seq.Participants = make([]string, 0, len(b.participants))
	for p := range b.participants {
		seq.Participants = append(seq.Participants, p)
	}
	sort.Strings(seq.Participants)
	if seq.Loop.Active {
		seq.Loop.End = len(seq.Messages)
	}
	return &seq
}
