// Package poster publishes auto-update progress events to connected clients.
package poster

import "fmt"

// Event names understood by the UI
const (
	EventAutoOperationStart = "auto-operation-start"
	EventOperationOutput    = "operation-output"
	EventOperationFinished  = "operation-finished"
)

// Output sources
const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
)

// EventSink delivers a named event with a JSON-serializable payload.
type EventSink interface {
	Emit(event string, payload interface{}) error
}

// Event is the envelope written to event streams.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// OutputLine is the payload of an operation-output event.
type OutputLine struct {
	Line   string `json:"line"`
	Source string `json:"source"`
}

// Finished is the payload of an operation-finished event.
type Finished struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Poster posts progress events to a sink.
// This struct is stateless - it only holds the sink.
type Poster struct {
	sink EventSink
}

// New creates a new Poster instance.
func New(sink EventSink) *Poster {
	return &Poster{sink: sink}
}

// Start announces a new operation. The title is shown as the operation heading.
func (p *Poster) Start(title string) error {
	return p.emit(EventAutoOperationStart, title)
}

// Output posts one line of operation output. Failed lines go to stderr.
func (p *Poster) Output(line string, failed bool) error {
	source := SourceStdout
	if failed {
		source = SourceStderr
	}
	return p.emit(EventOperationOutput, OutputLine{Line: line, Source: source})
}

// Finished posts the final state of an operation.
func (p *Poster) Finished(success bool, message string) error {
	return p.emit(EventOperationFinished, Finished{Success: success, Message: message})
}

func (p *Poster) emit(event string, payload interface{}) error {
	if p.sink == nil {
		return nil
	}
	if err := p.sink.Emit(event, payload); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}
