package emit

import (
	"errors"
	"testing"
)

type recordingProcessor struct {
	events    []Event
	shutdowns int
}

func (r *recordingProcessor) OnEvent(e Event) { r.events = append(r.events, e) }
func (r *recordingProcessor) Shutdown()       { r.shutdowns++ }

type panickingProcessor struct{}

func (panickingProcessor) OnEvent(Event) { panic("boom") }
func (panickingProcessor) Shutdown()     {}

type erroringStrictProcessor struct{}

func (erroringStrictProcessor) OnEvent(Event) { panic(errors.New("strict failure")) }
func (erroringStrictProcessor) Shutdown()     {}

func TestDispatcherFansOutToEveryProcessor(t *testing.T) {
	p1 := &recordingProcessor{}
	p2 := &recordingProcessor{}
	d := NewDispatcher(false, nil, p1, p2)

	d.Dispatch(Event{Variant: RunStart, RunID: "r1"})

	if len(p1.events) != 1 || len(p2.events) != 1 {
		t.Fatalf("expected both processors to see the event: %d, %d", len(p1.events), len(p2.events))
	}
}

func TestDispatcherRegisterAfterConstruction(t *testing.T) {
	p1 := &recordingProcessor{}
	d := NewDispatcher(false, nil)
	d.Register(p1)

	d.Dispatch(Event{Variant: RunEnd})
	if len(p1.events) != 1 {
		t.Fatalf("expected registered processor to receive the event, got %d", len(p1.events))
	}
}

func TestDispatcherPanicIsSwallowedNonStrict(t *testing.T) {
	good := &recordingProcessor{}
	d := NewDispatcher(false, nil, panickingProcessor{}, good)

	d.Dispatch(Event{Variant: NodeStart})

	if len(good.events) != 1 {
		t.Error("expected the non-panicking processor to still receive the event")
	}
	if d.LastError() != nil {
		t.Error("expected no LastError in non-strict mode")
	}
}

func TestDispatcherStrictModeRecordsLastError(t *testing.T) {
	d := NewDispatcher(true, nil, erroringStrictProcessor{})
	d.Dispatch(Event{Variant: NodeStart})

	if d.LastError() == nil {
		t.Error("expected LastError to be set in strict mode")
	}
}

func TestDispatcherShutdownPropagates(t *testing.T) {
	p := &recordingProcessor{}
	d := NewDispatcher(false, nil, p)
	d.Shutdown() // should not panic, and should be safe to call
	if p.shutdowns != 1 {
		t.Errorf("expected Shutdown to reach the processor once, got %d", p.shutdowns)
	}
}
