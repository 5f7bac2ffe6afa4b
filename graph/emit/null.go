package emit

// NullProcessor discards every event. Useful as the sole processor when a
// caller wants the always-on RunLog trace collector but nothing else.
type NullProcessor struct{}

func NewNullProcessor() *NullProcessor { return &NullProcessor{} }

func (NullProcessor) OnEvent(Event) {}
func (NullProcessor) Shutdown()     {}
