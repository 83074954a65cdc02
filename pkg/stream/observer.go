package stream

// Observer receives live updates while a send is streaming. Calls are made
// synchronously from the goroutine running Send. Both values are reset to the
// empty string when a send ends.
type Observer interface {
	OnStreamingText(text string)
	OnStatus(status string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	StreamingText func(text string)
	Status        func(status string)
}

func (o ObserverFuncs) OnStreamingText(text string) {
	if o.StreamingText != nil {
		o.StreamingText(text)
	}
}

func (o ObserverFuncs) OnStatus(status string) {
	if o.Status != nil {
		o.Status(status)
	}
}
