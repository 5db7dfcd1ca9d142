// Package tlmt is the telemetry facade. Events carry the ids of the
// things they describe; nothing about the host machine is collected.
package tlmt

import "context"

type Event struct {
	DistinctID string
	Name       string
	Properties map[string]any
}

func NewEvent(distinctID, name string, props map[string]any) Event {
	ev := Event{
		DistinctID: distinctID,
		Name:       name,
		Properties: make(map[string]any, len(props)),
	}

	for k, v := range props {
		ev.Properties[k] = v
	}

	return ev
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}
