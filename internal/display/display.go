// Package display defines the boundary to the exhibit's presentation
// layer. The controller only emits notifications; rendering, metadata
// panels and audio live outside this process's core.
package display

// Notifier receives display-affecting events from the motion core.
type Notifier interface {
	// SpecimenChanged reports that the specimen under the optics changed.
	SpecimenChanged(idx int)
	// PanelShouldOpen reports whether the info panel should be shown
	// (the tab sensor is blocking the beam).
	PanelShouldOpen(open bool)
}

// Alerter receives safety alerts (e.g. for audible playback).
type Alerter interface {
	LimitReached(axisName string)
}

// Nop implements both interfaces and does nothing. Used when no web
// status layer is attached.
type Nop struct{}

func (Nop) SpecimenChanged(int)  {}
func (Nop) PanelShouldOpen(bool) {}
func (Nop) LimitReached(string)  {}
