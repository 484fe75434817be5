package web

import (
	"github.com/mindatnh/scopego/internal/logic/specimen"
)

// Notifier publishes display and alert events to SSE clients. It
// implements display.Notifier and display.Alerter for exhibits run with
// the web status page attached.
type Notifier struct {
	b     *Broadcaster
	store *specimen.Store
}

func NewNotifier(b *Broadcaster, store *specimen.Store) *Notifier {
	return &Notifier{b: b, store: store}
}

func (n *Notifier) SpecimenChanged(idx int) {
	rec := n.store.Load(idx)
	n.b.Publish(Event{Kind: "specimen", Specimen: idx, Name: rec.Name})
}

func (n *Notifier) PanelShouldOpen(open bool) {
	n.b.Publish(Event{Kind: "panel", Open: &open})
}

func (n *Notifier) LimitReached(axisName string) {
	n.b.Publish(Event{Kind: "alert", Msg: axisName + " limit reached"})
}
