package session

import "github.com/ayusman/mudra/internal/gesture"

// Callback receives recognized gestures.
type Callback func(gesture.Result)

type handler struct {
	id uint32
	fn Callback
}

type customEntry struct {
	id uint32
	r  gesture.CustomRecognizer
}

type registry struct {
	byKind  map[gesture.Kind][]handler
	any     []handler
	customs []customEntry
	nextID  uint32
}

func newRegistry() *registry {
	return &registry{byKind: make(map[gesture.Kind][]handler)}
}

type handleSlot uint8

const (
	slotKind handleSlot = iota + 1
	slotAny
	slotCustom
)

// Handle identifies a registered callback or custom recognizer.
type Handle struct {
	id   uint32
	reg  *registry
	slot handleSlot
	kind gesture.Kind
}

// Remove unregisters the callback or recognizer. Removing twice, or removing
// the zero Handle, is a no-op.
func (h Handle) Remove() {
	if h.reg == nil {
		return
	}
	switch h.slot {
	case slotKind:
		rest := removeHandler(h.reg.byKind[h.kind], h.id)
		if len(rest) == 0 {
			delete(h.reg.byKind, h.kind)
		} else {
			h.reg.byKind[h.kind] = rest
		}
	case slotAny:
		h.reg.any = removeHandler(h.reg.any, h.id)
	case slotCustom:
		for i := range h.reg.customs {
			if h.reg.customs[i].id == h.id {
				h.reg.customs = append(h.reg.customs[:i:i], h.reg.customs[i+1:]...)
				return
			}
		}
	}
}

// removeHandler returns s without id. It never writes into s, so a dispatch
// iterating the old slice is unaffected.
func removeHandler(s []handler, id uint32) []handler {
	for i := range s {
		if s[i].id == id {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

func (r *registry) on(kind gesture.Kind, fn Callback) Handle {
	r.nextID++
	r.byKind[kind] = append(r.byKind[kind], handler{id: r.nextID, fn: fn})
	return Handle{id: r.nextID, reg: r, slot: slotKind, kind: kind}
}

func (r *registry) onAny(fn Callback) Handle {
	r.nextID++
	r.any = append(r.any, handler{id: r.nextID, fn: fn})
	return Handle{id: r.nextID, reg: r, slot: slotAny}
}

func (r *registry) addCustom(rec gesture.CustomRecognizer) Handle {
	r.nextID++
	r.customs = append(r.customs, customEntry{id: r.nextID, r: rec})
	return Handle{id: r.nextID, reg: r, slot: slotCustom}
}

func (r *registry) recognizers() []gesture.CustomRecognizer {
	out := make([]gesture.CustomRecognizer, len(r.customs))
	for i, c := range r.customs {
		out[i] = c.r
	}
	return out
}

// handlers returns the callbacks for kind followed by the catch-all ones.
func (r *registry) handlers(kind gesture.Kind) []handler {
	kinds := r.byKind[kind]
	out := make([]handler, 0, len(kinds)+len(r.any))
	out = append(out, kinds...)
	return append(out, r.any...)
}
