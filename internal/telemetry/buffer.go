package telemetry

// Per-buffer capacities. Motion arrives at the highest rate, so it gets the
// largest window; key and click rates are lower.
const (
	MotionCapacity = 50
	ClickCapacity  = 20
	KeyCapacity    = 30

	// Touch events are unbounded within a session but pruned once they fall
	// outside this window behind the newest event.
	DefaultTouchWindowMs = 60_000
)

// ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// entry.
type ring[T any] struct {
	buf   []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring[T]) len() int { return r.count }

// items returns the surviving entries in insertion order.
func (r *ring[T]) items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Buffer holds the bounded telemetry windows for one session. It is not
// internally synchronized: the owning session serializes all access
// (single-writer discipline).
type Buffer struct {
	motion  *ring[MotionSample]
	clicks  *ring[ClickSample]
	keys    *ring[KeySample]
	touches []TouchEvent

	touchWindowMs int64
}

// NewBuffer returns an empty buffer with the standard capacities.
func NewBuffer() *Buffer {
	return &Buffer{
		motion:        newRing[MotionSample](MotionCapacity),
		clicks:        newRing[ClickSample](ClickCapacity),
		keys:          newRing[KeySample](KeyCapacity),
		touchWindowMs: DefaultTouchWindowMs,
	}
}

// RecordMotion appends a motion sample, evicting the oldest at capacity.
func (b *Buffer) RecordMotion(s MotionSample) { b.motion.push(s) }

// RecordClick appends a click sample, evicting the oldest at capacity.
func (b *Buffer) RecordClick(s ClickSample) { b.clicks.push(s) }

// RecordKey appends a completed keystroke, evicting the oldest at capacity.
func (b *Buffer) RecordKey(s KeySample) { b.keys.push(s) }

// RecordTouch appends a touch event and prunes events older than the touch
// window relative to the newest timestamp.
func (b *Buffer) RecordTouch(ev TouchEvent) {
	b.touches = append(b.touches, ev)

	cutoff := ev.T - b.touchWindowMs
	drop := 0
	for drop < len(b.touches) && b.touches[drop].T < cutoff {
		drop++
	}
	if drop > 0 {
		b.touches = append(b.touches[:0], b.touches[drop:]...)
	}
}

// MotionCount reports the surviving motion samples.
func (b *Buffer) MotionCount() int { return b.motion.len() }

// ClickCount reports the surviving click samples.
func (b *Buffer) ClickCount() int { return b.clicks.len() }

// KeyCount reports the surviving keystrokes.
func (b *Buffer) KeyCount() int { return b.keys.len() }

// TouchCount reports the surviving touch events.
func (b *Buffer) TouchCount() int { return len(b.touches) }

// EventCount is the total surviving samples across all buffer types.
func (b *Buffer) EventCount() int {
	return b.motion.len() + b.clicks.len() + b.keys.len() + len(b.touches)
}

// Snapshot is an immutable copy of a buffer, safe for concurrent feature
// extraction while new samples keep arriving on the original.
type Snapshot struct {
	Motion  []MotionSample
	Clicks  []ClickSample
	Keys    []KeySample
	Touches []TouchEvent
}

// Snapshot copies every buffer in insertion order.
func (b *Buffer) Snapshot() Snapshot {
	touches := make([]TouchEvent, len(b.touches))
	for i, ev := range b.touches {
		pts := make([]TouchPoint, len(ev.Touches))
		copy(pts, ev.Touches)
		ev.Touches = pts
		touches[i] = ev
	}
	return Snapshot{
		Motion:  b.motion.items(),
		Clicks:  b.clicks.items(),
		Keys:    b.keys.items(),
		Touches: touches,
	}
}
