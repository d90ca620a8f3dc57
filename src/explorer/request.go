package explorer

// RequestState is the state of the pending request of one direction.
type RequestState uint32

const (
	// Idle means no request is in flight.
	Idle RequestState = iota
	// Requested means a request was issued and its response is awaited.
	Requested
	// Applied means the last response was merged.
	Applied
	// Failed means the last request returned an error.
	Failed
)

// String returns the string representation of a RequestState
func (s RequestState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Requested:
		return "Requested"
	case Applied:
		return "Applied"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// tracker serializes the requests of one direction. At most one request is
// in flight; triggers arriving meanwhile are remembered and replayed once
// the request settles.
type tracker struct {
	// state is Idle or Requested.
	state RequestState
	// last is Applied or Failed once a request settled, Idle before.
	last   RequestState
	seq    uint64
	queued bool
}

// begin issues a new request. When one is already in flight, the trigger is
// queued and begin returns false.
func (t *tracker) begin() (uint64, bool) {
	if t.state == Requested {
		t.queued = true
		return 0, false
	}
	t.seq++
	t.state = Requested
	return t.seq, true
}

// settle records the outcome of request seq. It returns false when seq is not
// the request in flight, and whether a trigger was queued meanwhile.
func (t *tracker) settle(seq uint64, ok bool) (current bool, queued bool) {
	if t.state != Requested || seq != t.seq {
		return false, false
	}
	if ok {
		t.last = Applied
	} else {
		t.last = Failed
	}
	t.state = Idle
	queued = t.queued
	t.queued = false
	return true, queued
}

// reset abandons the request in flight, its response will be ignored.
func (t *tracker) reset() {
	t.seq++
	t.state = Idle
	t.last = Idle
	t.queued = false
}
