package tui

// notice is a single user-facing status line produced outside the Bubble
// Tea update loop.
type notice struct {
	isError bool
	text    string
}

// Notices adapts the session and controller notification hooks into
// messages the program can consume. Delivery is best-effort: when the
// buffer is full the oldest context has already scrolled past anyway.
type Notices struct {
	ch chan notice
}

func NewNotices() *Notices {
	return &Notices{ch: make(chan notice, 16)}
}

func (n *Notices) Success(msg string) { n.push(notice{text: msg}) }

func (n *Notices) Error(msg string) { n.push(notice{isError: true, text: msg}) }

func (n *Notices) push(v notice) {
	select {
	case n.ch <- v:
	default:
	}
}
