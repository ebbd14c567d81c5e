package sandbox

import (
	"bytes"
	"fmt"
)

// cappedBuffer keeps at most max bytes and silently discards the rest, so a
// runaway command cannot exhaust memory. Writes always report success to
// keep the child from failing on a closed pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated int
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated += len(p)
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated += len(p) - room
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated == 0 {
		return b.buf.String()
	}
	return b.buf.String() + fmt.Sprintf("\n[output truncated: %d bytes discarded]", b.truncated)
}
