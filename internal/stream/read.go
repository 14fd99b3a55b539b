package stream

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/tmaxmax/go-sse"
)

// MaxEventSize bounds a single event on the wire, well above go-sse's 64 KiB default.
const MaxEventSize = 8 << 20

// Read incrementally decodes the SSE stream in r and yields its events in arrival order. Reads may
// split the stream anywhere, including in the middle of a line or of a multi-byte character. Only data
// fields are considered; every data line is parsed on its own. The sequence ends after the done
// sentinel, at the end of r, or after yielding a read error. Events larger than MaxEventSize are a
// read error.
func Read(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for ev, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: MaxEventSize}) {
			if err != nil {
				yield(Event{}, fmt.Errorf("error reading stream: %w", err))
				return
			}
			if ev.Data == "" {
				continue
			}

			for _, line := range strings.Split(ev.Data, "\n") {
				for _, e := range Parse(line) {
					if !yield(e, nil) {
						return
					}
					if e.Kind == KindDone {
						return
					}
				}
			}
		}
	}
}
