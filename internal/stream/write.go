package stream

import (
	"fmt"
	"io"

	"github.com/tmaxmax/go-sse"
)

// WriteData writes data as a single `data: <data>\n\n` event. Data must not contain line breaks.
func WriteData(w io.Writer, data []byte) error {
	e := &sse.Message{}
	e.AppendData(string(data))
	if _, err := e.WriteTo(w); err != nil {
		return fmt.Errorf("error writing event: %w", err)
	}
	return nil
}

// WriteDone writes the terminal `data: [DONE]\n\n` event.
func WriteDone(w io.Writer) error {
	return WriteData(w, []byte(DoneSentinel))
}

// WriteEvent writes a typed event carrying data, as used to push rendered fragments to browsers.
func WriteEvent(w io.Writer, typ, data string) error {
	e := &sse.Message{Type: sse.Type(typ)}
	e.AppendData(data)
	if _, err := e.WriteTo(w); err != nil {
		return fmt.Errorf("error writing %s event: %w", typ, err)
	}
	return nil
}
