package stream_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/MegaGrindStone/chat-playground/internal/stream"
)

func chunk(content string) string {
	return `{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"` + content + `"}}]}`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []stream.Event
	}{
		{
			name: "Text delta",
			data: chunk("Hel"),
			want: []stream.Event{{Kind: stream.KindText, Text: "Hel"}},
		},
		{
			name: "Leading whitespace",
			data: "  " + chunk("lo"),
			want: []stream.Event{{Kind: stream.KindText, Text: "lo"}},
		},
		{
			name: "Done sentinel",
			data: "[DONE]",
			want: []stream.Event{{Kind: stream.KindDone}},
		},
		{
			name: "Reasoning content before text",
			data: `{"choices":[{"delta":{"reasoning_content":"hmm","content":"ok"}}]}`,
			want: []stream.Event{
				{Kind: stream.KindReasoning, Text: "hmm"},
				{Kind: stream.KindText, Text: "ok"},
			},
		},
		{
			name: "Reasoning details",
			data: `{"choices":[{"delta":{"reasoning_details":[` +
				`{"type":"reasoning.text","text":"a"},` +
				`{"type":"reasoning.encrypted","data":"xyz"},` +
				`{"type":"reasoning.redacted"},` +
				`{"type":"reasoning.summary","text":"ignored"}]}}]}`,
			want: []stream.Event{
				{Kind: stream.KindReasoning, Text: "a"},
				{Kind: stream.KindReasoning, Redacted: true},
				{Kind: stream.KindReasoning, Redacted: true},
			},
		},
		{
			name: "Role only delta",
			data: `{"choices":[{"delta":{"role":"assistant"}}]}`,
			want: nil,
		},
		{
			name: "No choices",
			data: `{"id":"1","choices":[]}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stream.Parse(tt.data)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() = %+v, want %+v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Parse()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	got := stream.Parse("{not json")
	if len(got) != 1 {
		t.Fatalf("Parse() = %+v, want 1 event", got)
	}
	if got[0].Kind != stream.KindMalformed {
		t.Errorf("Kind = %v, want %v", got[0].Kind, stream.KindMalformed)
	}
	if got[0].Raw != "{not json" {
		t.Errorf("Raw = %q, want %q", got[0].Raw, "{not json")
	}
	if got[0].Err == nil {
		t.Error("Err = nil, want decode error")
	}
}

func collect(t *testing.T, r io.Reader) []stream.Event {
	t.Helper()

	var events []stream.Event
	for ev, err := range stream.Read(r) {
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func kinds(events []stream.Event) []stream.Kind {
	ks := make([]stream.Kind, len(events))
	for i, ev := range events {
		ks[i] = ev.Kind
	}
	return ks
}

func TestRead(t *testing.T) {
	body := "data: " + chunk("He") + "\n\n" +
		": keep-alive\n\n" +
		"event: ping\nid: 7\n\n" +
		"data: {broken\n\n" +
		"data: " + chunk("llo") + "\n\n" +
		"data: [DONE]\n\n" +
		"data: " + chunk("after done") + "\n\n"

	events := collect(t, strings.NewReader(body))

	want := []stream.Kind{stream.KindText, stream.KindMalformed, stream.KindText, stream.KindDone}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("Read() kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Read() kinds[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if events[0].Text != "He" || events[2].Text != "llo" {
		t.Errorf("Read() texts = %q, %q, want %q, %q", events[0].Text, events[2].Text, "He", "llo")
	}
}

func TestReadArbitrarySplits(t *testing.T) {
	body := "data: " + chunk("héllo ✓") + "\n\n" +
		"data: " + chunk(" wörld") + "\n\n" +
		"data: [DONE]\n\n"

	t.Run("One byte at a time", func(t *testing.T) {
		events := collect(t, iotest.OneByteReader(strings.NewReader(body)))
		if got := joinText(events); got != "héllo ✓ wörld" {
			t.Errorf("Read() text = %q, want %q", got, "héllo ✓ wörld")
		}
		if events[len(events)-1].Kind != stream.KindDone {
			t.Errorf("Read() last kind = %v, want %v", events[len(events)-1].Kind, stream.KindDone)
		}
	})

	for i := 1; i < len(body); i++ {
		r := io.MultiReader(
			iotest.HalfReader(strings.NewReader(body[:i])),
			strings.NewReader(body[i:]),
		)
		events := collect(t, r)
		if got := joinText(events); got != "héllo ✓ wörld" {
			t.Fatalf("Read() split at %d text = %q, want %q", i, got, "héllo ✓ wörld")
		}
	}
}

func TestReadLargeEvent(t *testing.T) {
	big := strings.Repeat("x", 100<<10)
	body := "data: " + chunk(big) + "\n\n" + "data: [DONE]\n\n"

	events := collect(t, strings.NewReader(body))

	if got := joinText(events); got != big {
		t.Errorf("Read() text length = %d, want %d", len(got), len(big))
	}
	if events[len(events)-1].Kind != stream.KindDone {
		t.Errorf("Read() last kind = %v, want %v", events[len(events)-1].Kind, stream.KindDone)
	}
}

func TestReadWithoutDone(t *testing.T) {
	events := collect(t, strings.NewReader("data: "+chunk("partial")+"\n\n"))

	if len(events) != 1 || events[0].Text != "partial" {
		t.Errorf("Read() = %+v, want single partial text event", events)
	}
}

func TestReadError(t *testing.T) {
	wantErr := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: "+chunk("a")+"\n\n"),
		iotest.ErrReader(wantErr),
	)

	var gotErr error
	var texts []string
	for ev, err := range stream.Read(r) {
		if err != nil {
			gotErr = err
			continue
		}
		texts = append(texts, ev.Text)
	}

	if !errors.Is(gotErr, wantErr) {
		t.Errorf("Read() error = %v, want %v", gotErr, wantErr)
	}
	if len(texts) != 1 || texts[0] != "a" {
		t.Errorf("Read() texts = %v, want [a]", texts)
	}
}

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer

	for _, c := range []string{chunk("Hel"), chunk("lo")} {
		if err := stream.WriteData(&buf, []byte(c)); err != nil {
			t.Fatalf("WriteData() error = %v", err)
		}
	}
	if err := stream.WriteDone(&buf); err != nil {
		t.Fatalf("WriteDone() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "data: "+chunk("Hel")+"\n\n") {
		t.Errorf("output = %q, want it to start with the first data event", out)
	}
	if !strings.HasSuffix(out, "data: [DONE]\n\n") {
		t.Errorf("output = %q, want it to end with the done event", out)
	}

	events := collect(t, &buf)
	if got := joinText(events); got != "Hello" {
		t.Errorf("Read() text = %q, want %q", got, "Hello")
	}
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer

	if err := stream.WriteEvent(&buf, "turn", "<div>hi</div>"); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "event: turn\n") {
		t.Errorf("output = %q, want event type line", out)
	}
	if !strings.Contains(out, "data: <div>hi</div>\n") {
		t.Errorf("output = %q, want data line", out)
	}
}

func joinText(events []stream.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == stream.KindText {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}
