package graphml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type eventKind uint8

const (
	evStart eventKind = iota + 1
	evEnd
	evText
	evEOF
)

// event is one structural XML event. Adjacent character data (text and
// CDATA sections) is coalesced into a single evText.
type event struct {
	kind   eventKind
	name   string
	attrs  []xml.Attr
	text   string
	offset int64
}

func (ev event) attr(name string) (string, bool) {
	for _, a := range ev.attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (ev event) blank() bool {
	return ev.kind == evText && strings.TrimSpace(ev.text) == ""
}

// stream is a forward-only event source with an unbounded lookahead queue.
// Peeking never consumes; only next and peekSignificant advance.
type stream struct {
	dec *xml.Decoder
	buf []event
	eof bool
}

func newStream(r io.Reader) *stream {
	return &stream{dec: xml.NewDecoder(r)}
}

func (s *stream) read() error {
	for {
		tok, err := s.dec.Token()
		offset := s.dec.InputOffset()
		if errors.Is(err, io.EOF) {
			s.buf = append(s.buf, event{kind: evEOF, offset: offset})
			s.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("xml syntax near offset %d: %w", offset, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			s.buf = append(s.buf, event{kind: evStart, name: t.Name.Local, attrs: t.Copy().Attr, offset: offset})
		case xml.EndElement:
			s.buf = append(s.buf, event{kind: evEnd, name: t.Name.Local, offset: offset})
		case xml.CharData:
			if n := len(s.buf); n > 0 && s.buf[n-1].kind == evText {
				s.buf[n-1].text += string(t)
			} else {
				s.buf = append(s.buf, event{kind: evText, text: string(t), offset: offset})
			}
		default:
			// comments, processing instructions, directives
			continue
		}
		return nil
	}
}

// peekAt returns the i-th queued event without consuming it. A text event
// is only returned once the event after it is known, so it is complete.
func (s *stream) peekAt(i int) (event, error) {
	for {
		if i < len(s.buf) {
			last := i == len(s.buf)-1
			if s.buf[i].kind != evText || !last || s.eof {
				return s.buf[i], nil
			}
		} else if s.eof {
			return s.buf[len(s.buf)-1], nil
		}
		if err := s.read(); err != nil {
			return event{}, err
		}
	}
}

func (s *stream) peek() (event, error) {
	return s.peekAt(0)
}

// next consumes and returns the head event. EOF is sticky.
func (s *stream) next() (event, error) {
	ev, err := s.peek()
	if err != nil || ev.kind == evEOF {
		return ev, err
	}
	s.buf = s.buf[1:]
	return ev, nil
}

// peekSignificant drops whitespace-only text at the head and peeks the
// first event that carries structure or content.
func (s *stream) peekSignificant() (event, error) {
	for {
		ev, err := s.peek()
		if err != nil || !ev.blank() {
			return ev, err
		}
		s.buf = s.buf[1:]
	}
}
