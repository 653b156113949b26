package msnlog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gargbot/archivist/core"
	"golang.org/x/net/html/charset"
)

// timestampLayout matches the DateTime attribute. Any number of fractional
// digits is accepted.
const timestampLayout = "2006-01-02T15:04:05.999999Z"

var (
	colorPattern = regexp.MustCompile(`color:(#\w{6})`)

	// Messenger writes a few control bytes into archives that XML forbids.
	controlReplacer = strings.NewReplacer(
		"\x1f", " ",
		"\x02", " ",
		"\x03", " ",
		"\x04", " ",
		"\x05", "|",
	)
)

type xmlUser struct {
	FriendlyName string `xml:"FriendlyName,attr"`
	LogonName    string `xml:"LogonName,attr"`
}

type xmlParty struct {
	Users []xmlUser `xml:"User"`
}

type xmlText struct {
	Style string `xml:"Style,attr"`
	Body  string `xml:",chardata"`
}

type xmlEvent struct {
	DateTime  string    `xml:"DateTime,attr"`
	SessionID string    `xml:"SessionID,attr"`
	From      *xmlParty `xml:"From"`
	To        *xmlParty `xml:"To"`
	Text      *xmlText  `xml:"Text"`
}

// Parser reads single archive files.
type Parser struct {
	allowed map[string]struct{}
	logger  *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithAllowedParticipants sets the logon names events may involve.
// Default is the empty set, which drops every event.
func WithAllowedParticipants(logonNames ...string) ParserOption {
	return func(p *Parser) {
		for _, name := range logonNames {
			p.allowed[name] = struct{}{}
		}
	}
}

// WithParserLogger sets a custom logger.
// Default is slog.Default().
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		allowed: make(map[string]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "msnlog.parser")
	return p
}

// Parse returns the events of the archive at path in document order. The
// file is read when iteration starts, once per iteration. Events involving a
// participant outside the allow-list are skipped. The first error ends the
// sequence.
func (p *Parser) Parse(path string) iter.Seq2[*core.ArchiveEvent, error] {
	return func(yield func(*core.ArchiveEvent, error) bool) {
		data, err := os.ReadFile(path)
		if err != nil {
			yield(nil, fmt.Errorf("read %s: %w", path, err))
			return
		}
		p.parse(filepath.Base(path), data, yield)
	}
}

// ParseReader is Parse for an archive read from r. source names the
// archive and prefixes every session id.
func (p *Parser) ParseReader(source string, r io.Reader) iter.Seq2[*core.ArchiveEvent, error] {
	return func(yield func(*core.ArchiveEvent, error) bool) {
		data, err := io.ReadAll(r)
		if err != nil {
			yield(nil, fmt.Errorf("read %s: %w", source, err))
			return
		}
		p.parse(source, data, yield)
	}
}

func (p *Parser) parse(source string, data []byte, yield func(*core.ArchiveEvent, error) bool) {
	dec := xml.NewDecoder(strings.NewReader(controlReplacer.Replace(string(data))))
	dec.CharsetReader = charset.NewReaderLabel

	var kept, dropped int
	defer func() {
		p.logger.Debug("parsed archive", "source", source, "events", kept, "dropped", dropped)
	}()

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("%w: %s: %w", ErrMalformedArchive, source, err))
			return
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var kind core.EventKind
		switch start.Name.Local {
		case "Message":
			kind = core.EventMessage
		case "Invitation":
			kind = core.EventInvitation
		default:
			continue
		}

		var el xmlEvent
		if err := dec.DecodeElement(&el, &start); err != nil {
			yield(nil, fmt.Errorf("%w: %s: %w", ErrMalformedArchive, source, err))
			return
		}

		event, err := buildEvent(source, kind, &el)
		if err != nil {
			yield(nil, fmt.Errorf("%w: %s line %d: %w", ErrMalformedArchive, source, lineOf(dec), err))
			return
		}

		if !p.permitted(event) {
			dropped++
			continue
		}

		kept++
		if !yield(event, nil) {
			return
		}
	}
}

func buildEvent(source string, kind core.EventKind, el *xmlEvent) (*core.ArchiveEvent, error) {
	ts, err := time.ParseInLocation(timestampLayout, el.DateTime, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%s DateTime %q: %w", kind, el.DateTime, err)
	}

	if el.From == nil || len(el.From.Users) == 0 {
		return nil, fmt.Errorf("%s has no From/User", kind)
	}
	if el.Text == nil {
		return nil, fmt.Errorf("%s has no Text", kind)
	}

	sender := el.From.Users[0]
	event := &core.ArchiveEvent{
		SessionID:    source + el.SessionID,
		Kind:         kind,
		Timestamp:    ts,
		SourceFile:   source,
		From:         sender.FriendlyName,
		Body:         el.Text.Body,
		Participants: map[string]struct{}{sender.LogonName: {}},
	}

	if m := colorPattern.FindStringSubmatch(el.Text.Style); m != nil {
		event.Color = m[1]
	}

	if kind == core.EventMessage {
		if el.To == nil {
			return nil, fmt.Errorf("%s has no To", kind)
		}
		event.To = make([]string, 0, len(el.To.Users))
		for _, u := range el.To.Users {
			event.To = append(event.To, u.FriendlyName)
			event.Participants[u.LogonName] = struct{}{}
		}
	}

	return event, nil
}

func (p *Parser) permitted(event *core.ArchiveEvent) bool {
	for name := range event.Participants {
		if _, ok := p.allowed[name]; !ok {
			return false
		}
	}
	return true
}

func lineOf(dec *xml.Decoder) int {
	line, _ := dec.InputPos()
	return line
}
