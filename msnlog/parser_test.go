package msnlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gargbot/archivist/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "alice@hotmail.com"
	bob   = "bob@hotmail.com"
	eve   = "eve@hotmail.com"
)

func writeArchive(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func archive(elements ...string) string {
	return `<?xml version="1.0"?>
<Log FirstSessionID="1" LastSessionID="2">
` + strings.Join(elements, "\n") + `
</Log>`
}

func message(dateTime, session, from, fromLogon string, to [][2]string, style, text string) string {
	var users strings.Builder
	for _, u := range to {
		users.WriteString(`<User FriendlyName="` + u[0] + `" LogonName="` + u[1] + `"/>`)
	}
	return `<Message Date="01.02.2005" Time="20:15:03" DateTime="` + dateTime + `" SessionID="` + session + `">` +
		`<From><User FriendlyName="` + from + `" LogonName="` + fromLogon + `"/></From>` +
		`<To>` + users.String() + `</To>` +
		`<Text Style="` + style + `">` + text + `</Text></Message>`
}

func invitation(dateTime, session, from, fromLogon, text string) string {
	return `<Invitation Date="01.02.2005" Time="20:16:00" DateTime="` + dateTime + `" SessionID="` + session + `">` +
		`<From><User FriendlyName="` + from + `" LogonName="` + fromLogon + `"/></From>` +
		`<File>holiday.jpg</File>` +
		`<Text Style="color:#545454; ">` + text + `</Text></Invitation>`
}

func collect(t *testing.T, p *Parser, path string) ([]*core.ArchiveEvent, error) {
	t.Helper()
	var events []*core.ArchiveEvent
	for event, err := range p.Parse(path) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func TestParser_AllowList(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "bob.xml", archive(
		message("2005-02-01T19:15:03.437Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "hei"),
		message("2005-02-01T19:15:09.000Z", "1", "Alice", alice, [][2]string{{"Bob", bob}, {"Eve", eve}}, "", "secret"),
	))

	p := NewParser(WithAllowedParticipants(alice, bob))
	events, err := collect(t, p, path)
	require.NoError(t, err)
	require.Len(t, events, 1, "only the event with allowed participants is kept")
	assert.Equal(t, "hei", events[0].Body)

	t.Run("sender outside allow-list", func(t *testing.T) {
		p := NewParser(WithAllowedParticipants(bob))
		events, err := collect(t, p, path)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("empty allow-list drops everything", func(t *testing.T) {
		events, err := collect(t, NewParser(), path)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestParser_Fields(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "bob1234.xml", archive(
		message("2005-02-01T19:15:03.437Z", "7", "Alice (away)", alice, [][2]string{{"Bob", bob}},
			"font-family:Arial; color:#1A2B3C;", "hello there"),
	))

	events, err := collect(t, NewParser(WithAllowedParticipants(alice, bob)), path)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "bob1234.xml7", e.SessionID)
	assert.Equal(t, core.EventMessage, e.Kind)
	assert.Equal(t, time.Date(2005, 2, 1, 19, 15, 3, 437000000, time.UTC), e.Timestamp)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, "bob1234.xml", e.SourceFile)
	assert.Equal(t, "#1A2B3C", e.Color)
	assert.Equal(t, "Alice (away)", e.From)
	assert.Equal(t, []string{"Bob"}, e.To)
	assert.Equal(t, "hello there", e.Body)
	assert.Equal(t, map[string]struct{}{alice: {}, bob: {}}, e.Participants)
	assert.NoError(t, core.ValidateArchiveEvent(e))
}

func TestParser_Color(t *testing.T) {
	tests := []struct {
		style string
		want  string
	}{
		{"font-family:Arial; color:#1A2B3C;", "#1A2B3C"},
		{"color:#000000; color:#ffffff", "#000000"},
		{"font-family:Arial;", ""},
		{"", ""},
		{"color:#12;", ""},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			path := writeArchive(t, t.TempDir(), "c.xml", archive(
				message("2005-02-01T19:15:03.437Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, tt.style, "x"),
			))
			events, err := collect(t, NewParser(WithAllowedParticipants(alice, bob)), path)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Color)
		})
	}
}

func TestParser_InvitationHasNoRecipients(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "inv.xml", archive(
		message("2005-02-01T19:15:03.437Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "look"),
		invitation("2005-02-01T19:16:00.000Z", "1", "Alice", alice, "Alice sends holiday.jpg"),
		message("2005-02-01T19:17:00.000Z", "1", "Bob", bob, nil, "", "nobody"),
	))

	events, err := collect(t, NewParser(WithAllowedParticipants(alice, bob)), path)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Document order is kept across element kinds.
	assert.Equal(t, core.EventMessage, events[0].Kind)
	assert.Equal(t, core.EventInvitation, events[1].Kind)
	assert.Equal(t, core.EventMessage, events[2].Kind)

	assert.Nil(t, events[1].To, "invitations carry no recipient list")
	assert.Equal(t, "#545454", events[1].Color)

	assert.NotNil(t, events[2].To, "a message to nobody has an empty list")
	assert.Empty(t, events[2].To)
}

func TestParser_ControlCharacters(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "ctl.xml", archive(
		message("2005-02-01T19:15:03.437Z", "1", "Al\x1fice", alice, [][2]string{{"Bob", bob}}, "",
			"a\x02b\x03c\x04d\x05e"),
	))

	events, err := collect(t, NewParser(WithAllowedParticipants(alice, bob)), path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Al ice", events[0].From)
	assert.Equal(t, "a b c d|e", events[0].Body)
}

func TestParser_Charset(t *testing.T) {
	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<Log>" +
		message("2005-02-01T19:15:03.437Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "bl\xe5b\xe6r") +
		"</Log>"
	path := writeArchive(t, t.TempDir(), "latin1.xml", body)

	events, err := collect(t, NewParser(WithAllowedParticipants(alice, bob)), path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "blåbær", events[0].Body)
}

func TestParser_Malformed(t *testing.T) {
	allowed := WithAllowedParticipants(alice, bob)

	tests := []struct {
		name    string
		element string
	}{
		{"missing text", `<Message DateTime="2005-02-01T19:15:03.437Z" SessionID="1"><From><User FriendlyName="A" LogonName="` + alice + `"/></From><To></To></Message>`},
		{"missing from", `<Message DateTime="2005-02-01T19:15:03.437Z" SessionID="1"><To></To><Text>x</Text></Message>`},
		{"from without user", `<Message DateTime="2005-02-01T19:15:03.437Z" SessionID="1"><From></From><To></To><Text>x</Text></Message>`},
		{"message without to", `<Message DateTime="2005-02-01T19:15:03.437Z" SessionID="1"><From><User FriendlyName="A" LogonName="` + alice + `"/></From><Text>x</Text></Message>`},
		{"bad timestamp", `<Message DateTime="yesterday" SessionID="1"><From><User FriendlyName="A" LogonName="` + alice + `"/></From><To></To><Text>x</Text></Message>`},
		{"broken xml", `<Message DateTime="2005-02-01T19:15:03.437Z"><From>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, t.TempDir(), "bad.xml", archive(
				message("2005-02-01T19:15:00.000Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "first"),
				tt.element,
				message("2005-02-01T19:16:00.000Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "never"),
			))

			events, err := collect(t, NewParser(allowed), path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedArchive)
			require.Len(t, events, 1, "events before the fault are yielded")
			assert.Equal(t, "first", events[0].Body)
		})
	}
}

func TestParser_EmptyText(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "empty.xml", archive(
		message("2005-02-01T19:15:03.437Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", ""),
	))
	events, err := collect(t, NewParser(WithAllowedParticipants(alice, bob)), path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].Body)
}

func TestParser_MissingFile(t *testing.T) {
	_, err := collect(t, NewParser(), filepath.Join(t.TempDir(), "gone.xml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedArchive)
}

func TestParser_StopsEarly(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "many.xml", archive(
		message("2005-02-01T19:15:00.000Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "1"),
		message("2005-02-01T19:15:01.000Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "2"),
		message("2005-02-01T19:15:02.000Z", "1", "Alice", alice, [][2]string{{"Bob", bob}}, "", "3"),
	))

	p := NewParser(WithAllowedParticipants(alice, bob))
	seen := 0
	for _, err := range p.Parse(path) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// Parse can be called again on the same file.
	events, err := collect(t, p, path)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestParser_ParseReader(t *testing.T) {
	body := archive(message("2005-02-01T19:15:00.000Z", "9", "Alice", alice, [][2]string{{"Bob", bob}}, "", "x"))

	var events []*core.ArchiveEvent
	for event, err := range NewParser(WithAllowedParticipants(alice, bob)).ParseReader("mem.xml", strings.NewReader(body)) {
		require.NoError(t, err)
		events = append(events, event)
	}
	require.Len(t, events, 1)
	assert.Equal(t, "mem.xml9", events[0].SessionID)
}
