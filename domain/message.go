package domain

import (
	"strconv"
	"strings"
)

// Wire protocol tokens. Every line on the wire is either a control line
// (ping, config) or one encoded Message; lines are newline-terminated and
// fields are separated by FieldSeparator. The canonical encoded form carries
// a trailing separator: "1;4;1755000000000;".
const (
	FieldSeparator     = ";"
	PingLine           = "ping"
	PingReplyFree      = "free"
	PingReplyBusy      = "busy"
	configLineToken    = "config"
	ResponseTimeMarker = "RESPONSE_TIME"
)

// minMessageFields is the header: client id, sequence index, source send time.
const minMessageFields = 3

// Message is one measurement record in transit. The trail is append-only:
// three header fields, then exactly one (timestamp, duration) pair per hop,
// then, once the round trip completes, the terminal (RESPONSE_TIME, total)
// pair. A Message value is immutable; every append returns a new value whose
// fields are a strict prefix-preserving extension of the old one.
type Message struct {
	fields []string
}

// NewMessage builds the initial record emitted by a source: client id,
// sequence index and the send timestamp in unix milliseconds.
func NewMessage(clientID, seq int, sendMillis int64) Message {
	return Message{fields: []string{
		strconv.Itoa(clientID),
		strconv.Itoa(seq),
		strconv.FormatInt(sendMillis, 10),
	}}
}

// ParseMessage decodes one wire line (without its newline) into a Message.
// The trailing empty field produced by the canonical trailing separator is
// dropped; inner empty fields are kept as-is.
//
// Returns *MessageError when the line has fewer than the three header fields.
func ParseMessage(line string) (Message, error) {
	fields := strings.Split(line, FieldSeparator)
	if n := len(fields); n > 0 && fields[n-1] == "" {
		fields = fields[:n-1]
	}
	if len(fields) < minMessageFields {
		return Message{}, &MessageError{Line: line, Reason: "fewer than 3 fields"}
	}
	return Message{fields: fields}, nil
}

// Encode returns the canonical wire form: fields joined by the separator with
// a trailing separator, no newline.
func (m Message) Encode() string {
	return strings.Join(m.fields, FieldSeparator) + FieldSeparator
}

// Fields returns a copy of the raw fields.
func (m Message) Fields() []string {
	out := make([]string, len(m.fields))
	copy(out, m.fields)
	return out
}

// Len returns the number of fields.
func (m Message) Len() int {
	return len(m.fields)
}

// ClientID returns the first header field as written by the source.
func (m Message) ClientID() string {
	return m.fields[0]
}

// Seq returns the sequence index, the correlation key for statistics.
// ok is false when the field is not an integer.
func (m Message) Seq() (int, bool) {
	v, err := strconv.Atoi(m.fields[1])
	return v, err == nil
}

// FirstSendMillis returns the source send timestamp from the header.
// ok is false when the field is not an integer.
func (m Message) FirstSendMillis() (int64, bool) {
	v, err := strconv.ParseInt(m.fields[2], 10, 64)
	return v, err == nil
}

// LastTimestampMillis returns the most recently stamped timestamp: the
// header send time while the trail is bare, afterwards the timestamp slot of
// the latest (timestamp, duration) pair. ok is false when that field does
// not parse as integer milliseconds; the stamping operations recover from
// that by substituting the current time.
func (m Message) LastTimestampMillis() (int64, bool) {
	i := len(m.fields) - 2
	if len(m.fields) == minMessageFields {
		i = minMessageFields - 1
	}
	v, err := strconv.ParseInt(m.fields[i], 10, 64)
	return v, err == nil
}

// WithHop appends the (now, now-lastTimestamp) pair a node stamps when it
// hands the message on. When the previous timestamp field is malformed the
// current time is substituted (yielding duration 0) and clean reports false
// so the caller can log the recovery.
func (m Message) WithHop(nowMillis int64) (out Message, clean bool) {
	last, ok := m.LastTimestampMillis()
	if !ok {
		last = nowMillis
	}
	return m.appendPair(strconv.FormatInt(nowMillis, 10), strconv.FormatInt(nowMillis-last, 10)), ok
}

// WithHopDuration appends a (now, duration) pair with a duration the caller
// measured itself, such as a service's slot occupancy time.
func (m Message) WithHopDuration(nowMillis, durationMillis int64) Message {
	return m.appendPair(strconv.FormatInt(nowMillis, 10), strconv.FormatInt(durationMillis, 10))
}

// WithResponseTime appends the terminal (RESPONSE_TIME, now-firstSend) pair.
// When the header send timestamp is malformed the current time is substituted
// (total 0) and clean reports false.
func (m Message) WithResponseTime(nowMillis int64) (out Message, clean bool) {
	first, ok := m.FirstSendMillis()
	if !ok {
		first = nowMillis
	}
	return m.appendPair(ResponseTimeMarker, strconv.FormatInt(nowMillis-first, 10)), ok
}

// HasResponseTime reports whether the terminal pair is present.
func (m Message) HasResponseTime() bool {
	n := len(m.fields)
	return n >= minMessageFields+2 && m.fields[n-2] == ResponseTimeMarker
}

// ResponseTimeMillis returns the total duration from the terminal pair.
// ok is false when the pair is absent or its value is not an integer.
func (m Message) ResponseTimeMillis() (int64, bool) {
	if !m.HasResponseTime() {
		return 0, false
	}
	v, err := strconv.ParseInt(m.fields[len(m.fields)-1], 10, 64)
	return v, err == nil
}

func (m Message) appendPair(a, b string) Message {
	fields := make([]string, len(m.fields), len(m.fields)+2)
	copy(fields, m.fields)
	return Message{fields: append(fields, a, b)}
}

// IsPing reports whether line is the liveness probe.
func IsPing(line string) bool {
	return line == PingLine
}

// IsConfigLine reports whether line is a reconfiguration command
// ("config;N", trailing separator tolerated).
func IsConfigLine(line string) bool {
	return strings.HasPrefix(line, configLineToken+FieldSeparator)
}

// ParseConfigCount extracts N from a reconfiguration line. N must be a
// positive integer; anything else is a *MessageError (the balancer logs it
// and ignores the line).
func ParseConfigCount(line string) (int, error) {
	rest := strings.TrimPrefix(line, configLineToken+FieldSeparator)
	rest = strings.TrimSuffix(rest, FieldSeparator)
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return 0, &MessageError{Line: line, Reason: "config count must be a positive integer"}
	}
	return n, nil
}

// MessageError is returned for wire lines that cannot be decoded.
type MessageError struct {
	Line   string
	Reason string
}

// Error implements error; returns a string like `line "x;y": fewer than 3 fields`.
func (e *MessageError) Error() string {
	return "line " + strconv.Quote(e.Line) + ": " + e.Reason
}
