package domain

import "strconv"

// Field layout of a completed message: 3 header fields, one (timestamp,
// duration) pair per hop, then the terminal (RESPONSE_TIME, total) pair.
// Offsets are always derived from the topology depth declared in config,
// never hard-coded by consumers.

// HopTimestampIndex returns the field index of hop k's timestamp (k zero-based).
func HopTimestampIndex(k int) int {
	return minMessageFields + 2*k
}

// HopDurationIndex returns the field index of hop k's duration (k zero-based).
func HopDurationIndex(k int) int {
	return minMessageFields + 2*k + 1
}

// CompletedFieldCount returns the field count of a completed message that
// traversed depth hops.
func CompletedFieldCount(depth int) int {
	return minMessageFields + 2*depth + 2
}

// HopDurations extracts the per-hop durations of a completed message for the
// declared topology depth. The trail may be longer than depth requires (a
// source-side terminal append after a stamped one, for instance); it must not
// be shorter.
//
// Returns *MessageError when the trail is too short for depth or a duration
// field is not an integer.
func HopDurations(m Message, depth int) ([]int64, error) {
	if m.Len() < CompletedFieldCount(depth) {
		return nil, &MessageError{Line: m.Encode(), Reason: "trail shorter than declared topology depth"}
	}
	out := make([]int64, 0, depth)
	for k := 0; k < depth; k++ {
		v, err := strconv.ParseInt(m.fields[HopDurationIndex(k)], 10, 64)
		if err != nil {
			return nil, &MessageError{Line: m.Encode(), Reason: "hop duration is not an integer"}
		}
		out = append(out, v)
	}
	return out, nil
}
