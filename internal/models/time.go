package models

import "time"

// The backend is not consistent about sub-second precision in timestamps,
// and older records carry no zone designator at all.
var timestampLayouts = []string{
	time.RFC3339Nano, // covers RFC3339 with and without fractional seconds
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp string. An unparsable value
// yields the zero time, which sorts as the oldest possible value; records
// are never dropped or rejected over a bad timestamp.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CreatedTime parses the post's creation timestamp.
func (p *Post) CreatedTime() time.Time {
	return ParseTimestamp(p.CreatedAt)
}

// CreatedTime parses the comment's creation timestamp.
func (c *Comment) CreatedTime() time.Time {
	return ParseTimestamp(c.CreatedAt)
}
