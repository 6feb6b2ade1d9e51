// Package sink delivers interval snapshots: JSON lines, websocket and fan-out
package sink

import (
	"bytes"
	"encoding/json"
	"strconv"

	"keystat/internal/services/keystat/domain"
)

// Record is the wire form of one interval.
// Field names and the string typed t are consumed downstream as is
type Record struct {
	T      string `json:"t"`
	TZ     string `json:"tz"`
	Events Counts `json:"events"`
}

// Counts renders non-empty buckets as a JSON object in bucket order
type Counts []domain.Bucket

// MarshalJSON writes {"label":count,...} keeping bucket order
func (c Counts) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, x := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(x.Label)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(x.Count, 10))
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// NewRecord converts a snapshot to its wire form
func NewRecord(s domain.Snapshot) Record {
	return Record{T: strconv.FormatInt(s.Epoch, 10), TZ: s.Local, Events: Counts(s.Buckets)}
}

// Encode returns the JSON record for s without a trailing newline
func Encode(s domain.Snapshot) ([]byte, error) { return json.Marshal(NewRecord(s)) }
