package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrNilPayload       = errors.New("event has no payload")
	ErrInvalidTimestamp = errors.New("event timestamp is not finite")
	ErrMissingType      = errors.New("line has no type")
	ErrUnknownType      = errors.New("line has unknown type")
)

// lineHeader holds the common keys of a JSON line.
type lineHeader struct {
	BucketT *float64  `json:"bucket_t"`
	T       float64   `json:"t"`
	Sym     string    `json:"sym"`
	Type    EventType `json:"type"`
	I       int       `json:"i"`
	Chart   string    `json:"chart"`
}

// MarshalJSON encodes the event as a single flat JSON object with a fixed
// key order: bucket_t (unified only), t, sym, type, i, payload fields, chart.
func (e Event) MarshalJSON() ([]byte, error) {
	return e.AppendJSON(nil)
}

// AppendJSON appends the encoded event to dst.
func (e Event) AppendJSON(dst []byte) ([]byte, error) {
	if e.Payload == nil {
		return dst, ErrNilPayload
	}
	if math.IsNaN(e.Timestamp) || math.IsInf(e.Timestamp, 0) {
		return dst, ErrInvalidTimestamp
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return dst, fmt.Errorf("marshal %s payload: %w", e.Type(), err)
	}
	sym, _ := json.Marshal(e.Symbol)
	chart, _ := json.Marshal(e.SourceID)

	dst = append(dst, '{')
	if e.BucketT != nil {
		dst = append(dst, `"bucket_t":`...)
		dst = strconv.AppendFloat(dst, *e.BucketT, 'f', -1, 64)
		dst = append(dst, ',')
	}
	dst = append(dst, `"t":`...)
	dst = strconv.AppendFloat(dst, e.Timestamp, 'f', -1, 64)
	dst = append(dst, `,"sym":`...)
	dst = append(dst, sym...)
	dst = append(dst, `,"type":"`...)
	dst = append(dst, e.Type()...)
	dst = append(dst, `","i":`...)
	dst = strconv.AppendInt(dst, int64(e.BarIndex), 10)
	// payload is "{...}"; splice its members in place.
	if len(payload) > 2 {
		dst = append(dst, ',')
		dst = append(dst, payload[1:len(payload)-1]...)
	}
	dst = append(dst, `,"chart":`...)
	dst = append(dst, chart...)
	dst = append(dst, '}')
	return dst, nil
}

// UnmarshalJSON decodes a line produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := DecodeLine(data)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

// DecodeLine parses one JSON line into an Event.
func DecodeLine(line []byte) (Event, error) {
	var h lineHeader
	if err := json.Unmarshal(line, &h); err != nil {
		return Event{}, err
	}
	if h.Type == "" {
		return Event{}, ErrMissingType
	}
	payload, ok := NewPayload(h.Type)
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}
	if err := json.Unmarshal(line, payload); err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", h.Type, err)
	}
	return Event{
		Timestamp: h.T,
		Symbol:    h.Sym,
		SourceID:  h.Chart,
		BarIndex:  h.I,
		BucketT:   h.BucketT,
		Payload:   payload,
	}, nil
}
