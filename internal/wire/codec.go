package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers.
const (
	locationX protowire.Number = 1
	locationY protowire.Number = 2

	walkLocations protowire.Number = 1
	walkLengths   protowire.Number = 2

	oneToOneOrigin      protowire.Number = 1
	oneToOneDestination protowire.Number = 2

	oneToAllOrigin protowire.Number = 1

	requestWalk     protowire.Number = 1
	requestOneToOne protowire.Number = 2
	requestOneToAll protowire.Number = 3
	requestReset    protowire.Number = 4

	responseStatus             protowire.Number = 1
	responseErrMsg             protowire.Number = 2
	responseShortestPathLength protowire.Number = 3
	responseTotalLength        protowire.Number = 4
)

// --- encoding ---

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func (l Location) appendTo(b []byte) []byte {
	b = appendInt32(b, locationX, l.X)
	return appendInt32(b, locationY, l.Y)
}

func (l Location) marshal() []byte {
	return l.appendTo(nil)
}

func (w *Walk) marshal() []byte {
	var b []byte
	for _, l := range w.Locations {
		b = appendMessage(b, walkLocations, l.marshal())
	}
	if len(w.Lengths) > 0 {
		var packed []byte
		for _, v := range w.Lengths {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = appendMessage(b, walkLengths, packed)
	}
	return b
}

// Marshal encodes r. Exactly one field should be set; if several are, the
// first in field order is encoded.
func (r *Request) Marshal() ([]byte, error) {
	switch {
	case r.Walk != nil:
		return appendMessage(nil, requestWalk, r.Walk.marshal()), nil
	case r.OneToOne != nil:
		var m []byte
		m = appendMessage(m, oneToOneOrigin, r.OneToOne.Origin.marshal())
		m = appendMessage(m, oneToOneDestination, r.OneToOne.Destination.marshal())
		return appendMessage(nil, requestOneToOne, m), nil
	case r.OneToAll != nil:
		m := appendMessage(nil, oneToAllOrigin, r.OneToAll.Origin.marshal())
		return appendMessage(nil, requestOneToAll, m), nil
	case r.Reset != nil:
		return appendMessage(nil, requestReset, nil), nil
	default:
		return nil, ErrUnknownRequest
	}
}

// Marshal encodes r.
func (r *Response) Marshal() []byte {
	var b []byte
	if r.Status != StatusUndefined {
		b = protowire.AppendTag(b, responseStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(r.Status)))
	}
	if r.ErrMsg != "" {
		b = protowire.AppendTag(b, responseErrMsg, protowire.BytesType)
		b = protowire.AppendString(b, r.ErrMsg)
	}
	b = appendUint64(b, responseShortestPathLength, r.ShortestPathLength)
	b = appendUint64(b, responseTotalLength, r.TotalLength)
	return b
}

// --- decoding ---

// fieldFunc decodes one field value from b and returns the bytes consumed. It
// returns -1 to ask the caller to skip an unknown field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(msg string, b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%s: %w", msg, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("%s field %d: %w", msg, num, err)
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%s field %d: %w", msg, num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("wire type %d, want varint", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("wire type %d, want length-delimited", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func unmarshalLocation(b []byte) (Location, error) {
	var l Location
	err := walkFields("location", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case locationX, locationY:
			v, n, err := consumeVarint(typ, b)
			if err != nil {
				return 0, err
			}
			if num == locationX {
				l.X = int32(v)
			} else {
				l.Y = int32(v)
			}
			return n, nil
		}
		return -1, nil
	})
	return l, err
}

func consumeLocation(typ protowire.Type, b []byte) (Location, int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return Location{}, 0, err
	}
	l, err := unmarshalLocation(v)
	return l, n, err
}

func unmarshalWalk(b []byte) (*Walk, error) {
	w := &Walk{}
	err := walkFields("walk", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case walkLocations:
			l, n, err := consumeLocation(typ, b)
			if err != nil {
				return 0, err
			}
			w.Locations = append(w.Locations, l)
			return n, nil
		case walkLengths:
			if typ == protowire.VarintType {
				v, n, err := consumeVarint(typ, b)
				if err != nil {
					return 0, err
				}
				w.Lengths = append(w.Lengths, uint32(v))
				return n, nil
			}
			packed, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return 0, protowire.ParseError(m)
				}
				w.Lengths = append(w.Lengths, uint32(v))
				packed = packed[m:]
			}
			return n, nil
		}
		return -1, nil
	})
	return w, err
}

func unmarshalOneToOne(b []byte) (*OneToOne, error) {
	o := &OneToOne{}
	err := walkFields("oneToOne", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case oneToOneOrigin, oneToOneDestination:
			l, n, err := consumeLocation(typ, b)
			if err != nil {
				return 0, err
			}
			if num == oneToOneOrigin {
				o.Origin = l
			} else {
				o.Destination = l
			}
			return n, nil
		}
		return -1, nil
	})
	return o, err
}

func unmarshalOneToAll(b []byte) (*OneToAll, error) {
	o := &OneToAll{}
	err := walkFields("oneToAll", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == oneToAllOrigin {
			l, n, err := consumeLocation(typ, b)
			if err != nil {
				return 0, err
			}
			o.Origin = l
			return n, nil
		}
		return -1, nil
	})
	return o, err
}

// UnmarshalRequest decodes a Request. When the oneof appears more than once
// the last occurrence wins, as in protobuf.
func UnmarshalRequest(b []byte) (*Request, error) {
	r := &Request{}
	err := walkFields("request", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case requestWalk, requestOneToOne, requestOneToAll, requestReset:
		default:
			return -1, nil
		}
		v, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		*r = Request{}
		switch num {
		case requestWalk:
			r.Walk, err = unmarshalWalk(v)
		case requestOneToOne:
			r.OneToOne, err = unmarshalOneToOne(v)
		case requestOneToAll:
			r.OneToAll, err = unmarshalOneToAll(v)
		case requestReset:
			r.Reset = &Reset{}
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UnmarshalResponse decodes a Response.
func UnmarshalResponse(b []byte) (*Response, error) {
	r := &Response{}
	err := walkFields("response", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case responseStatus, responseShortestPathLength, responseTotalLength:
			v, n, err := consumeVarint(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case responseStatus:
				r.Status = Status(int32(v))
			case responseShortestPathLength:
				r.ShortestPathLength = v
			case responseTotalLength:
				r.TotalLength = v
			}
			return n, nil
		case responseErrMsg:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			r.ErrMsg = string(v)
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
