package checkpoint

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"cyclegan-forge/internal/model"
)

// Protobuf field numbers. The layout is
//
//	message Snapshot { string model = 1; int64 step = 2; string run_id = 3; repeated Param params = 4; }
//	message Param    { string name = 1; repeated int64 shape = 2; repeated float data = 3; }
//
// with packed repeated scalars.
const (
	fieldModel  protowire.Number = 1
	fieldStep   protowire.Number = 2
	fieldRunID  protowire.Number = 3
	fieldParams protowire.Number = 4

	fieldParamName  protowire.Number = 1
	fieldParamShape protowire.Number = 2
	fieldParamData  protowire.Number = 3
)

// Encode serializes s in protobuf wire format.
func Encode(s Snapshot) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldModel, protowire.BytesType)
	b = protowire.AppendString(b, s.Model)
	b = protowire.AppendTag(b, fieldStep, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Step))
	if s.RunID != "" {
		b = protowire.AppendTag(b, fieldRunID, protowire.BytesType)
		b = protowire.AppendString(b, s.RunID)
	}
	for _, p := range s.Params {
		b = protowire.AppendTag(b, fieldParams, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeParam(p))
	}
	return b
}

func encodeParam(p model.Param) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldParamName, protowire.BytesType)
	b = protowire.AppendString(b, p.Name)

	var shape []byte
	for _, d := range p.Shape {
		shape = protowire.AppendVarint(shape, uint64(d))
	}
	b = protowire.AppendTag(b, fieldParamShape, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)

	data := make([]byte, 0, 4*len(p.Data))
	for _, v := range p.Data {
		data = protowire.AppendFixed32(data, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, fieldParamData, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b
}

// Decode parses a snapshot produced by Encode. Unknown fields are skipped.
func Decode(b []byte) (Snapshot, error) {
	var s Snapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Snapshot{}, fmt.Errorf("checkpoint: tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldModel && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("checkpoint: model: %w", protowire.ParseError(n))
			}
			s.Model = v
			b = b[n:]
		case num == fieldStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("checkpoint: step: %w", protowire.ParseError(n))
			}
			s.Step = int(v)
			b = b[n:]
		case num == fieldRunID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("checkpoint: run id: %w", protowire.ParseError(n))
			}
			s.RunID = v
			b = b[n:]
		case num == fieldParams && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("checkpoint: param: %w", protowire.ParseError(n))
			}
			p, err := decodeParam(v)
			if err != nil {
				return Snapshot{}, err
			}
			s.Params = append(s.Params, p)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("checkpoint: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return s, nil
}

func decodeParam(b []byte) (model.Param, error) {
	var p model.Param
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("checkpoint: param tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, fmt.Errorf("checkpoint: param field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return p, fmt.Errorf("checkpoint: param field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldParamName:
			p.Name = string(v)
		case fieldParamShape:
			for len(v) > 0 {
				d, n := protowire.ConsumeVarint(v)
				if n < 0 {
					return p, fmt.Errorf("checkpoint: shape: %w", protowire.ParseError(n))
				}
				p.Shape = append(p.Shape, int(d))
				v = v[n:]
			}
		case fieldParamData:
			if len(v)%4 != 0 {
				return p, errors.New("checkpoint: data length is not a multiple of 4")
			}
			p.Data = make([]float32, 0, len(v)/4)
			for len(v) > 0 {
				bits, n := protowire.ConsumeFixed32(v)
				if n < 0 {
					return p, fmt.Errorf("checkpoint: data: %w", protowire.ParseError(n))
				}
				p.Data = append(p.Data, math.Float32frombits(bits))
				v = v[n:]
			}
		}
	}
	return p, nil
}
