package alarms

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/domain/command"
)

// Record field numbers. Never reuse a number.
const (
	fieldID           protowire.Number = 1
	fieldKind         protowire.Number = 2
	fieldTriggerTime  protowire.Number = 3
	fieldName         protowire.Number = 4
	fieldCommandID    protowire.Number = 5
	fieldTimestamp    protowire.Number = 6
	fieldIsTimeTagged protowire.Number = 7
	fieldParams       protowire.Number = 8
)

var (
	// errUnsupportedAction is returned for entries whose action cannot be stored.
	errUnsupportedAction = errors.New("unsupported alarm action")
	// errMalformedRecord is returned when a record payload does not decode.
	errMalformedRecord = errors.New("malformed alarm record")
)

// Record is the persisted form of an alarm entry. Callbacks are not stored:
// default actions are re-bound by Name, commands by Command.ID.
type Record struct {
	ID          uuid.UUID
	Kind        alarm.Kind
	TriggerTime uint32
	// Name is set for default actions.
	Name string
	// Command is set for time-tagged commands.
	Command command.Message
}

// RecordOf captures e for storage.
func RecordOf(e *alarm.Entry) (Record, error) {
	rec := Record{
		ID:          e.ID,
		Kind:        e.Kind(),
		TriggerTime: e.TriggerTime,
	}

	switch action := e.Action.(type) {
	case alarm.DefaultAction:
		rec.Name = action.Name
	case alarm.CommandAction:
		rec.Command = action.Command.Clone()
	default:
		return Record{}, fmt.Errorf("%w: %T", errUnsupportedAction, e.Action)
	}

	return rec, nil
}

// MarshalBinary encodes the record in protobuf wire format.
func (r *Record) MarshalBinary() ([]byte, error) {
	var b []byte

	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendBytes(b, r.ID[:])
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Kind))
	b = protowire.AppendTag(b, fieldTriggerTime, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, r.TriggerTime)

	switch r.Kind {
	case alarm.KindDefault:
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, r.Name)
	case alarm.KindTimeTaggedCommand:
		b = protowire.AppendTag(b, fieldCommandID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Command.ID))
		b = protowire.AppendTag(b, fieldTimestamp, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, r.Command.Timestamp)
		b = protowire.AppendTag(b, fieldIsTimeTagged, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(r.Command.IsTimeTagged))
		b = protowire.AppendTag(b, fieldParams, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Command.Params)
	default:
		return nil, fmt.Errorf("%w: kind %d", errUnsupportedAction, r.Kind)
	}

	return b, nil
}

// UnmarshalBinary decodes a record, skipping unknown fields.
func (r *Record) UnmarshalBinary(b []byte) error {
	*r = Record{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", errMalformedRecord, protowire.ParseError(n))
		}

		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 || len(v) != len(r.ID) {
				return fmt.Errorf("%w: id", errMalformedRecord)
			}

			copy(r.ID[:], v)

			n = m
		case num == fieldName && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			r.Name = v
			n = m
		case num == fieldParams && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if len(v) > 0 {
				r.Command.Params = append([]byte(nil), v...)
			}

			n = m
		case num == fieldTriggerTime && typ == protowire.Fixed32Type:
			r.TriggerTime, n = protowire.ConsumeFixed32(b)
		case num == fieldTimestamp && typ == protowire.Fixed32Type:
			r.Command.Timestamp, n = protowire.ConsumeFixed32(b)
		case num == fieldKind && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Kind = alarm.Kind(v)
		case num == fieldCommandID && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Command.ID = command.ID(v)
		case num == fieldIsTimeTagged && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Command.IsTimeTagged = protowire.DecodeBool(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", errMalformedRecord, num, protowire.ParseError(n))
		}

		b = b[n:]
	}

	if r.Kind != alarm.KindDefault && r.Kind != alarm.KindTimeTaggedCommand {
		return fmt.Errorf("%w: kind %d", errMalformedRecord, r.Kind)
	}

	return nil
}
