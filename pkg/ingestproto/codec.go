package ingestproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Decoder reads framed records from an underlying stream, one Decode call
// per record.
type Decoder struct {
	r io.Reader
}

// NewDecoder wraps r (typically a buffered net.Conn) in a Decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads and parses the next record. It returns io.EOF (unwrapped)
// when the stream ends cleanly between records.
func (d *Decoder) Decode() (Packet, error) {
	var header [6]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return Packet{}, err
	}
	typ := Type(binary.BigEndian.Uint16(header[0:2]))
	length := binary.BigEndian.Uint32(header[2:6])
	if length > MaxPayloadSize {
		return Packet{}, ErrOversizedPayload
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return decodePayload(typ, payload)
}

func decodePayload(typ Type, payload []byte) (Packet, error) {
	br := &byteReader{b: payload}
	var pkt Packet
	pkt.Type = typ

	var err error
	switch typ {
	case TypeLogHeader:
		pkt.LogHeader, err = decodeLogHeader(br)
	case TypeLogEntry:
		pkt.LogEntry, err = decodeLogEntry(br)
	case TypeProcessFlow:
		pkt.ProcessFlow, err = decodeProcessFlow(br)
	case TypeWatch:
		pkt.Watch, err = decodeWatch(br)
	case TypeStream:
		pkt.Stream, err = decodeStream(br)
	case TypeControlCommand:
		pkt.ControlCommand, err = decodeControlCommand(br)
	case TypeAuthToken:
		pkt.AuthToken, err = decodeAuthToken(br)
	default:
		return Packet{}, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	if err != nil {
		return Packet{}, err
	}
	if !br.exhausted() {
		return Packet{}, fmt.Errorf("%w: trailing bytes", ErrMalformedFrame)
	}
	return pkt, nil
}

func decodeLogHeader(r *byteReader) (*LogHeaderPacket, error) {
	appName, err := r.lpString()
	if err != nil {
		return nil, err
	}
	return &LogHeaderPacket{AppName: appName}, nil
}

func decodeLogEntry(r *byteReader) (*LogEntryPacket, error) {
	level, err := r.uint8()
	if err != nil {
		return nil, err
	}
	kind, err := r.lpString()
	if err != nil {
		return nil, err
	}
	session, err := r.lpString()
	if err != nil {
		return nil, err
	}
	title, err := r.lpString()
	if err != nil {
		return nil, err
	}
	host, err := r.lpString()
	if err != nil {
		return nil, err
	}
	pid, err := r.int32()
	if err != nil {
		return nil, err
	}
	tid, err := r.int32()
	if err != nil {
		return nil, err
	}
	ts, err := r.timestampMicros()
	if err != nil {
		return nil, err
	}
	hasColor, err := r.bool()
	if err != nil {
		return nil, err
	}
	var color uint32
	if hasColor {
		color, err = r.uint32()
		if err != nil {
			return nil, err
		}
	}
	payload, err := r.optionalBytes()
	if err != nil {
		return nil, err
	}
	ctx, err := r.optionalStringMap()
	if err != nil {
		return nil, err
	}
	return &LogEntryPacket{
		Level: level, Kind: kind, SessionName: session, Title: title, HostName: host,
		ProcessID: pid, ThreadID: tid, Timestamp: ts, HasColor: hasColor, Color: color,
		Payload: payload, Ctx: ctx,
	}, nil
}

func decodeProcessFlow(r *byteReader) (*ProcessFlowPacket, error) {
	subtypeRaw, err := r.uint8()
	if err != nil {
		return nil, err
	}
	title, err := r.lpString()
	if err != nil {
		return nil, err
	}
	session, err := r.lpString()
	if err != nil {
		return nil, err
	}
	host, err := r.lpString()
	if err != nil {
		return nil, err
	}
	pid, err := r.int32()
	if err != nil {
		return nil, err
	}
	tid, err := r.int32()
	if err != nil {
		return nil, err
	}
	ts, err := r.timestampMicros()
	if err != nil {
		return nil, err
	}
	return &ProcessFlowPacket{
		Subtype: ProcessFlowSubtype(subtypeRaw), MethodTitle: title,
		SessionName: session, HostName: host, ProcessID: pid, ThreadID: tid, Timestamp: ts,
	}, nil
}

func decodeWatch(r *byteReader) (*WatchPacket, error) {
	name, err := r.lpString()
	if err != nil {
		return nil, err
	}
	value, err := r.lpString()
	if err != nil {
		return nil, err
	}
	wtype, err := r.lpString()
	if err != nil {
		return nil, err
	}
	ts, err := r.timestampMicros()
	if err != nil {
		return nil, err
	}
	group, err := r.lpString()
	if err != nil {
		return nil, err
	}
	return &WatchPacket{Name: name, Value: value, WatchType: wtype, Timestamp: ts, Group: group}, nil
}

func decodeStream(r *byteReader) (*StreamPacket, error) {
	channel, err := r.lpString()
	if err != nil {
		return nil, err
	}
	data, err := r.bytes4()
	if err != nil {
		return nil, err
	}
	ts, err := r.timestampMicros()
	if err != nil {
		return nil, err
	}
	streamType, err := r.lpString()
	if err != nil {
		return nil, err
	}
	group, err := r.lpString()
	if err != nil {
		return nil, err
	}
	return &StreamPacket{Channel: channel, Data: data, Timestamp: ts, StreamType: streamType, Group: group}, nil
}

func decodeAuthToken(r *byteReader) (*AuthTokenPacket, error) {
	tok, err := r.bytes4()
	if err != nil {
		return nil, err
	}
	return &AuthTokenPacket{Token: tok}, nil
}

func decodeControlCommand(r *byteReader) (*ControlCommandPacket, error) {
	kind, err := r.uint8()
	if err != nil {
		return nil, err
	}
	roomID, err := r.lpString()
	if err != nil {
		return nil, err
	}
	return &ControlCommandPacket{Kind: ControlKind(kind), RoomID: roomID}, nil
}

// Encode writes pkt as one framed record to w. It is used by the producer
// test harness; the server itself only decodes.
func Encode(w io.Writer, pkt Packet) error {
	var buf bytes.Buffer
	bw := &byteWriter{buf: &buf}

	switch pkt.Type {
	case TypeLogHeader:
		bw.lpString(pkt.LogHeader.AppName)
	case TypeLogEntry:
		p := pkt.LogEntry
		bw.uint8(p.Level)
		bw.lpString(p.Kind)
		bw.lpString(p.SessionName)
		bw.lpString(p.Title)
		bw.lpString(p.HostName)
		bw.int32(p.ProcessID)
		bw.int32(p.ThreadID)
		bw.timestampMicros(p.Timestamp)
		bw.bool(p.HasColor)
		if p.HasColor {
			bw.uint32(p.Color)
		}
		bw.optionalBytes(p.Payload)
		bw.optionalStringMap(p.Ctx)
	case TypeProcessFlow:
		p := pkt.ProcessFlow
		bw.uint8(uint8(p.Subtype))
		bw.lpString(p.MethodTitle)
		bw.lpString(p.SessionName)
		bw.lpString(p.HostName)
		bw.int32(p.ProcessID)
		bw.int32(p.ThreadID)
		bw.timestampMicros(p.Timestamp)
	case TypeWatch:
		p := pkt.Watch
		bw.lpString(p.Name)
		bw.lpString(p.Value)
		bw.lpString(p.WatchType)
		bw.timestampMicros(p.Timestamp)
		bw.lpString(p.Group)
	case TypeStream:
		p := pkt.Stream
		bw.lpString(p.Channel)
		bw.bytes4(p.Data)
		bw.timestampMicros(p.Timestamp)
		bw.lpString(p.StreamType)
		bw.lpString(p.Group)
	case TypeControlCommand:
		bw.uint8(uint8(pkt.ControlCommand.Kind))
		bw.lpString(pkt.ControlCommand.RoomID)
	case TypeAuthToken:
		bw.bytes4(pkt.AuthToken.Token)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, pkt.Type)
	}

	var header [6]byte
	binary.BigEndian.PutUint16(header[0:2], uint16(pkt.Type))
	binary.BigEndian.PutUint32(header[2:6], uint32(buf.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func microsToTime(us uint64) time.Time {
	return time.UnixMicro(int64(us)).UTC()
}

func timeToMicros(t time.Time) uint64 {
	return uint64(t.UnixMicro())
}
