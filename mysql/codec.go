package mysql

import (
	"encoding/binary"

	"github.com/xnko/libdb"
)

/******************************************************************************
*                           Packet envelope (§4.1)                            *
******************************************************************************/

// readPacket reads one logical MySQL packet, transparently reassembling
// a payload that was split across several physical packets because it
// was at least (2^24)-1 bytes long (the supplemented feature noted
// in SPEC_FULL.md §3, carried over from the teacher's readPacket).
func (c *conn) readPacket() ([]byte, error) {
	var prevData []byte
	for {
		header, err := c.buf.readNext(4)
		if err != nil {
			return nil, err
		}

		pktLen := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)
		seq := header[3]
		if seq != c.sequence {
			if seq > c.sequence {
				return nil, ErrPktSyncMul
			}
			return nil, ErrPktSync
		}
		c.sequence++

		if pktLen == 0 {
			if prevData == nil {
				return nil, ErrMalformPkt
			}
			return prevData, nil
		}

		body, err := c.buf.readNext(pktLen)
		if err != nil {
			return nil, err
		}

		if pktLen < maxPacketSize {
			if prevData == nil {
				// copy out: body aliases the shared read buffer.
				out := make([]byte, len(body))
				copy(out, body)
				return out, nil
			}
			return append(prevData, body...), nil
		}

		prevData = append(prevData, body...)
	}
}

// writePacket frames data (a full packet buffer, header bytes included
// at data[:4]) and sends it, splitting into maxPacketSize chunks as
// needed (§4.1, supplemented feature in SPEC_FULL.md §3).
func (c *conn) writePacket(data []byte) error {
	pktLen := len(data) - 4
	for {
		var size int
		if pktLen >= maxPacketSize {
			data[0], data[1], data[2] = 0xff, 0xff, 0xff
			size = maxPacketSize
		} else {
			data[0] = byte(pktLen)
			data[1] = byte(pktLen >> 8)
			data[2] = byte(pktLen >> 16)
			size = pktLen
		}
		data[3] = c.sequence

		n, err := c.buf.writeWithDeadline(data[:4+size])
		if err != nil {
			return err
		}
		if n != 4+size {
			return ErrMalformPkt
		}
		c.sequence++
		if size != maxPacketSize {
			return nil
		}
		pktLen -= size
		data = data[size:]
	}
}

/******************************************************************************
*                      Length-encoded integers and strings                    *
******************************************************************************/

// readLengthEncodedInteger decodes a lenenc int per §4.1. It returns the
// value, whether the first byte was the NULL sentinel (0xFB standalone),
// and the number of bytes consumed.
func readLengthEncodedInteger(b []byte) (value uint64, isNull bool, consumed int) {
	if len(b) == 0 {
		return 0, false, 0
	}
	switch b[0] {
	case 0xfc:
		return uint64(b[1]) | uint64(b[2])<<8, false, 3
	case 0xfd:
		return uint64(b[1]) | uint64(b[2])<<8 | uint64(b[3])<<16, false, 4
	case 0xfe:
		return binary.LittleEndian.Uint64(b[1:9]), false, 9
	case 0xfb:
		return 0, true, 1
	default:
		return uint64(b[0]), false, 1
	}
}

// appendLengthEncodedInteger encodes v into the narrowest lenenc tier
// and appends it to buf.
func appendLengthEncodedInteger(buf []byte, v uint64) []byte {
	switch {
	case v < 251:
		return append(buf, byte(v))
	case v < 1<<16:
		return append(buf, 0xfc, byte(v), byte(v>>8))
	case v < 1<<24:
		return append(buf, 0xfd, byte(v), byte(v>>8), byte(v>>16))
	default:
		return append(buf, 0xfe, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
			byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
	}
}

// readLengthEncodedString decodes a lenenc string: a lenenc int length
// followed by that many raw bytes. The returned slice is a fresh copy.
func readLengthEncodedString(b []byte) (data []byte, isNull bool, consumed int, err error) {
	num, isNull, n := readLengthEncodedInteger(b)
	if isNull {
		return nil, true, n, nil
	}
	if n+int(num) > len(b) {
		return nil, false, n, ErrMalformPkt
	}
	out := make([]byte, num)
	copy(out, b[n:n+int(num)])
	return out, false, n + int(num), nil
}

// skipLengthEncodedString advances past a lenenc string without copying
// it, for fields the caller discards (e.g. catalog, schema, org_table).
func skipLengthEncodedString(b []byte) (consumed int, err error) {
	num, isNull, n := readLengthEncodedInteger(b)
	if isNull {
		return n, nil
	}
	if n+int(num) > len(b) {
		return n, ErrMalformPkt
	}
	return n + int(num), nil
}

/******************************************************************************
*                               Type detection                                *
******************************************************************************/

// DetectType maps a MYSQL_TYPE_* field type onto the engine-agnostic
// libdb.Type per §4.1's table: tiny→byte, short→short, long/int24→int,
// float→float, double→double, longlong→int64, year→short, date→date,
// time→time, datetime→datetime, timestamp→timestamp,
// varchar/var_string/string→string, everything else→binary.
func DetectType(t fieldType) libdb.Type {
	switch t {
	case fieldTypeTiny:
		return libdb.TypeByte
	case fieldTypeShort, fieldTypeYear:
		return libdb.TypeShort
	case fieldTypeLong, fieldTypeInt24:
		return libdb.TypeInt
	case fieldTypeFloat:
		return libdb.TypeFloat
	case fieldTypeDouble:
		return libdb.TypeDouble
	case fieldTypeLongLong:
		return libdb.TypeInt64
	case fieldTypeDate, fieldTypeNewDate:
		return libdb.TypeDate
	case fieldTypeTime:
		return libdb.TypeTime
	case fieldTypeDateTime:
		return libdb.TypeDateTime
	case fieldTypeTimestamp:
		return libdb.TypeTimestamp
	case fieldTypeVarChar, fieldTypeVarString, fieldTypeString:
		return libdb.TypeString
	default:
		return libdb.TypeBinary
	}
}

/******************************************************************************
*                              Command packets                                *
******************************************************************************/

func (c *conn) writeCommandPacket(command byte) error {
	c.sequence = 0
	data, err := c.buf.takeSmallBuffer(4 + 1)
	if err != nil {
		return err
	}
	data[4] = command
	return c.writePacket(data)
}

func (c *conn) writeCommandPacketStr(command byte, arg string) error {
	c.sequence = 0
	data, err := c.buf.takeSmallBuffer(4 + 1 + len(arg))
	if err != nil {
		data = make([]byte, 4+1+len(arg))
	}
	data[4] = command
	copy(data[5:], arg)
	return c.writePacket(data)
}

func (c *conn) writeCommandPacketUint32(command byte, arg uint32) error {
	c.sequence = 0
	data, err := c.buf.takeSmallBuffer(4 + 1 + 4)
	if err != nil {
		return err
	}
	data[4] = command
	binary.LittleEndian.PutUint32(data[5:9], arg)
	return c.writePacket(data)
}
