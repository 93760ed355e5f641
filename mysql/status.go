package mysql

import (
	"encoding/binary"

	"github.com/xnko/libdb"
)

// readStatus decodes the 2-byte server status flags field found in OK
// and EOF packets.
func readStatus(b []byte) statusFlag {
	return statusFlag(b[0]) | statusFlag(b[1])<<8
}

// parseErrorPacket decodes an ERR packet (§4.2) into a MySQLError.
func parseErrorPacket(data []byte) *MySQLError {
	me := &MySQLError{Number: binary.LittleEndian.Uint16(data[1:3])}
	pos := 3
	if len(data) > 3 && data[3] == 0x23 { // '#' marker byte
		copy(me.SQLState[:], data[4:9])
		pos = 9
	}
	me.Message = string(data[pos:])
	return me
}

// handleErrorPacket records a server ERR on the connection and returns
// FAILED, the shared path used by every command that can fail (§7:
// "Server errors ... are stored on the most specific carrier").
func (c *conn) handleErrorPacket(data []byte) libdb.Code {
	me := parseErrorPacket(data)
	c.lastError = &libdb.Error{EngineCode: me.Number, SQLState: me.SQLState, Message: me.Message}
	return libdb.FAILED
}

// handleOkPacket parses an OK packet's affected_rows, last_insert_id,
// and status flags (§4.2), storing them on the connection.
func (c *conn) handleOkPacket(data []byte) {
	affectedRows, _, n := readLengthEncodedInteger(data[1:])
	insertID, _, m := readLengthEncodedInteger(data[1+n:])
	c.affectedRows = affectedRows
	c.insertID = insertID
	c.status = readStatus(data[1+n+m : 1+n+m+2])
}

// readFirstReply is the "first reply" routine of §4.5: it reads one
// packet after a query or exec and either records an OK/ERR outcome or
// materializes a Result from the column-count packet. statementID is 0
// for the text protocol, non-zero for a prepared statement's binary
// protocol.
func (c *conn) readFirstReply(statementID uint32) (*mysqlResult, libdb.Code) {
	data, err := c.readPacket()
	if err != nil {
		return nil, c.ioFailure(err)
	}

	switch data[0] {
	case iERR:
		return nil, c.handleErrorPacket(data)
	case iOK:
		c.handleOkPacket(data)
		return nil, libdb.OK
	}

	count, _, _ := readLengthEncodedInteger(data)
	return &mysqlResult{
		conn:         c,
		numColumns:   int(count),
		statementID:  statementID,
		rowsDone:     true,
		hasMore:      false,
	}, libdb.OK
}

// readUntilEOF discards packets until an EOF (or ERR) appears, used by
// discardResults and by Result.Close to re-synchronize the byte stream.
func (c *conn) readUntilEOF() libdb.Code {
	for {
		data, err := c.readPacket()
		if err != nil {
			return c.ioFailure(err)
		}
		switch data[0] {
		case iERR:
			return c.handleErrorPacket(data)
		case iEOF:
			if len(data) < 9 {
				// EOF payload: warnings(2) then status flags(2), after
				// the 1-byte 0xFE indicator. The client always
				// advertises PROTOCOL_41, so the 5-byte form is what
				// the server actually sends.
				if len(data) >= 5 {
					c.status = readStatus(data[3:5])
				}
				return libdb.OK
			}
		}
	}
}

// discardResults drains every remaining result-set after the current
// one, matching db_mysql_eat_result / the teacher's discardResults,
// updating affectedRows/insertID as each OK header is consumed.
func (c *conn) discardResults() libdb.Code {
	for c.status&statusMoreResultsExists != 0 {
		data, err := c.readPacket()
		if err != nil {
			return c.ioFailure(err)
		}
		switch data[0] {
		case iERR:
			return c.handleErrorPacket(data)
		case iOK:
			c.handleOkPacket(data)
			continue
		}
		// a further result-set: columns then rows, both terminated by EOF.
		if code := c.readUntilEOF(); code != libdb.OK {
			return code
		}
		if code := c.readUntilEOF(); code != libdb.OK {
			return code
		}
	}
	return libdb.OK
}
