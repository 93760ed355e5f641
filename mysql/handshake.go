package mysql

import (
	"crypto/sha1"
	"encoding/binary"
	"net"
	"time"

	"github.com/xnko/libdb"
)

// dial opens the TCP stream and runs the initial handshake (§4.3):
// parse the server's greeting, reject protocol versions below 10,
// compute the mysql_native_password proof, and send the handshake
// response. On success c is ready for the command phase.
func dial(cfg Config, connectTimeout, timeout time.Duration) (*conn, *libdb.Error, libdb.Code) {
	nc, err := net.DialTimeout("tcp", cfg.Addr, connectTimeout)
	if err != nil {
		return nil, nil, libdb.CONNECT_FAILED
	}

	c := &conn{
		netConn:          nc,
		buf:              newReadBuffer(nc),
		timeout:          timeout,
		maxAllowedPacket: defaultMaxAllowedPacket,
	}

	authData, code := c.readGreeting()
	if code != libdb.OK {
		_ = nc.Close()
		return nil, nil, code
	}

	if err := c.writeHandshakeResponse(cfg, authData); err != nil {
		_ = nc.Close()
		return nil, nil, c.ioFailure(err)
	}

	data, rerr := c.readPacket()
	if rerr != nil {
		_ = nc.Close()
		return nil, nil, c.ioFailure(rerr)
	}
	if data[0] == iERR {
		me := parseErrorPacket(data)
		_ = nc.Close()
		return nil, &libdb.Error{EngineCode: me.Number, SQLState: me.SQLState, Message: me.Message}, libdb.FAILED
	}
	c.handleOkPacket(data)

	return c, nil, libdb.OK
}

// readGreeting parses the server's initial handshake packet (protocol
// 10): version string, connection id, the two challenge fragments
// (8 + up to 12 bytes either side of a reserved block), capability
// flags, and charset. It returns the 20-byte challenge used for the
// native-password proof.
func (c *conn) readGreeting() ([]byte, libdb.Code) {
	data, err := c.readPacket()
	if err != nil {
		return nil, c.ioFailure(err)
	}
	if data[0] == iERR {
		return nil, c.handleErrorPacket(data)
	}
	if data[0] < minProtocolVersion {
		return nil, libdb.NOT_SUPPORTED
	}

	pos := 1
	for data[pos] != 0 { // server version C-string
		pos++
	}
	pos++

	pos += 4 // connection id

	authData := make([]byte, 0, 20)
	authData = append(authData, data[pos:pos+8]...)
	pos += 8 + 1 // challenge part 1 + filler

	pos += 2 // capability flags (lower 2 bytes)

	if len(data) > pos {
		pos++      // charset
		pos += 2   // status flags
		pos += 2   // capability flags (upper 2 bytes)
		authLen := int(data[pos])
		pos++
		pos += 10 // reserved
		if authLen > 8 {
			rest := authLen - 8 - 1
			if rest > 0 && pos+rest <= len(data) {
				authData = append(authData, data[pos:pos+rest]...)
			}
		} else if pos+12 <= len(data) {
			authData = append(authData, data[pos:pos+12]...)
		}
	}

	return authData, libdb.OK
}

// nativePasswordProof computes SHA1(password) XOR SHA1(challenge ||
// SHA1(SHA1(password))), the mysql_native_password response (§4.3,
// §8). An empty password yields an empty proof.
func nativePasswordProof(password string, challenge []byte) []byte {
	if password == "" {
		return nil
	}
	pwHash := sha1.Sum([]byte(password))
	pwHashHash := sha1.Sum(pwHash[:])

	h := sha1.New()
	h.Write(challenge)
	h.Write(pwHashHash[:])
	scramble := h.Sum(nil)

	proof := make([]byte, len(pwHash))
	for i := range proof {
		proof[i] = pwHash[i] ^ scramble[i]
	}
	return proof
}

// writeHandshakeResponse sends the login packet (§4.3 step 4):
// capability flags, max packet size, charset, 23 reserved zero bytes,
// NUL-terminated username, the length-prefixed auth proof, the
// optional schema name, and the plugin name.
func (c *conn) writeHandshakeResponse(cfg Config, challenge []byte) error {
	proof := nativePasswordProof(cfg.Passwd, challenge)

	collation := cfg.Collation
	if collation == "" {
		collation = defaultCollation
	}
	charset, ok := collations[collation]
	if !ok {
		charset = collations[defaultCollation]
	}

	size := 4 + 4 + 4 + 1 + 23 + len(cfg.User) + 1 + 1 + len(proof) + len(cfg.DBName) + 1 + len("mysql_native_password") + 1
	data := make([]byte, size)

	binary.LittleEndian.PutUint32(data[4:8], uint32(loginClientFlags))
	binary.LittleEndian.PutUint32(data[8:12], uint32(maxPacketSize))
	data[12] = charset
	// data[13:36] is the 23-byte reserved block, left zero.

	pos := 36
	pos += copy(data[pos:], cfg.User)
	data[pos] = 0
	pos++

	data[pos] = byte(len(proof))
	pos++
	pos += copy(data[pos:], proof)

	pos += copy(data[pos:], cfg.DBName)
	data[pos] = 0
	pos++

	pos += copy(data[pos:], "mysql_native_password")
	data[pos] = 0

	c.sequence = 1
	return c.writePacket(data)
}
