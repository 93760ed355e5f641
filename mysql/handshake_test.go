package mysql

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/xnko/libdb"
	"github.com/xnko/libdb/internal/testutil"
)

func TestNativePasswordProofEmptyPassword(t *testing.T) {
	if got := nativePasswordProof("", []byte("01234567890123456789")); got != nil {
		t.Errorf("got %x, want nil", got)
	}
}

// TestNativePasswordProofVerifies recomputes the server-side check for
// mysql_native_password (SHA1(challenge || SHA1(SHA1(pw))) XOR proof ==
// SHA1(pw)) independently of nativePasswordProof's own code path.
func TestNativePasswordProofVerifies(t *testing.T) {
	challenge := []byte("abcdefghijklmnopqrst") // 20 bytes, as sent by the server
	password := "s3kr3t!"

	proof := nativePasswordProof(password, challenge)
	if len(proof) != sha1.Size {
		t.Fatalf("proof length %d, want %d", len(proof), sha1.Size)
	}

	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])
	h := sha1.New()
	h.Write(challenge)
	h.Write(stage2[:])
	scramble := h.Sum(nil)

	candidate := make([]byte, sha1.Size)
	for i := range candidate {
		candidate[i] = proof[i] ^ scramble[i]
	}
	if !bytes.Equal(candidate, stage1[:]) {
		t.Errorf("recovered stage1 = %x, want %x", candidate, stage1)
	}
}

func TestReadGreetingRejectsOldProtocol(t *testing.T) {
	greetingBody := append([]byte{9}, []byte("5.0.0\x00")...)
	greetingBody = append(greetingBody, make([]byte, 40)...) // padding, unparsed since we bail early
	pkt := append([]byte{byte(len(greetingBody)), 0, 0, 0}, greetingBody...)

	fc := testutil.NewFakeConn(pkt)
	c := &conn{netConn: fc, buf: newReadBuffer(fc)}

	if _, code := c.readGreeting(); code != libdb.NOT_SUPPORTED {
		t.Errorf("code = %v, want NOT_SUPPORTED", code)
	}
}
