package upstream

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ibgw/gateway/internal/mailbox"
)

func newTestSession() *Session {
	return NewSession(0, DefaultConfig("127.0.0.1", 4001), func(mailbox.Event) {}, zerolog.Nop())
}

func TestReadPooled_FitsInitialTier(t *testing.T) {
	s := newTestSession()
	msg := `{"type":"nextValidId","orderId":42}`

	raw, pooled, err := s.readPooled(strings.NewReader(msg))
	if err != nil {
		t.Fatalf("readPooled: %v", err)
	}
	if string(raw) != msg {
		t.Fatalf("raw = %q, want %q", raw, msg)
	}
	if cap(pooled) != mediumBufferSize {
		t.Fatalf("pooled cap = %d, want %d", cap(pooled), mediumBufferSize)
	}
	s.bufPool.Put(pooled)
}

func TestReadPooled_GrowsIntoNextTier(t *testing.T) {
	s := newTestSession()
	// Larger than the medium tier so readPooled must grow into large.
	payload := bytes.Repeat([]byte("a"), mediumBufferSize+1)
	msg := append([]byte(`{"type":"managedAccounts","accounts":["`), payload...)
	msg = append(msg, []byte(`"]}`)...)

	raw, pooled, err := s.readPooled(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("readPooled: %v", err)
	}
	if len(raw) != len(msg) {
		t.Fatalf("raw length = %d, want %d", len(raw), len(msg))
	}
	if cap(pooled) != largeBufferSize {
		t.Fatalf("pooled cap = %d, want %d (expected a grow into the large tier)", cap(pooled), largeBufferSize)
	}
	s.bufPool.Put(pooled)
}
