package memory

import (
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

func TestKeyedLocksSerialize(t *testing.T) {
	locks := newKeyedLocks(16)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same-key")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	gt.Equal(t, counter, 32)
}

func TestKeyedLocksEviction(t *testing.T) {
	locks := newKeyedLocks(4)

	for i := 0; i < 16; i++ {
		unlock := locks.Lock(string(rune('a' + i)))
		unlock()
	}

	gt.Equal(t, locks.order.Len(), 4)
	gt.Equal(t, len(locks.entries), 4)
}

func TestKeyedLocksHeldEntrySurvivesEviction(t *testing.T) {
	locks := newKeyedLocks(2)

	unlock := locks.Lock("held")
	for i := 0; i < 8; i++ {
		u := locks.Lock(string(rune('a' + i)))
		u()
	}

	// the held mutex was never evicted, so a second Lock on the same key
	// still blocks on it
	acquired := make(chan struct{})
	go func() {
		u := locks.Lock("held")
		u()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never released")
	}
}

func TestCursorCodecRoundTrip(t *testing.T) {
	codec := newCursorCodec([]byte("secret"))

	key := repository.ScanKey{
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC),
		ID:        model.MemoryID("b2c9d0e1-0000-0000-0000-000000000001"),
	}

	token := codec.Encode(key)
	decoded, err := codec.Decode(token)
	gt.NoError(t, err)
	gt.V(t, decoded.CreatedAt.Equal(key.CreatedAt)).Equal(true)
	gt.Equal(t, decoded.ID, key.ID)
}

func TestCursorCodecRejectsWrongSecret(t *testing.T) {
	key := repository.ScanKey{CreatedAt: time.Now().UTC(), ID: model.NewMemoryID()}

	token := newCursorCodec([]byte("secret-a")).Encode(key)
	_, err := newCursorCodec([]byte("secret-b")).Decode(token)
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindValidation)
}

func TestCursorCodecRejectsVersionSkew(t *testing.T) {
	codec := newCursorCodec([]byte("secret"))

	// a well-signed body with an unknown version is still rejected
	body := []byte(`{"v":99,"created_at":"2025-06-01T00:00:00Z","id":"x"}`)
	token := encodeRawCursor(codec, body)

	_, err := codec.Decode(token)
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindValidation)
}

func encodeRawCursor(c *cursorCodec, body []byte) string {
	encoding := base64.RawURLEncoding
	return encoding.EncodeToString(body) + "." + encoding.EncodeToString(c.sign(body))
}
