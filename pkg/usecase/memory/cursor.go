package memory

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

const cursorVersion = 1

// cursorCodec signs pagination cursors so a client cannot forge or tamper
// with the resume position. Token layout: base64url(body) "." base64url(sig)
// where sig is HMAC-SHA256 of the body bytes.
type cursorCodec struct {
	secret []byte
}

type cursorBody struct {
	Version   int    `json:"v"`
	CreatedAt string `json:"created_at"`
	ID        string `json:"id"`
}

func newCursorCodec(secret []byte) *cursorCodec {
	return &cursorCodec{secret: secret}
}

func (c *cursorCodec) Encode(key repository.ScanKey) string {
	body, _ := json.Marshal(cursorBody{
		Version:   cursorVersion,
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339Nano),
		ID:        string(key.ID),
	})

	encoding := base64.RawURLEncoding
	return encoding.EncodeToString(body) + "." + encoding.EncodeToString(c.sign(body))
}

func (c *cursorCodec) Decode(token string) (*repository.ScanKey, error) {
	encoding := base64.RawURLEncoding

	bodyPart, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "missing signature")
	}

	body, err := encoding.DecodeString(bodyPart)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "broken cursor encoding")
	}
	sig, err := encoding.DecodeString(sigPart)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "broken cursor signature encoding")
	}
	if !hmac.Equal(sig, c.sign(body)) {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "cursor signature mismatch")
	}

	var parsed cursorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "broken cursor body")
	}
	if parsed.Version != cursorVersion {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "unsupported cursor version",
			goerr.V("version", parsed.Version))
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parsed.CreatedAt)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidCursor, "broken cursor timestamp")
	}

	return &repository.ScanKey{
		CreatedAt: createdAt,
		ID:        model.MemoryID(parsed.ID),
	}, nil
}

func (c *cursorCodec) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
