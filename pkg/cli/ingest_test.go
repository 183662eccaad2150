package cli

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestDecodeIngestLine(t *testing.T) {
	in, err := decodeIngestLine("lines", []byte("buy milk"), "notes", false)
	gt.NoError(t, err)
	gt.Equal(t, in.Text, "buy milk")
	gt.Equal(t, in.Source, "notes")
	gt.Equal(t, in.DedupeKey, "")

	in, err = decodeIngestLine("jsonl", []byte(`{"text":"buy milk","tags":["errand"],"source":"inbox"}`), "notes", false)
	gt.NoError(t, err)
	gt.Equal(t, in.Text, "buy milk")
	gt.Equal(t, in.Tags, []string{"errand"})
	gt.Equal(t, in.Source, "inbox")

	_, err = decodeIngestLine("jsonl", []byte("not json"), "notes", false)
	gt.Error(t, err)

	_, err = decodeIngestLine("csv", []byte("buy milk"), "notes", false)
	gt.Error(t, err)
}

func TestDecodeIngestLineAutoDedupe(t *testing.T) {
	// the derived key depends only on text and source, not the input format
	fromLines, err := decodeIngestLine("lines", []byte("buy milk"), "notes", true)
	gt.NoError(t, err)
	fromJSON, err := decodeIngestLine("jsonl", []byte(`{"text":"buy milk"}`), "notes", true)
	gt.NoError(t, err)
	gt.Equal(t, fromLines.DedupeKey, fromJSON.DedupeKey)
	gt.Equal(t, len(fromLines.DedupeKey), 64)

	other, err := decodeIngestLine("lines", []byte("buy milk"), "other", true)
	gt.NoError(t, err)
	gt.V(t, other.DedupeKey).NotEqual(fromLines.DedupeKey)

	// an explicit key wins over the derived one
	explicit, err := decodeIngestLine("jsonl", []byte(`{"text":"buy milk","dedupe_key":"todo:milk"}`), "notes", true)
	gt.NoError(t, err)
	gt.Equal(t, explicit.DedupeKey, "todo:milk")
}
