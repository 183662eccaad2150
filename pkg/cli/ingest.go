package cli

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

type ingestRecord struct {
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	DedupeKey  string   `json:"dedupe_key"`
	ExternalID string   `json:"external_id"`
}

// autoDedupeKey derives a stable key from the memory content, so re-running
// the same ingest updates memories instead of duplicating them
func autoDedupeKey(text, source string) string {
	sum := sha256.Sum256([]byte(text + source))
	return hex.EncodeToString(sum[:])
}

// decodeIngestLine turns one input line into a store request. The lines
// format takes the whole line as text; jsonl expects one object per line.
// An explicit dedupe_key in the record wins over the derived one.
func decodeIngestLine(format string, raw []byte, source string, autoDedupe bool) (memory.StoreInput, error) {
	record := ingestRecord{}

	switch format {
	case "lines":
		record.Text = string(raw)
	case "jsonl":
		if err := json.Unmarshal(raw, &record); err != nil {
			return memory.StoreInput{}, goerr.Wrap(err, "broken input record")
		}
	default:
		return memory.StoreInput{}, goerr.New("unknown ingest format", goerr.V("format", format))
	}

	if record.Source == "" {
		record.Source = source
	}
	if autoDedupe && record.DedupeKey == "" {
		record.DedupeKey = autoDedupeKey(record.Text, record.Source)
	}

	return memory.StoreInput{
		Text:       record.Text,
		Tags:       record.Tags,
		Source:     record.Source,
		DedupeKey:  record.DedupeKey,
		ExternalID: record.ExternalID,
	}, nil
}

func ingestCommand() *cli.Command {
	var (
		cfg        config
		input      string
		source     string
		format     string
		autoDedupe bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to input file, or - for stdin",
			Value:       "-",
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "Input format: jsonl (one object per line) or lines (one memory per line)",
			Value:       "jsonl",
			Destination: &format,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Source label applied to records that carry none",
			Value:       "ingest",
			Destination: &source,
		},
		&cli.BoolFlag{
			Name:        "auto-dedupe",
			Usage:       "Derive a dedupe key from each record's text and source",
			Destination: &autoDedupe,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Store memories from a file, one record per line",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			if format != "jsonl" && format != "lines" {
				return goerr.New("unknown ingest format", goerr.V("format", format))
			}

			var reader io.Reader = os.Stdin
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return goerr.Wrap(err, "failed to open input file", goerr.V("path", input))
				}
				defer f.Close()
				reader = f
			}

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			totals := memory.IngestOutput{}
			records := 0
			var batch []memory.StoreInput
			flush := func() error {
				if len(batch) == 0 {
					return nil
				}
				out, err := uc.Ingest(ctx, batch)
				if err != nil {
					return err
				}
				totals.Inserted += out.Inserted
				totals.Overwritten += out.Overwritten
				// rebase batch-relative indexes onto the whole input
				batchStart := records - len(batch)
				for _, failure := range out.Failures {
					failure.Index += batchStart
					totals.Failures = append(totals.Failures, failure)
				}
				batch = batch[:0]
				return nil
			}

			scanner := bufio.NewScanner(reader)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			line := 0
			for scanner.Scan() {
				line++
				raw := scanner.Bytes()
				if len(strings.TrimSpace(string(raw))) == 0 {
					continue
				}

				item, err := decodeIngestLine(format, raw, source, autoDedupe)
				if err != nil {
					return goerr.Wrap(err, "failed to decode input", goerr.V("line", line))
				}

				batch = append(batch, item)
				records++
				if len(batch) == memory.MaxBatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read input")
			}
			if err := flush(); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "inserted: %d, overwritten: %d, failed: %d\n",
				totals.Inserted, totals.Overwritten, len(totals.Failures))
			for _, failure := range totals.Failures {
				fmt.Fprintf(c.Root().Writer, "  record %d: %s\n", failure.Index+1, failure.Error)
			}
			return nil
		},
	}
}
