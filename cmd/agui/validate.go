package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/encoding/sse"
)

// validateCmd: agui validate [file]
func newValidateCmd(g *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a recorded event stream",
		Long: `Validate reads one run's events, either as a text/event-stream capture or
as JSON lines, and checks that they form a valid sequence. The format is
detected from the first byte unless --format is given. Without a file, or
with "-", the stream is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			evts, err := readEvents(in, format)
			if err != nil {
				return err
			}
			if err := events.ValidateSequence(evts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d events\n", len(evts))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, sse or jsonl")
	return cmd
}

func readEvents(r io.Reader, format string) ([]events.Event, error) {
	br := bufio.NewReader(r)
	if format == "auto" {
		format = "sse"
		for {
			b, err := br.Peek(1)
			if err != nil {
				break
			}
			if b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n' {
				_, _ = br.ReadByte()
				continue
			}
			if b[0] == '{' {
				format = "jsonl"
			}
			break
		}
	}

	switch format {
	case "sse":
		return readSSE(br)
	case "jsonl":
		return readJSONLines(br)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func readSSE(r io.Reader) ([]events.Event, error) {
	var out []events.Event
	reader := sse.NewReader(r)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if frame.Data == "" {
			continue
		}
		event, err := events.EventFromJSON([]byte(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(out), err)
		}
		out = append(out, event)
	}
}

func readJSONLines(r io.Reader) ([]events.Event, error) {
	var out []events.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		event, err := events.EventFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, event)
	}
	return out, scanner.Err()
}
