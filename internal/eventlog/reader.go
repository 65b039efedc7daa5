package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadAll parses every complete line in the event log at path, in file
// order. A trailing line with no final newline (a torn write observed
// mid-append) is silently dropped rather than returned as an error, per
// spec.md §4.4's "readers ... must re-parse from the last line break".
func ReadAll(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeLines(f)
}

func decodeLines(r io.Reader) ([]Event, error) {
	var events []Event
	var corrupt error
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if corrupt != nil {
			return events, corrupt
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			// A truncated tail line is expected under concurrent append;
			// anything else is a genuine corruption and is reported.
			corrupt = fmt.Errorf("eventlog: corrupt line: %w", err)
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("eventlog: scan: %w", err)
	}
	return events, nil
}

// Tailer incrementally reads newly-appended lines from an event log,
// tracking a byte offset so repeated calls to Poll only return events
// appended since the last call. It never holds the file open for writing
// and never blocks; callers poll it on their own schedule (the attach
// command's tail loop, or a monitor's websocket pump).
type Tailer struct {
	path   string
	offset int64
}

// NewTailer begins tailing path from its current end (so Poll only
// returns events written after the Tailer was constructed). Pass
// fromStart=true to instead replay the whole file on the first Poll.
func NewTailer(path string, fromStart bool) (*Tailer, error) {
	t := &Tailer{path: path}
	if fromStart {
		return t, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, err
	}
	t.offset = info.Size()
	return t, nil
}

// Poll returns any complete events appended since the previous call (or
// since construction, for the first call), advancing the internal offset
// only past complete lines so a torn write is retried on the next Poll.
func (t *Tailer) Poll() ([]Event, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	lastBreak := bytes.LastIndexByte(data, '\n')
	if lastBreak < 0 {
		// No complete line yet; wait for more data before advancing.
		return nil, nil
	}

	complete := data[:lastBreak+1]
	events, err := decodeLines(bytes.NewReader(complete))
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(complete))
	return events, nil
}
