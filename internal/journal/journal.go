// Package journal appends completed turns to hourly zstd-compressed JSONL files.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tatianab/prairie/internal/models"
)

// Entry is one journal line.
type Entry struct {
	Turn       int             `json:"turn"`
	Timestamp  time.Time       `json:"timestamp"`
	Command    string          `json:"command"`
	Response   string          `json:"response"`
	Location   models.Position `json:"location"`
	Conclusion bool            `json:"conclusion,omitempty"`
}

// Writer rotates to a new file every UTC hour. Each record is written as
// its own zstd frame, so a file left unclosed by a crash stays readable and
// a later writer can append to it.
type Writer struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
}

func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Record appends turn as one complete frame.
func (w *Writer) Record(turn models.Turn, conclusion bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(Entry{
		Turn:       turn.ID,
		Timestamp:  turn.Timestamp,
		Command:    turn.Command,
		Response:   turn.Response,
		Location:   turn.Location,
		Conclusion: conclusion,
	})
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if w.enc == nil {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		w.enc = enc
	}
	if _, err := w.f.Write(w.enc.EncodeAll(b, nil)); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.closeLocked()
	if w.enc != nil {
		_ = w.enc.Close()
		w.enc = nil
	}
	return err
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	w.curHour = ""
	return err
}

// ReadFile decodes every entry in a journal file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var entries []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode journal line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
