package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
)

// maxBuffered caps the archive buffer; beyond it the oldest ticks are
// dropped until an upload succeeds.
const maxBuffered = 200_000

// Tick is one archived row: a pair's analytics at one publish tick.
type Tick struct {
	At        time.Time `json:"at"`
	Seq       uint64    `json:"seq"`
	Label     string    `json:"label"`
	UpMid     float64   `json:"up_mid"`
	UpSpread  float64   `json:"up_spread"`
	DownMid   *float64  `json:"down_mid,omitempty"`
	Edge      *float64  `json:"edge,omitempty"`
	Imbalance float64   `json:"imbalance"`
	ArbWindow bool      `json:"arb_window"`
}

// Archiver buffers ticks and uploads them as JSONL every interval, and once
// more on the final update.
//
// Objects are written to:
//
//	{prefix}/2026/01/02/{first-unix-ms}-{last-unix-ms}.jsonl
type Archiver struct {
	writer   domain.BlobWriter
	prefix   string
	interval time.Duration
	logger   *slog.Logger

	buf       []Tick
	lastFlush time.Time
}

// NewArchiver returns an Archiver uploading through writer.
func NewArchiver(writer domain.BlobWriter, prefix string, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		prefix:   prefix,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Name implements feed.Sink.
func (a *Archiver) Name() string { return "s3_archive" }

// Publish implements feed.Sink. It is only called from the publisher
// goroutine, so the buffer needs no lock.
func (a *Archiver) Publish(ctx context.Context, u feed.Update) error {
	if a.lastFlush.IsZero() {
		a.lastFlush = u.At
	}
	for _, pu := range u.Pairs {
		if pu.Available {
			a.buf = append(a.buf, tickOf(u, pu))
		}
	}
	if over := len(a.buf) - maxBuffered; over > 0 {
		a.logger.Warn("archive buffer full, dropping oldest ticks", slog.Int("dropped", over))
		a.buf = append(a.buf[:0], a.buf[over:]...)
	}

	if !u.Final && u.At.Sub(a.lastFlush) < a.interval {
		return nil
	}
	return a.flush(ctx, u.At)
}

// Buffered returns the number of ticks awaiting upload.
func (a *Archiver) Buffered() int { return len(a.buf) }

func (a *Archiver) flush(ctx context.Context, at time.Time) error {
	a.lastFlush = at
	if len(a.buf) == 0 {
		return nil
	}

	data, err := marshalJSONL(a.buf)
	if err != nil {
		return fmt.Errorf("pipeline: encode archive: %w", err)
	}
	key := archivePath(a.prefix, a.buf[0].At, a.buf[len(a.buf)-1].At)
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/x-ndjson"); err != nil {
		return fmt.Errorf("pipeline: archive %s: %w", key, err)
	}

	a.logger.Info("archived ticks",
		slog.String("path", key),
		slog.Int("ticks", len(a.buf)),
		slog.Int("bytes", len(data)),
	)
	a.buf = a.buf[:0]
	return nil
}

func tickOf(u feed.Update, pu feed.PairUpdate) Tick {
	a := pu.Analytics
	t := Tick{
		At:        u.At,
		Seq:       u.Seq,
		Label:     pu.Pair.Label,
		UpMid:     a.UpMid,
		UpSpread:  a.UpSpread,
		Imbalance: a.Imbalance,
		ArbWindow: a.ArbWindow,
	}
	if a.HasDown {
		down, edge := a.DownMid, a.Edge
		t.DownMid = &down
		t.Edge = &edge
	}
	return t
}

func archivePath(prefix string, first, last time.Time) string {
	first = first.UTC()
	return path.Join(prefix, first.Format("2006/01/02"),
		fmt.Sprintf("%d-%d.jsonl", first.UnixMilli(), last.UTC().UnixMilli()))
}

// marshalJSONL writes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ feed.Sink = (*Archiver)(nil)
