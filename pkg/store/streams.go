package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatstream/pkg/logger"
	"chatstream/pkg/models"
)

// AppendStream records a new stream for a chat. Two keys are written: an
// append-only index row under the chat so streams list in start order, and
// a status doc under stream:<id> that UpdateStream rewrites in place.
func AppendStream(rec models.StreamRecord) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if rec.ID == "" || rec.Chat == "" {
		return fmt.Errorf("stream record needs id and chat")
	}
	now := time.Now().UTC().UnixNano()
	if rec.CreatedTS == 0 {
		rec.CreatedTS = now
	}
	if rec.UpdatedTS == 0 {
		rec.UpdatedTS = now
	}
	if rec.Status == "" {
		rec.Status = models.StreamActive
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s := atomic.AddUint64(&seq, 1)
	idxKey := fmt.Sprintf("chat:%s:stream:%020d-%06d", rec.Chat, rec.CreatedTS, s)
	if err := db.Set([]byte(idxKey), b, pebble.Sync); err != nil {
		logger.Error("append_stream_failed", "chat", rec.Chat, "stream", rec.ID, "error", err)
		return err
	}
	if err := db.Set([]byte("stream:"+rec.ID), b, pebble.Sync); err != nil {
		logger.Error("append_stream_status_failed", "stream", rec.ID, "error", err)
		return err
	}
	logger.Debug("stream_appended", "chat", rec.Chat, "stream", rec.ID)
	return nil
}

// UpdateStream rewrites the stream's status doc. The chat-scoped index row
// is append-only and keeps the record as it looked at start time.
func UpdateStream(rec models.StreamRecord) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if rec.ID == "" {
		return fmt.Errorf("stream record needs id")
	}
	rec.UpdatedTS = time.Now().UTC().UnixNano()
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := db.Set([]byte("stream:"+rec.ID), b, pebble.Sync); err != nil {
		logger.Error("update_stream_failed", "stream", rec.ID, "error", err)
		return err
	}
	logger.Debug("stream_updated", "stream", rec.ID, "status", rec.Status)
	return nil
}

// GetStream returns the current status doc for a stream ID.
func GetStream(streamID string) (models.StreamRecord, error) {
	var rec models.StreamRecord
	if db == nil {
		return rec, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte("stream:" + streamID))
	if err != nil {
		return rec, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ListStreams returns the stream records started for a chat in start order.
// Records reflect current status docs when available, falling back to the
// index row for pruned streams.
func ListStreams(chatID string) ([]models.StreamRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	rows, err := listPrefix("chat:" + chatID + ":stream:")
	if err != nil {
		return nil, err
	}
	out := make([]models.StreamRecord, 0, len(rows))
	for _, row := range rows {
		var rec models.StreamRecord
		if err := json.Unmarshal([]byte(row), &rec); err != nil {
			logger.Warn("stream_index_unmarshal_failed", "chat", chatID, "error", err)
			continue
		}
		if cur, err := GetStream(rec.ID); err == nil {
			rec = cur
		}
		out = append(out, rec)
	}
	return out, nil
}

// LatestActiveStream returns the most recently started stream for a chat
// that is still active. The bool reports whether one was found.
func LatestActiveStream(chatID string) (models.StreamRecord, bool, error) {
	var zero models.StreamRecord
	recs, err := ListStreams(chatID)
	if err != nil {
		return zero, false, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Status == models.StreamActive {
			return recs[i], true, nil
		}
	}
	return zero, false, nil
}

func listPrefix(prefix string) ([]string, error) {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
	}
	return out, iter.Error()
}
