package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatstream/pkg/logger"
	"chatstream/pkg/models"
	"chatstream/pkg/utils"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq reduces key collisions when multiple writes share the same
// nanosecond timestamp.
var seq uint64

// Key namespaces:
//
//	chat:<id>:meta                      chat metadata JSON
//	chat:<id>:msg:<padded-ns>-<seq>     message versions in arrival order
//	chat:<id>:stream:<padded-ns>-<seq>  stream records in start order
//	version:msg:<id>:<padded-ns>-<seq>  versions indexed by message id
//	stream:<id>                         current stream record document
func msgKey(chatID string, ts int64, s uint64) string {
	return fmt.Sprintf("chat:%s:msg:%020d-%06d", chatID, ts, s)
}

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	dbPath = ""
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// SaveMessage appends a message version to a chat by inserting a new key
// with a sortable timestamp prefix, so messages list in arrival order. The
// version is also indexed by message id so a message's history can be
// looked up. data must be the marshaled message JSON.
func SaveMessage(chatID, msgID, data string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	key := msgKey(chatID, ts, s)

	if err := db.Set([]byte(key), []byte(data), pebble.Sync); err != nil {
		logger.Error("save_message_failed", "chat", chatID, "key", key, "error", err)
		return err
	}
	logger.Debug("message_saved", "chat", chatID, "key", key, "msg_id", msgID)

	if msgID != "" {
		idxKey := fmt.Sprintf("version:msg:%s:%020d-%06d", msgID, ts, s)
		if err := db.Set([]byte(idxKey), []byte(data), pebble.Sync); err != nil {
			logger.Error("save_message_index_failed", "key", idxKey, "error", err)
			return err
		}
	}
	return nil
}

// ListMessages returns all message versions for a chat in insertion order.
func ListMessages(chatID string, limit ...int) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:" + chatID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	max := -1
	if len(limit) > 0 {
		max = limit[0]
	}
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, iter.Error()
}

// ListMessageVersions returns all stored versions for a given message ID
// in chronological order.
func ListMessageVersions(msgID string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("version:msg:" + msgID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
	}
	return out, iter.Error()
}

// GetLatestMessage returns the latest version for a message ID or an
// error if none found.
func GetLatestMessage(msgID string) (string, error) {
	vers, err := ListMessageVersions(msgID)
	if err != nil {
		return "", err
	}
	if len(vers) == 0 {
		return "", fmt.Errorf("message not found: %s", msgID)
	}
	return vers[len(vers)-1], nil
}

// SaveChat stores chat metadata under the chat's reserved meta key.
func SaveChat(chatID, data string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("chat:" + chatID + ":meta")
	if err := db.Set(key, []byte(data), pebble.Sync); err != nil {
		logger.Error("save_chat_failed", "chat", chatID, "error", err)
		return err
	}
	logger.Debug("chat_saved", "chat", chatID)
	return nil
}

// GetChat returns the stored chat metadata JSON for a given chat ID.
func GetChat(chatID string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte("chat:" + chatID + ":meta"))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// SoftDeleteChat marks the chat as deleted and appends a tombstone message.
func SoftDeleteChat(chatID, actor string) error {
	s, err := GetChat(chatID)
	if err != nil {
		logger.Error("soft_delete_load_failed", "chat", chatID, "error", err)
		return err
	}
	var ch models.Chat
	if err := json.Unmarshal([]byte(s), &ch); err != nil {
		logger.Error("soft_delete_unmarshal_failed", "chat", chatID, "error", err)
		return err
	}
	ch.Deleted = true
	ch.DeletedTS = time.Now().UTC().UnixNano()
	nb, _ := json.Marshal(ch)
	if err := SaveChat(chatID, string(nb)); err != nil {
		return err
	}

	tomb := models.Message{
		ID:      utils.GenID(),
		Chat:    chatID,
		Role:    models.RoleSystem,
		TS:      time.Now().UTC().UnixNano(),
		Parts:   []models.Part{{Type: models.PartData, Data: json.RawMessage(`{"_event":"chat_deleted","by":"` + actor + `"}`)}},
		Deleted: true,
	}
	tb, _ := json.Marshal(tomb)
	if err := SaveMessage(chatID, tomb.ID, string(tb)); err != nil {
		logger.Error("soft_delete_append_tombstone_failed", "chat", chatID, "error", err)
		return err
	}
	logger.Info("chat_soft_deleted", "chat", chatID, "actor", actor)
	return nil
}

// ListChats returns all saved chat metadata values.
func ListChats() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if strings.HasSuffix(string(iter.Key()), ":meta") {
			v := append([]byte(nil), iter.Value()...)
			out = append(out, string(v))
		}
	}
	return out, iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// An empty prefix returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if len(pfx) > 0 && !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		out = append(out, string(k))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// SaveKey stores an arbitrary key/value pair. Callers should choose a
// safe namespace.
func SaveKey(key string, value []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

// DeleteKey removes a key.
func DeleteKey(key string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete([]byte(key), pebble.Sync)
}
