package handlers

import (
	"encoding/json"
	"net/http"

	"chatstream/pkg/models"
	"chatstream/pkg/store"
	"chatstream/pkg/utils"
)

// AdminStats handles GET /v1/admin/stats.
func AdminStats(w http.ResponseWriter, r *http.Request) {
	chats, err := store.ListChats()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to read store")
		return
	}
	deleted := 0
	for _, row := range chats {
		var ch models.Chat
		if json.Unmarshal([]byte(row), &ch) == nil && ch.Deleted {
			deleted++
		}
	}
	streamKeys, err := store.ListKeys("stream:")
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to read store")
		return
	}
	active, done, errored := 0, 0, 0
	for _, k := range streamKeys {
		row, err := store.GetKey(k)
		if err != nil {
			continue
		}
		var rec models.StreamRecord
		if json.Unmarshal([]byte(row), &rec) != nil {
			continue
		}
		switch rec.Status {
		case models.StreamActive:
			active++
		case models.StreamDone:
			done++
		case models.StreamError:
			errored++
		}
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{
		"chats": map[string]int{"total": len(chats), "deleted": deleted},
		"streams": map[string]int{
			"total": len(streamKeys), "active": active, "done": done, "error": errored,
		},
		"disk_bytes": store.DiskUsage(),
	})
}

// AdminRetentionRun handles POST /v1/admin/retention/run. Pass dry_run=1
// to report what a sweep would touch without writing.
func AdminRetentionRun(w http.ResponseWriter, r *http.Request) {
	if retentionRun == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "retention not configured")
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "1"
	counts, err := retentionRun(dryRun)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "sweep failed: "+err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"dry_run": dryRun, "counts": counts})
}
