package handlers

import (
	"encoding/json"
	"net/http"

	"chatstream/pkg/llm"
	"chatstream/pkg/logger"
	"chatstream/pkg/utils"
)

// maxEmbedInputs bounds one embeddings request.
const maxEmbedInputs = 256

// Embeddings handles POST /v1/embeddings. Input is a string or an array
// of strings; one vector comes back per input, in order.
func Embeddings(w http.ResponseWriter, r *http.Request) {
	if provider == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "embeddings not configured")
		return
	}
	var in struct {
		Input json.RawMessage `json:"input"`
		Model string          `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	inputs, err := decodeInputs(in.Input)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := provider.Embed(r.Context(), llm.EmbedRequest{Model: in.Model, Inputs: inputs})
	if err != nil {
		logger.Warn("embed_failed", "inputs", len(inputs), "error", err)
		utils.JSONError(w, http.StatusBadGateway, "embedding provider error")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{
		"model":      resp.Model,
		"embeddings": resp.Vectors,
		"usage":      map[string]int64{"tokens": resp.Usage},
	})
}

func decodeInputs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, errEmptyInput
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil, errEmptyInput
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errBadInput
	}
	if len(many) == 0 {
		return nil, errEmptyInput
	}
	if len(many) > maxEmbedInputs {
		return nil, errTooManyInputs
	}
	for _, s := range many {
		if s == "" {
			return nil, errEmptyInput
		}
	}
	return many, nil
}

var (
	errEmptyInput    = jsonErr("input must be a non-empty string or array of strings")
	errBadInput      = jsonErr("input must be a string or array of strings")
	errTooManyInputs = jsonErr("too many inputs")
)

type jsonErr string

func (e jsonErr) Error() string { return string(e) }
