package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

type memoryResponse struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Tags           []string  `json:"tags,omitempty"`
	Source         string    `json:"source,omitempty"`
	DedupeKey      string    `json:"dedupe_key,omitempty"`
	ExternalID     string    `json:"external_id,omitempty"`
	PendingEmbed   bool      `json:"pending_embed,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	FirstCreatedAt time.Time `json:"first_created_at"`
}

func toMemoryResponse(mem *model.Memory) *memoryResponse {
	return &memoryResponse{
		ID:             string(mem.ID),
		Text:           mem.Text,
		Tags:           mem.Tags,
		Source:         mem.Source,
		DedupeKey:      mem.DedupeKey,
		ExternalID:     mem.ExternalID,
		PendingEmbed:   mem.PendingEmbed,
		CreatedAt:      mem.CreatedAt,
		FirstCreatedAt: mem.FirstCreatedAt,
	}
}

type storeRequest struct {
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	DedupeKey  string   `json:"dedupe_key"`
	ExternalID string   `json:"external_id"`
}

func (x *storeRequest) input() memory.StoreInput {
	return memory.StoreInput{
		Text:       x.Text,
		Tags:       x.Tags,
		Source:     x.Source,
		DedupeKey:  x.DedupeKey,
		ExternalID: x.ExternalID,
	}
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(model.KindValidation), "broken request body")
		return
	}

	out, err := s.uc.Store(r.Context(), req.input())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	// a dedupe overwrite is a 200, a fresh insert a 201
	code := http.StatusCreated
	if out.Strategy == model.StrategyOverwritten {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"memory":   toMemoryResponse(out.Memory),
		"strategy": out.Strategy,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	mem, err := s.uc.Get(r.Context(), model.MemoryID(r.PathValue("id")))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoryResponse(mem))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Delete(r.Context(), model.MemoryID(r.PathValue("id"))); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query  string   `json:"query"`
	TopK   int      `json:"top_k"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

type searchResultResponse struct {
	Memory *memoryResponse `json:"memory"`
	Score  float64         `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(model.KindValidation), "broken request body")
		return
	}

	results, err := s.uc.Search(r.Context(), memory.SearchInput{
		Query:  req.Query,
		TopK:   req.TopK,
		Source: req.Source,
		Tags:   req.Tags,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	items := make([]*searchResultResponse, 0, len(results))
	for _, result := range results {
		items = append(items, &searchResultResponse{
			Memory: toMemoryResponse(result.Memory),
			Score:  result.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(model.KindValidation), "limit must be an integer")
			return
		}
		limit = parsed
	}

	out, err := s.uc.List(r.Context(), memory.ListInput{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	items := make([]*memoryResponse, 0, len(out.Memories))
	for _, mem := range out.Memories {
		items = append(items, toMemoryResponse(mem))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memories":    items,
		"next_cursor": out.NextCursor,
	})
}

type ingestRequest struct {
	Items []storeRequest `json:"items"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(model.KindValidation), "broken request body")
		return
	}

	items := make([]memory.StoreInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.input())
	}

	out, err := s.uc.Ingest(r.Context(), items)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.uc.Health(r.Context())

	// only a fully operational store is healthy; degraded cannot serve search
	code := http.StatusOK
	if health.Mode != model.ModeFull {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"mode":       health.Mode,
		"index":      health.Index,
		"embedder":   health.Embedder,
		"checked_at": health.CheckedAt,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, kind, detail string) {
	writeJSON(w, code, map[string]string{
		"error":  kind,
		"detail": detail,
	})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.Classify(err)

	code := http.StatusInternalServerError
	switch kind {
	case model.KindValidation:
		code = http.StatusBadRequest
	case model.KindNotFound:
		code = http.StatusNotFound
	case model.KindConflict:
		code = http.StatusConflict
	case model.KindUnavailable:
		code = http.StatusServiceUnavailable
	}

	if code == http.StatusInternalServerError || code == http.StatusServiceUnavailable {
		logging.From(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeError(w, code, string(kind), err.Error())
}
