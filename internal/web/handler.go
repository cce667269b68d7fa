package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/fototeca/internal/catalog"
	"github.com/abdul-hamid-achik/fototeca/internal/db"
	"github.com/abdul-hamid-achik/fototeca/internal/query"
)

// maxUploadSize caps multipart uploads at 64MB.
const maxUploadSize = 64 << 20

// Handler handles HTTP requests for the catalog API.
type Handler struct {
	service *catalog.Service
	engine  *query.Engine
	logger  *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(service *catalog.Service, engine *query.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		engine:  engine,
		logger:  logger,
	}
}

// Sync runs a sync pass and returns its counts.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Sync(r.Context())
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, result)
}

// Reset drops and reinitializes the catalog.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Status returns catalog statistics.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, stats)
}

// ListItems returns every item id.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ListItemIDs(r.Context())
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"ids": ids})
}

// AddItem accepts a multipart upload with a "file" part and an optional
// "timestamp" field (seconds since epoch).
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorMsg(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.error(w, err)
		return
	}

	var timestamp float64
	if ts := r.FormValue("timestamp"); ts != "" {
		timestamp, err = strconv.ParseFloat(ts, 64)
		if err != nil {
			h.errorMsg(w, http.StatusBadRequest, "invalid timestamp")
			return
		}
	}

	id, err := h.service.AddItem(r.Context(), header.Filename, data, timestamp)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusCreated, map[string]int64{"id": id})
}

// ItemInfo returns one item's metadata.
func (h *Handler) ItemInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.ItemInfo(r.Context(), id)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, item)
}

// DeleteItem destroys an item.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ItemData streams the item's backing file.
func (h *Handler) ItemData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	data, path, err := h.service.ItemData(r.Context(), id)
	if err != nil {
		h.error(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ItemTags returns the tags assigned to an item.
func (h *Handler) ItemTags(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tags, err := h.service.ItemTags(r.Context(), id)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"tags": tags})
}

// ListTags returns every tag id.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ListTagIDs(r.Context())
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"ids": ids})
}

// AddTag creates a tag from a JSON body {"name": ...}.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid json body")
		return
	}

	id, err := h.service.AddTag(r.Context(), body.Name)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusCreated, map[string]int64{"id": id})
}

// TagInfo returns one tag.
func (h *Handler) TagInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tag, err := h.service.Tag(r.Context(), id)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, tag)
}

// DeleteTag destroys a tag.
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTag(r.Context(), id); err != nil {
		h.error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentBody struct {
	ItemID int64 `json:"item_id"`
	TagID  int64 `json:"tag_id"`
}

// Assign links a tag to an item.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var body assignmentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.service.Assign(r.Context(), body.ItemID, body.TagID); err != nil {
		h.error(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Unassign removes a tag from an item.
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	var body assignmentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.service.Unassign(r.Context(), body.ItemID, body.TagID); err != nil {
		h.error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Filter returns items carrying all of the given tags
// (?tags=1,2,3; empty means all items).
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	tagIDs, err := parseIDList(r.URL.Query().Get("tags"))
	if err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid tags parameter")
		return
	}

	items, err := h.engine.Filter(r.Context(), tagIDs)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"items": items})
}

// Around returns a chronological window around an item
// (?item=5&tags=1,2&n=10).
func (h *Handler) Around(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item"), 10, 64)
	if err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid item parameter")
		return
	}
	tagIDs, err := parseIDList(r.URL.Query().Get("tags"))
	if err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid tags parameter")
		return
	}
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		if n, err = strconv.Atoi(raw); err != nil {
			h.errorMsg(w, http.StatusBadRequest, "invalid n parameter")
			return
		}
	}

	items, err := h.engine.Around(r.Context(), itemID, tagIDs, n)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"items": items})
}

// Closest returns the item nearest to a timestamp (?timestamp=...).
func (h *Handler) Closest(w http.ResponseWriter, r *http.Request) {
	timestamp, err := strconv.ParseFloat(r.URL.Query().Get("timestamp"), 64)
	if err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid timestamp parameter")
		return
	}

	item, err := h.engine.Closest(r.Context(), timestamp)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, item)
}

// Best returns the top-n items for a prompt (?q=...&n=10).
func (h *Handler) Best(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("q")
	n := 10
	var err error
	if raw := r.URL.Query().Get("n"); raw != "" {
		if n, err = strconv.Atoi(raw); err != nil {
			h.errorMsg(w, http.StatusBadRequest, "invalid n parameter")
			return
		}
	}

	results, err := h.engine.Best(r.Context(), prompt, n)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"results": results})
}

// pathID parses the {id} route parameter.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorMsg(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

// error maps a service error to its transport status.
func (h *Handler) error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, catalog.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.errorMsg(w, status, err.Error())
}

func (h *Handler) errorMsg(w http.ResponseWriter, status int, msg string) {
	h.json(w, status, map[string]string{"error": msg})
}

// parseIDList parses a comma-separated id list; empty input means no filter.
func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// contentTypeFor maps an image extension to its MIME type.
func contentTypeFor(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg", "jfif":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
