package api

import "net/http"

// MappingsHandler controls the game mapping cache.
type MappingsHandler struct {
	cache MappingCache
}

// NewMappingsHandler creates the handler.
func NewMappingsHandler(cache MappingCache) *MappingsHandler {
	return &MappingsHandler{cache: cache}
}

// HandleInvalidate handles POST /game-mappings/invalidate.
func (h *MappingsHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.cache.InvalidateGameMappings(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
