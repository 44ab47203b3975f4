package http

import (
	"net/http"
	"time"

	"trafficstats/internal/adapters/http/response"
	"trafficstats/internal/domain"
	"trafficstats/internal/storage/snapshot"
)

type SpeedHandler struct {
	store *snapshot.SampleStore
	res   response.ResponseWriter
}

type speedMeta struct {
	RecordedAt time.Time `json:"recorded_at"`
	Unit       string    `json:"unit"`
}

func NewSpeedHandler(store *snapshot.SampleStore, res response.ResponseWriter) *SpeedHandler {
	return &SpeedHandler{store: store, res: res}
}

// Latest returns the most recent sample while a stream is active.
func (h *SpeedHandler) Latest(w http.ResponseWriter, r *http.Request) {
	sample, at, ok := h.store.Get()
	if !ok {
		h.res.WriteError(w, http.StatusNotFound, domain.ErrNoSample.Error())
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Data: sample,
		Meta: speedMeta{RecordedAt: at, Unit: "kbps"},
	})
}
