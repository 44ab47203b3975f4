// Package response
package response

import (
	"bytes"
	"encoding/json"
	"net/http"

	"trafficstats/internal/logger"
)

type ResponseWriter interface {
	Write(w http.ResponseWriter, status int, data *Response)
	WriteError(w http.ResponseWriter, status int, message string)
}

type Response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

type JSONWriter struct {
	log logger.Logger
}

func NewJSONWriter(log logger.Logger) ResponseWriter {
	return &JSONWriter{log: log}
}

func (j *JSONWriter) Write(w http.ResponseWriter, status int, data *Response) {
	if data == nil {
		w.WriteHeader(status)
		return
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		j.log.Error("failed to encode json response", "error", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		j.log.Error("failed to write json response", "error", err)
	}
}

func (j *JSONWriter) WriteError(w http.ResponseWriter, status int, message string) {
	j.Write(w, status, &Response{Message: message})
}
