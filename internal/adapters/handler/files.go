package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"facebook-action/internal/core/ports"
)

// FileHandler serves media stored by the download operation
type FileHandler struct {
	reader ports.FileReader
}

func NewFileHandler(reader ports.FileReader) *FileHandler {
	return &FileHandler{reader: reader}
}

// ServeFile streams one stored file
// GET /files/*
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.Load(r.Context(), name)
	if errors.Is(err, ports.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("Failed to load stored file", "error", err, "path", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
