package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/txn2/talkback/pkg/ingest"
)

// transcribeResponse is returned for a stored chunk.
type transcribeResponse struct {
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
	Success    bool   `json:"success"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// transcribeChunk handles POST /transcribe-chunk.
//
//	@Summary		Transcribe an audio chunk
//	@Description	Converts, transcribes and stores one recorded chunk for a session.
//	@Tags			Chunks
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			audio		formData	file	true	"Audio chunk (webm, wav, mp3, ogg, m4a)"
//	@Param			chunkIndex	formData	integer	false	"Zero-based chunk index (default 0)"
//	@Param			sessionId	formData	string	true	"Session id"
//	@Success		200	{object}	transcribeResponse
//	@Failure		400	{object}	errorResponse
//	@Failure		413	{object}	errorResponse
//	@Failure		422	{object}	errorResponse
//	@Failure		502	{object}	errorResponse
//	@Router			/transcribe-chunk [post]
func (h *Handler) transcribeChunk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "Audio upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "Empty filename")
		return
	}

	chunkIndex := 0
	if v := strings.TrimSpace(r.FormValue("chunkIndex")); v != "" {
		chunkIndex, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "chunkIndex must be an integer")
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, ingestStatus(err), "Failed to read audio")
		return
	}

	res, err := h.deps.Ingester.Ingest(r.Context(), ingest.Upload{
		SessionID:  strings.TrimSpace(r.FormValue("sessionId")),
		ChunkIndex: chunkIndex,
		Filename:   header.Filename,
		Audio:      data,
	})
	if err != nil {
		writeError(w, ingestStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		ChunkIndex: res.ChunkIndex,
		Text:       res.Text,
		Success:    true,
		Duplicate:  res.Duplicate,
	})
}
