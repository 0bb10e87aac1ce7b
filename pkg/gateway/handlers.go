package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/paraflow/paraflow/pkg/para"
	"github.com/paraflow/paraflow/pkg/pusher"
	"github.com/paraflow/paraflow/pkg/settings"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtractPara(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID   string         `json:"user_id"`
		Messages []para.Message `json:"messages"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID", "")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid messages array", "")
		return
	}

	sess := s.session(req.UserID)

	sess.mu.Lock()
	seq := sess.ws.NextSeq()
	sess.mu.Unlock()

	// Extraction runs outside the session lock; a newer pass may finish first
	// and win via the sequence guard.
	batch := s.extractor.ExtractPara(r.Context(), req.Messages)

	sess.mu.Lock()
	applied := sess.ws.Apply(seq, batch)
	suggestions := sess.ws.Suggestions()
	sess.mu.Unlock()

	if !applied {
		s.logger.Info("stale extraction discarded",
			zap.String("user_id", req.UserID),
			zap.Uint64("seq", seq))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "PARA elements extracted successfully",
		"para":    suggestions,
		"applied": applied,
	})
}

func (s *Server) handleExtractTasks(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID   string         `json:"user_id"`
		Messages []para.Message `json:"messages"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid messages array", "")
		return
	}

	tasks := s.extractor.ExtractTasks(r.Context(), req.Messages)
	if tasks == nil {
		tasks = []para.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tasks extracted successfully",
		"tasks":   tasks,
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID    string `json:"user_id"`
		ElementID string `json:"element_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ElementID == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID or element ID", "")
		return
	}

	binding, err := s.store.Binding(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, settings.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "Notion integration not configured", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Error loading settings", err.Error())
		return
	}

	sess := s.session(req.UserID)
	sess.mu.Lock()
	el, found := sess.ws.Find(req.ElementID)
	sess.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Element not found", req.ElementID)
		return
	}

	remote, err := s.newRemote(binding.Token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating Notion client", err.Error())
		return
	}

	writer := pusher.NewWriter(remote, s.logger)
	page, err := writer.PushElement(r.Context(), el, binding)
	if err != nil {
		var writeErr *pusher.RemoteWriteError
		if errors.As(err, &writeErr) {
			writeError(w, http.StatusBadGateway, "Failed to push element to Notion", writeErr.Title)
			return
		}
		writeError(w, http.StatusBadGateway, "Failed to push element to Notion", err.Error())
		return
	}

	// Remote write landed; the confirm transition happens only after.
	sess.mu.Lock()
	confirmed, err := sess.ws.Confirm(req.ElementID)
	sess.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusNotFound, "Element not found", req.ElementID)
		return
	}

	resp := map[string]interface{}{
		"message": "Element confirmed and pushed",
		"element": confirmed,
	}
	if page != nil {
		resp["page_id"] = page.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID    string `json:"user_id"`
		ElementID string `json:"element_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ElementID == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID or element ID", "")
		return
	}

	sess := s.session(req.UserID)
	sess.mu.Lock()
	err := sess.ws.Reject(req.ElementID)
	sess.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusNotFound, "Element not found", req.ElementID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Element rejected"})
}

func (s *Server) handlePushTasks(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID     string      `json:"user_id"`
		Tasks      []para.Task `json:"tasks"`
		DatabaseID string      `json:"database_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Tasks) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid tasks array", "")
		return
	}

	binding, err := s.store.Binding(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, settings.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "Notion integration not configured", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Error loading settings", err.Error())
		return
	}

	databaseID := req.DatabaseID
	if databaseID == "" {
		databaseID = binding.ProjectsDB
	}

	remote, err := s.newRemote(binding.Token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating Notion client", err.Error())
		return
	}

	writer := pusher.NewWriter(remote, s.logger)
	pages, errs := writer.PushTasks(r.Context(), req.Tasks, databaseID)

	failed := make([]string, 0, len(errs))
	for _, pushErr := range errs {
		var writeErr *pusher.RemoteWriteError
		if errors.As(pushErr, &writeErr) {
			failed = append(failed, writeErr.Title)
		} else {
			failed = append(failed, pushErr.Error())
		}
	}

	status := http.StatusOK
	if len(pages) == 0 && len(errs) > 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]interface{}{
		"message": "Tasks pushed to Notion",
		"pushed":  len(pages),
		"failed":  failed,
	})
}

func (s *Server) handleEnsureFramework(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID", "")
		return
	}

	userSettings, err := s.store.GetSettings(r.Context(), req.UserID)
	if err != nil || strings.TrimSpace(userSettings.NotionToken) == "" {
		writeError(w, http.StatusBadRequest, "Missing Notion token", "save your integration token first")
		return
	}

	var persona *settings.Persona
	if p, ok, perr := s.store.GetPersona(r.Context(), req.UserID); perr == nil && ok {
		persona = &p
	}

	remote, err := s.newRemote(userSettings.NotionToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating Notion client", err.Error())
		return
	}

	provisioner := pusher.NewProvisioner(remote, s.logger)
	fw, err := provisioner.EnsureFramework(r.Context(), req.UserID, persona)
	if err != nil {
		if errors.Is(err, pusher.ErrNoParentPage) {
			writeError(w, http.StatusBadRequest, "Error creating PARA framework", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "Error creating PARA framework", err.Error())
		return
	}

	if err := s.store.PutSettings(r.Context(), settings.UserSettings{
		UserID:      req.UserID,
		ProjectsDB:  fw.ProjectsDB,
		AreasDB:     fw.AreasDB,
		ResourcesDB: fw.ResourcesDB,
		ArchiveDB:   fw.ArchiveDB,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Error saving database IDs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "PARA framework ready",
		"state":   fw.State,
		"created": fw.Created,
		"databaseIds": map[string]string{
			"projects":  fw.ProjectsDB,
			"areas":     fw.AreasDB,
			"resources": fw.ResourcesDB,
			"archive":   fw.ArchiveDB,
		},
	})
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID  string           `json:"user_id"`
		Persona settings.Persona `json:"persona"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID", "")
		return
	}

	if err := s.store.PutPersona(r.Context(), req.UserID, req.Persona); err != nil {
		writeError(w, http.StatusInternalServerError, "Error saving persona data", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Persona data saved successfully",
		"user_id": req.UserID,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		UserID       string `json:"user_id"`
		NotionToken  string `json:"notion_token"`
		NotionPageID string `json:"notion_page_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID", "")
		return
	}

	if err := s.store.PutSettings(r.Context(), settings.UserSettings{
		UserID:       req.UserID,
		NotionToken:  req.NotionToken,
		NotionPageID: req.NotionPageID,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Error saving settings", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Settings saved"})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription not configured", "set an OpenAI API key")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing or invalid file", err.Error())
		return
	}
	defer file.Close()

	text, err := s.transcriber.Transcribe(r.Context(), file, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Transcription failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
