package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/ask"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req ask.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = r.URL.Query().Get("conversation")
	}
	s.logger.Debug("ask request",
		zap.String("conversation", req.ConversationID),
		zap.Bool("web_search", req.WebSearch))
	answer, err := s.deps.Ask.Ask(r.Context(), req)
	if err != nil {
		s.respondAppError(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Compiler.Compile(r.Context())
	if err != nil {
		s.respondAppError(w, "compile failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTruncate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Compiler.Truncate(r.Context()); err != nil {
		s.respondAppError(w, "truncate failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Database truncated successfully",
	})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	conversation := r.URL.Query().Get("conversation")
	groupID := r.URL.Query().Get("groupId")
	result, err := s.deps.Compiler.EmbedConversation(r.Context(), conversation, groupID)
	if err != nil {
		s.respondAppError(w, "embed failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Compiler.Stats(r.Context())
	if err != nil {
		s.respondAppError(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMessagesList(w http.ResponseWriter, r *http.Request) {
	conversation := r.URL.Query().Get("conversation")
	if conversation == "" {
		s.respondError(w, http.StatusBadRequest, "Missing conversation parameter")
		return
	}
	messages, err := s.deps.Messages.List(conversation)
	if err != nil {
		s.respondAppError(w, "list messages failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleMessagesClear(w http.ResponseWriter, r *http.Request) {
	conversation := r.URL.Query().Get("conversation")
	if conversation == "" {
		s.respondError(w, http.StatusBadRequest, "Missing conversation parameter")
		return
	}
	if err := s.deps.Messages.Clear(conversation); err != nil {
		s.respondAppError(w, "clear messages failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleDebugList(w http.ResponseWriter, r *http.Request) {
	conversation := chi.URLParam(r, "conversationId")
	entries, err := s.deps.Debug.List(conversation)
	if err != nil {
		s.respondAppError(w, "list debug messages failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"debugMessages": entries})
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Settings.Load()
	if err != nil {
		s.respondAppError(w, "load settings failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := s.deps.Settings.Merge(patch)
	if err != nil {
		s.respondAppError(w, "save settings failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	conversation := r.URL.Query().Get("conversation")
	groupID := r.URL.Query().Get("groupId")
	if groupID == "" {
		s.respondError(w, http.StatusBadRequest, "Document group ID is required")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	uploads := r.MultipartForm.File["file"]
	if len(uploads) == 0 {
		s.respondError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	saved := make([]string, 0, len(uploads))
	for _, header := range uploads {
		f, err := header.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read %s", header.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read %s", header.Filename))
			return
		}
		info, err := s.deps.Files.SaveUploaded(groupID, conversation, header.Filename, data)
		if err != nil {
			s.respondAppError(w, "save upload failed", err)
			return
		}
		saved = append(saved, info.Name)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"saved": saved})
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("groupId")
	conversation := r.URL.Query().Get("conversation")

	var (
		files interface{}
		err   error
	)
	switch {
	case conversation != "":
		files, err = s.deps.Files.ListConversationFiles(conversation)
	case groupID != "":
		files, err = s.deps.Files.ListGroupFiles(groupID)
	default:
		files, err = s.deps.Files.ListAllGroupFiles()
	}
	if err != nil {
		s.respondAppError(w, "list files failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func (s *Server) handleFilesDelete(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		s.respondError(w, http.StatusBadRequest, "Missing file parameter")
		return
	}
	if err := s.deps.Files.Delete(file); err != nil {
		s.respondAppError(w, "delete file failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGroupsList(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Groups.List()
	if err != nil {
		s.respondAppError(w, "list groups failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleGroupsCreate(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	group, err := s.deps.Groups.Create(req.Name)
	if err != nil {
		s.respondAppError(w, "create group failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"group": group})
}

func (s *Server) handleGroupsRename(w http.ResponseWriter, r *http.Request) {
	guid := r.URL.Query().Get("guid")
	if guid == "" {
		s.respondError(w, http.StatusBadRequest, "Missing group GUID")
		return
	}
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	group, err := s.deps.Groups.Rename(guid, req.Name)
	if err != nil {
		s.respondAppError(w, "rename group failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"group": group})
}

func (s *Server) handleGroupsDelete(w http.ResponseWriter, r *http.Request) {
	guid := r.URL.Query().Get("guid")
	if guid == "" {
		s.respondError(w, http.StatusBadRequest, "Missing group GUID")
		return
	}
	if err := s.deps.Groups.Delete(guid); err != nil {
		s.respondAppError(w, "delete group failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleConversationsList(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.deps.Conversations.List()
	if err != nil {
		s.respondAppError(w, "list conversations failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if r.Body != nil {
		// Body is optional; an unnamed conversation gets a numbered name.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Name == "" {
		list, err := s.deps.Conversations.List()
		if err != nil {
			s.respondAppError(w, "list conversations failed", err)
			return
		}
		req.Name = fmt.Sprintf("Conversation %d", len(list)+1)
	}
	conv, err := s.deps.Conversations.Create(req.Name)
	if err != nil {
		s.respondAppError(w, "create conversation failed", err)
		return
	}
	if err := os.MkdirAll(s.layout.ConversationDir(conv.GUID), 0755); err != nil {
		s.respondAppError(w, "create conversation dir failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "id")
	conv, err := s.deps.Conversations.Get(guid)
	if err != nil {
		s.respondAppError(w, "get conversation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"conversation": conv})
}

func (s *Server) handleConversationRename(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "id")
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conv, err := s.deps.Conversations.Rename(guid, req.Name)
	if err != nil {
		s.respondAppError(w, "rename conversation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"conversation": conv})
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	guid := r.URL.Query().Get("guid")
	if guid == "" {
		s.respondError(w, http.StatusBadRequest, "Missing guid")
		return
	}
	if err := s.deps.Conversations.Delete(guid); err != nil {
		s.respondAppError(w, "delete conversation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperr.KindValidation, apperr.KindConfiguration:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindProvider:
		return http.StatusBadGateway
	case apperr.KindIndexUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondAppError(w http.ResponseWriter, logMsg string, err error) {
	s.logger.Error(logMsg, zap.Error(err))
	s.respondError(w, statusForError(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
