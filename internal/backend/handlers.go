package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/rs/zerolog/hlog"
)

const maxRequestBytes = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type conversationRequest struct {
	Title string `json:"title"`
}

type conversationResponse struct {
	ID        int64                `json:"id"`
	Title     string               `json:"title"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Messages  []avatarchat.Message `json:"messages"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Message string `json:"message"`
}

func newConversationResponse(c *Conversation, messages []avatarchat.Message) conversationResponse {
	if messages == nil {
		messages = []avatarchat.Message{}
	}
	return conversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
		Messages:  messages,
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeNonFieldErrors(w, http.StatusBadRequest, `Must include "username" and "password".`)
		return
	}

	log := hlog.FromRequest(r)
	user, err := s.repo.CheckPassword(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		log.Info().Str("username", req.Username).Msg("login rejected")
		writeNonFieldErrors(w, http.StatusBadRequest, "Unable to log in with provided credentials.")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	token, err := s.repo.IssueToken(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("issue token failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	log.Info().Str("username", user.Username).Msg("login succeeded")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, UserID: user.ID, Username: user.Username})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req conversationRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}

	conv, err := s.repo.CreateConversation(r.Context(), user.ID, strings.TrimSpace(req.Title))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("create conversation failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusCreated, newConversationResponse(conv, nil))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	conversations, err := s.repo.ListConversations(r.Context(), user.ID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list conversations failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	resp := make([]conversationResponse, 0, len(conversations))
	for i := range conversations {
		messages, err := s.repo.Messages(r.Context(), conversations[i].ID)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("load messages failed")
			writeDetail(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		resp = append(resp, newConversationResponse(&conversations[i], messages))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ownedConversation loads the {id} conversation for the current user,
// writing the error response itself when it returns nil.
func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request) *Conversation {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return nil
	}

	conv, err := s.repo.GetConversation(r.Context(), userFromContext(r.Context()).ID, id)
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return nil
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int64("conversation_id", id).Msg("load conversation failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return nil
	}
	return conv
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv := s.ownedConversation(w, r)
	if conv == nil {
		return
	}

	messages, err := s.repo.Messages(r.Context(), conv.ID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("load messages failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, newConversationResponse(conv, messages))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conv := s.ownedConversation(w, r)
	if conv == nil {
		return
	}

	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}

	log := hlog.FromRequest(r).With().Int64("conversation_id", conv.ID).Logger()

	history, err := s.repo.Messages(r.Context(), conv.ID)
	if err != nil {
		log.Error().Err(err).Msg("load messages failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	if err := s.repo.AddMessage(r.Context(), conv.ID, "user", req.Message); err != nil {
		log.Error().Err(err).Msg("save user message failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	reply, err := s.responder.Respond(r.Context(), history, req.Message)
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Warn().Err(err).Msg("responder failed, sending fallback reply")
		reply = FallbackReply
	}

	if err := s.repo.AddMessage(r.Context(), conv.ID, "assistant", reply); err != nil {
		log.Error().Err(err).Msg("save assistant message failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	log.Debug().Int("history", len(history)).Msg("message relayed")
	writeJSON(w, http.StatusOK, sendMessageResponse{Message: reply})
}
