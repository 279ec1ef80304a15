package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rpupo63/portfolio-backend/deploy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const invalidProjectsMessage = "Invalid projects data"

type deployHandler struct {
	responder Responder
	logger    zerolog.Logger
	forwarder deploy.Forwarder
}

func newDeployHandler(forwarder deploy.Forwarder) deployHandler {
	logger := log.With().Str("handlerName", "deployHandler").Logger()
	if forwarder == nil {
		forwarder = deploy.Noop{}
	}

	return deployHandler{
		responder: NewResponder(logger),
		logger:    logger,
		forwarder: forwarder,
	}
}

type deployRequest struct {
	Projects json.RawMessage `json:"projects"`
}

// deploy forwards the given project identifiers to the deploy hook
// @Summary Deploy projects
// @Description Forwards project identifiers to the external deployment system and relays its answer
// @Tags Deploy
// @Accept json
// @Produce json
// @Success 200 {object} object "Result of the deployment system, verbatim"
// @Failure 400 {object} MessageResponse "Invalid projects data"
// @Failure 500 {object} MessageResponse "Deployment failed"
// @Router /api/deploy [post]
func (h deployHandler) deploy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deployRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.WriteJSONStatus(w, http.StatusBadRequest, MessageResponse{Message: invalidProjectsMessage})
			return
		}

		raw := bytes.TrimSpace(req.Projects)
		if len(raw) == 0 || raw[0] != '[' {
			h.responder.WriteJSONStatus(w, http.StatusBadRequest, MessageResponse{Message: invalidProjectsMessage})
			return
		}
		var projects []json.RawMessage
		if err := json.Unmarshal(raw, &projects); err != nil {
			h.responder.WriteJSONStatus(w, http.StatusBadRequest, MessageResponse{Message: invalidProjectsMessage})
			return
		}

		result, err := h.forwarder.Forward(r.Context(), projects)
		if err != nil {
			h.logger.Error().Err(err).Int("projects", len(projects)).Msg("deploy failed")
			h.responder.WriteJSONStatus(w, http.StatusInternalServerError, MessageResponse{Message: err.Error()})
			return
		}

		h.responder.WriteRaw(w, http.StatusOK, result)
	}
}
