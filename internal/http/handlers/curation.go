package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curation-backend/internal/http/response"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/services"
)

type CurationHandler struct {
	log      *logger.Logger
	curation services.CurationService
}

func NewCurationHandler(log *logger.Logger, curation services.CurationService) *CurationHandler {
	return &CurationHandler{log: log.With("handler", "CurationHandler"), curation: curation}
}

// POST /api/curations/generate
//
// Enqueues a generation job and answers 202. With ?wait=true the pipeline
// runs inside the request.
func (h *CurationHandler) Generate(c *gin.Context) {
	var req services.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	wait := queryBool(c, "wait")
	res, err := h.curation.Trigger(c.Request.Context(), req, wait)
	if err != nil {
		h.log.Warn("curation: trigger failed", "curation_id", req.CurationID, "error", err)
		response.RespondErr(c, "generate_failed", err)
		return
	}
	if wait {
		response.RespondOK(c, res)
		return
	}
	response.RespondAccepted(c, res)
}

// POST /api/curations/:id/validate
func (h *CurationHandler) Validate(c *gin.Context) {
	curationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_curation_id", err)
		return
	}
	var req services.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	wait := queryBool(c, "wait")
	res, err := h.curation.Validate(c.Request.Context(), curationID, req, wait)
	if err != nil {
		response.RespondErr(c, "validate_failed", err)
		return
	}
	if wait {
		response.RespondOK(c, res)
		return
	}
	response.RespondAccepted(c, res)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
