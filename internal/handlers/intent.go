package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hiuminee/carebot-backend/internal/intent"
	"github.com/hiuminee/carebot-backend/internal/logger"
)

type IntentHandler struct {
	log        *logger.Logger
	classifier *intent.Classifier
}

func NewIntentHandler(log *logger.Logger, classifier *intent.Classifier) *IntentHandler {
	return &IntentHandler{log: log.With("handler", "IntentHandler"), classifier: classifier}
}

// Classify exposes standalone intent classification, primarily for the
// router service in front of this backend.
func (ih *IntentHandler) Classify(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("message is required"))
		return
	}

	result, err := ih.classifier.Classify(c.Request.Context(), message)
	if err != nil {
		ih.log.Error("intent classification failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "classification_failed", errors.New("classification failed"))
		return
	}
	RespondOK(c, result)
}
