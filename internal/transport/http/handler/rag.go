package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pleader/internal/app"
	"pleader/internal/rag"
	"pleader/internal/transport/http/response"
)

type RAGHandler struct {
	pipeline        *rag.Pipeline
	documentService *app.DocumentService
}

type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
	// UseRerank defaults to true when omitted.
	UseRerank *bool `json:"use_rerank"`
}

type QueryResponse struct {
	Answer  string             `json:"answer"`
	Sources []rag.SearchResult `json:"sources"`
}

func NewRAGHandler(pipeline *rag.Pipeline, documentService *app.DocumentService) *RAGHandler {
	return &RAGHandler{pipeline: pipeline, documentService: documentService}
}

// Query answers a question from the indexed knowledge base.
func (h *RAGHandler) Query(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing user identity")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	useRerank := true
	if req.UseRerank != nil {
		useRerank = *req.UseRerank
	}

	sources, answer := h.pipeline.Query(c.Request.Context(), req.Question, req.TopK, useRerank)
	response.OK(c, QueryResponse{
		Answer:  answer,
		Sources: sources,
	})
}

func (h *RAGHandler) Stats(c *gin.Context) {
	response.OK(c, h.pipeline.Stats())
}

// Reset wipes the whole knowledge base: vector index, chunk registry,
// and document records.
func (h *RAGHandler) Reset(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing user identity")
		return
	}

	if err := h.documentService.Reset(); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reset failed: "+err.Error())
		return
	}
	response.OK(c, h.pipeline.Stats())
}
