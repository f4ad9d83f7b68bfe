package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/engramlabs/engram-go/pkg/core"
)

// parseID reads the :id path parameter as an int64.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleStore(c *gin.Context) {
	var req core.StoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.service.Store(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (s *Server) handleSearch(c *gin.Context) {
	var req core.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	memories, err := s.service.Search(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories})
}

func (s *Server) handleContext(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	blob, err := s.service.AssembleContext(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": blob})
}

func (s *Server) handleSupersede(c *gin.Context) {
	var req struct {
		ID          int64 `json:"id"`
		SuccessorID int64 `json:"successor_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.service.Supersede(c.Request.Context(), req.ID, req.SuccessorID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"superseded": req.ID, "successor": req.SuccessorID})
}

func (s *Server) handleGetMemory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	memory, err := s.service.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, memory)
}

func (s *Server) handleDeleteMemory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := s.service.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleExtract(c *gin.Context) {
	var req struct {
		Text      string `json:"text"`
		Source    string `json:"source"`
		SkipGraph bool   `json:"skip_graph"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.service.Extract(c.Request.Context(), req.Text, req.Source, req.SkipGraph)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleUpsertEntity(c *gin.Context) {
	var req struct {
		Name       string                 `json:"name"`
		EntityType string                 `json:"entity_type"`
		Metadata   map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entity, err := s.service.UpsertEntity(c.Request.Context(), req.Name, core.EntityType(req.EntityType), req.Metadata)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (s *Server) handleSearchEntities(c *gin.Context) {
	var req struct {
		Query      string `json:"query"`
		EntityType string `json:"entity_type"`
		Limit      int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entities, err := s.service.SearchEntities(c.Request.Context(), req.Query, core.EntityType(req.EntityType), req.Limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": entities})
}

func (s *Server) handleEntityProfile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	profile, err := s.service.EntityProfile(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleAddRelationship(c *gin.Context) {
	var req struct {
		SubjectID   int64   `json:"subject_id"`
		Predicate   string  `json:"predicate"`
		ObjectID    *int64  `json:"object_id"`
		ObjectValue string  `json:"object_value"`
		Confidence  float64 `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rel, err := s.service.AddRelationship(c.Request.Context(), req.SubjectID, req.Predicate, req.ObjectID, req.ObjectValue, req.Confidence)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (s *Server) handleLogWisdom(c *gin.Context) {
	var req struct {
		ActionType string   `json:"action_type"`
		Reasoning  string   `json:"reasoning"`
		Tags       []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entry, err := s.service.LogWisdom(c.Request.Context(), req.ActionType, req.Reasoning, req.Tags)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleRecordOutcome(c *gin.Context) {
	var req struct {
		Outcome string `json:"outcome"`
		Details string `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.service.RecordOutcome(c.Request.Context(), c.Param("id"), req.Outcome, req.Details); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "outcome": req.Outcome})
}

func (s *Server) handleAttachFeedback(c *gin.Context) {
	var req struct {
		Score int    `json:"score"`
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.service.AttachFeedback(c.Request.Context(), c.Param("id"), req.Score, req.Notes); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "score": req.Score})
}

func (s *Server) handleSearchWisdom(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entries, err := s.service.SearchWisdom(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
