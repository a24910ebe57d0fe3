package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/agent"
	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage"
	"github.com/chrysalislabs/chrysalis/pkg/sync"
)

// ErrorResponse is the JSON body returned for all failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateMemoryRequest is the body of POST /memories.
type CreateMemoryRequest struct {
	ID         string   `json:"id,omitempty"`
	Content    string   `json:"content"`
	Type       string   `json:"memory_type,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Related    []string `json:"related,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// UpdateMemoryRequest is the body of PATCH /memories/:id. Absent fields are
// left untouched.
type UpdateMemoryRequest struct {
	Content    *string  `json:"content,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	AddTags    []string `json:"add_tags,omitempty"`
	RemoveTags []string `json:"remove_tags,omitempty"`
	Related    []string `json:"related,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// RecallResponse is one ranked hit in GET /recall output.
type RecallResponse struct {
	Memory *memory.Document `json:"memory"`
	Score  float64          `json:"score"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns replica-level statistics: the total plus counts by
// memory type and by sync status.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.mem.Stats(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(stats)
}

// handleCreateMemory stores a new memory.
func (s *Server) handleCreateMemory(c *fiber.Ctx) error {
	var req CreateMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	opts := make([]agent.Option, 0, 8)
	if req.ID != "" {
		opts = append(opts, agent.WithID(req.ID))
	}
	if req.Type != "" {
		typ, err := memory.ParseType(req.Type)
		if err != nil {
			return s.fail(c, err)
		}
		opts = append(opts, agent.WithType(typ))
	}
	if req.Importance != nil {
		opts = append(opts, agent.WithImportance(*req.Importance))
	}
	if req.Confidence != nil {
		opts = append(opts, agent.WithConfidence(*req.Confidence))
	}
	if len(req.Tags) > 0 {
		opts = append(opts, agent.WithTags(req.Tags...))
	}
	if len(req.Related) > 0 {
		opts = append(opts, agent.WithRelated(req.Related...))
	}
	if len(req.Evidence) > 0 {
		opts = append(opts, agent.WithEvidence(req.Evidence...))
	}

	doc, err := s.mem.Learn(c.Context(), req.Content, opts...)
	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// handleGetMemory returns a single memory by id.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	doc, err := s.mem.Get(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(doc)
}

// handleListMemories returns memories filtered by the query parameters.
// Supported filters: type, tag, min_importance, limit. Without filters it
// returns the most recent memories (default limit 50).
func (s *Server) handleListMemories(c *fiber.Ctx) error {
	ctx := c.Context()

	filters, err := s.parseFilters(c)
	if err != nil {
		return s.fail(c, err)
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = parsed
	}

	var docs []*memory.Document
	switch {
	case filters.Tag != "":
		docs, err = s.mem.QueryByTag(ctx, filters.Tag)
	case filters.Type != "":
		docs, err = s.mem.QueryByType(ctx, filters.Type)
	case filters.MinImportance > 0:
		docs, err = s.mem.QueryByImportance(ctx, filters.MinImportance)
	default:
		docs, err = s.mem.Recent(ctx, limit)
	}
	if err != nil {
		return s.fail(c, err)
	}

	if len(docs) > limit {
		docs = docs[:limit]
	}

	return c.JSON(map[string]any{
		"count":    len(docs),
		"memories": docs,
	})
}

// handleUpdateMemory applies a partial update to an existing memory.
func (s *Server) handleUpdateMemory(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	var req UpdateMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	doc, err := s.mem.Update(c.Context(), id, agent.UpdateRequest{
		Content:    req.Content,
		Importance: req.Importance,
		Confidence: req.Confidence,
		AddTags:    req.AddTags,
		RemoveTags: req.RemoveTags,
		Related:    req.Related,
		Evidence:   req.Evidence,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(doc)
}

// handleRecordAccess bumps the access bookkeeping for a memory.
func (s *Server) handleRecordAccess(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	doc, err := s.mem.RecordAccess(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(doc)
}

// handleRecall handles GET /recall requests.
// Query parameters:
//   - query (required): the recall query text
//   - k (optional, default 5): number of results to return
//   - type, tag, min_importance (optional): candidate filters
func (s *Server) handleRecall(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	k := 5
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "k must be a positive integer"})
		}
		k = parsed
	}

	filters, err := s.parseFilters(c)
	if err != nil {
		return s.fail(c, err)
	}

	results, err := s.mem.Recall(c.Context(), query, k, filters)
	if err != nil {
		return s.fail(c, err)
	}

	hits := make([]RecallResponse, len(results))
	for i, r := range results {
		hits[i] = RecallResponse{Memory: r.Document, Score: r.Score}
	}

	return c.JSON(map[string]any{
		"count":   len(hits),
		"results": hits,
	})
}

// handleSync runs one push cycle against the gateway.
func (s *Server) handleSync(c *fiber.Ctx) error {
	if !s.mem.SyncEnabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "sync is not configured: set sync.gateway_url and enable sync",
		})
	}

	pushed, err := s.mem.SyncNow(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(map[string]any{
		"pushed": pushed,
	})
}

// handlePull fetches remote memories matching a query and merges them locally.
func (s *Server) handlePull(c *fiber.Ctx) error {
	if !s.mem.SyncEnabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "sync is not configured: set sync.gateway_url and enable sync",
		})
	}

	query := c.Query("query")

	k := 50
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "k must be a positive integer"})
		}
		k = parsed
	}

	merged, err := s.mem.Pull(c.Context(), query, k)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(map[string]any{
		"merged": merged,
	})
}

// parseFilters builds RecallFilters from the shared query parameters.
func (s *Server) parseFilters(c *fiber.Ctx) (agent.RecallFilters, error) {
	var filters agent.RecallFilters

	if typeStr := c.Query("type"); typeStr != "" {
		typ, err := memory.ParseType(typeStr)
		if err != nil {
			return filters, err
		}
		filters.Type = typ
	}

	filters.Tag = c.Query("tag")

	if minStr := c.Query("min_importance"); minStr != "" {
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return filters, memory.ValidationError{Field: "min_importance", Reason: "must be a number"}
		}
		filters.MinImportance = min
	}

	return filters, nil
}

// fail maps domain errors to HTTP statuses and logs server-side failures.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var verr memory.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	var nferr storage.NotFoundError
	if errors.As(err, &nferr) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	}

	var terr sync.TransportError
	if errors.As(err, &terr) {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Error("request failed",
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
}
