// Package http implements the REST API for the Classroom Olympics progression engine.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/application/command"
	"github.com/olympus-hub/classroom-olympics/internal/application/query"
	"github.com/olympus-hub/classroom-olympics/internal/application/saga"
	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/internal/domain/snapshot"
	"github.com/olympus-hub/classroom-olympics/pkg/logger"
	"github.com/olympus-hub/classroom-olympics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Classroom Olympics API",
		"version":     "v1",
		"description": "REST API for the Classroom Olympics progression and award engine",
		"endpoints": map[string]string{
			"health":       "/health",
			"leaderboard":  "/api/v1/leaderboard",
			"players":      "/api/v1/players/{id}",
			"awards":       "/api/v1/awards",
			"activity_log": "/api/v1/activity-log",
			"snapshots":    "/api/v1/snapshots",
		},
		"documentation": "https://github.com/olympus-hub/classroom-olympics",
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Limit:  getQueryParamInt(r, "limit", 20),
		Offset: getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get leaderboard")
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		PageSize:   q.Limit,
		HasMore:    result.HasMore,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleGetPlayer handles GET /api/v1/players/{id}
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	if playerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Player ID is required")
		return
	}

	if s.deps.GetPlayerHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Player handler not configured")
		return
	}

	result, err := s.deps.GetPlayerHandler.Handle(r.Context(), query.GetPlayerQuery{PlayerID: playerID})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get player")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetRollHistory handles GET /api/v1/players/{id}/rolls
func (s *Server) handleGetRollHistory(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	if playerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Player ID is required")
		return
	}

	if s.deps.GetRollHistoryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Roll history handler not configured")
		return
	}

	q := query.GetRollHistoryQuery{
		PlayerID: playerID,
		Limit:    getQueryParamInt(r, "limit", 20),
	}

	result, err := s.deps.GetRollHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get roll history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetActivityLog handles GET /api/v1/activity-log
func (s *Server) handleGetActivityLog(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetActivityLogHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Activity log handler not configured")
		return
	}

	q := query.GetActivityLogQuery{
		PlayerID: getQueryParam(r, "player_id", ""),
		IssuedBy: getQueryParam(r, "issued_by", ""),
		Limit:    getQueryParamInt(r, "limit", 0),
	}

	// "since" accepts RFC3339, a date, or the shortcuts "today"/"week"
	// (classroom-local day boundaries).
	if since := getQueryParam(r, "since", ""); since != "" {
		switch since {
		case "today":
			q.Since = timeutil.ToUTC(timeutil.StartOfDay(timeutil.Now()))
		case "week":
			q.Since = timeutil.ToUTC(timeutil.StartOfWeek(timeutil.Now()))
		default:
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				t, err = timeutil.ParseDateAlmaty(since)
			}
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid_request", "since must be RFC3339, YYYY-MM-DD, \"today\", or \"week\"")
				return
			}
			q.Since = timeutil.ToUTC(t)
		}
	}

	result, err := s.deps.GetActivityLogHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get activity log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListSnapshots handles GET /api/v1/snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListSnapshotsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Snapshot handler not configured")
		return
	}

	q := query.ListSnapshotsQuery{
		Limit:  getQueryParamInt(r, "limit", 20),
		Offset: getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.ListSnapshotsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list snapshots")
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		PageSize:   q.Limit,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleExportSnapshot handles GET /api/v1/snapshots/export and
// GET /api/v1/snapshots/{id}/export. Without an ID the latest snapshot
// is exported. The checksum is verified before anything leaves the server.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.ExportSnapshotHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Snapshot export handler not configured")
		return
	}

	q := query.ExportSnapshotQuery{SnapshotID: r.PathValue("id")}

	result, err := s.deps.ExportSnapshotHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to export snapshot")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS (instructor actions)
// ══════════════════════════════════════════════════════════════════════════════

// registerPlayerRequest is the request body for POST /api/v1/players.
type registerPlayerRequest struct {
	PlayerID   string   `json:"player_id,omitempty"`
	Quests     []string `json:"quests,omitempty"`
	EnrolledBy string   `json:"enrolled_by,omitempty"`
}

// handleRegisterPlayer handles POST /api/v1/players
func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	if s.deps.EnrollmentSaga == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Enrollment saga not configured")
		return
	}

	var req registerPlayerRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	quests := make([]player.QuestID, len(req.Quests))
	for i, q := range req.Quests {
		quests[i] = player.QuestID(q)
	}

	enrolledBy := req.EnrolledBy
	if enrolledBy == "" {
		enrolledBy = "instructor:api"
	}

	result, err := s.deps.EnrollmentSaga.Execute(r.Context(), saga.EnrollmentInput{
		PlayerID:   req.PlayerID,
		Quests:     quests,
		EnrolledBy: enrolledBy,
	})
	if err != nil {
		if errors.Is(err, saga.ErrPlayerAlreadyEnrolled) {
			writeJSONError(w, http.StatusConflict, "already_enrolled", "Player is already enrolled")
			return
		}
		s.writeDomainError(w, r, err, "failed to enroll player")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"player_id":    result.State.ID,
		"level":        result.State.CurrentLevel,
		"welcome_gold": result.WelcomeGold,
		"version":      result.State.Version,
	})
}

// applyAwardRequest is the request body for POST /api/v1/awards.
type applyAwardRequest struct {
	AwardID     string `json:"award_id"`
	Kind        string `json:"kind"`
	PlayerID    string `json:"player_id"`
	Amount      int    `json:"amount"`
	QuestID     string `json:"quest_id,omitempty"`
	Skill       string `json:"skill,omitempty"`
	Description string `json:"description,omitempty"`
	IssuedBy    string `json:"issued_by"`
}

// awardResponse is the response body for a single applied award.
type awardResponse struct {
	AwardID        string       `json:"award_id"`
	PlayerID       string       `json:"player_id"`
	AlreadyApplied bool         `json:"already_applied"`
	Deltas         award.Deltas `json:"deltas"`
	TotalXP        int          `json:"total_xp"`
	Level          int          `json:"level"`
	LevelledUp     bool         `json:"levelled_up"`
	ResultVersion  int64        `json:"result_version"`
	AppliedAt      time.Time    `json:"applied_at"`
}

func toAwardResponse(res *command.ApplyAwardResult) awardResponse {
	return awardResponse{
		AwardID:        res.AwardID,
		PlayerID:       res.PlayerID,
		AlreadyApplied: res.AlreadyApplied,
		Deltas:         res.Deltas,
		TotalXP:        res.TotalXP,
		Level:          res.Level,
		LevelledUp:     res.LevelledUp,
		ResultVersion:  res.ResultVersion,
		AppliedAt:      res.AppliedAt,
	}
}

// handleApplyAward handles POST /api/v1/awards
func (s *Server) handleApplyAward(w http.ResponseWriter, r *http.Request) {
	if s.deps.ApplyAwardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Award handler not configured")
		return
	}

	var req applyAwardRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	cmd := command.ApplyAwardCommand{
		AwardID:       req.AwardID,
		Kind:          award.Kind(req.Kind),
		PlayerID:      req.PlayerID,
		Amount:        req.Amount,
		QuestID:       player.QuestID(req.QuestID),
		Skill:         player.SkillName(req.Skill),
		Description:   req.Description,
		IssuedBy:      req.IssuedBy,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.ApplyAwardHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to apply award")
		return
	}

	// Duplicates are reported, not rejected: the caller learns the award
	// already landed and nothing changed.
	status := http.StatusCreated
	if result.AlreadyApplied {
		status = http.StatusOK
	}

	writeJSON(w, status, toAwardResponse(result))
}

// bulkAwardRequest is the request body for POST /api/v1/awards/bulk.
type bulkAwardRequest struct {
	TemplateID  string   `json:"template_id"`
	Kind        string   `json:"kind"`
	Amount      int      `json:"amount"`
	QuestID     string   `json:"quest_id,omitempty"`
	Skill       string   `json:"skill,omitempty"`
	Description string   `json:"description,omitempty"`
	IssuedBy    string   `json:"issued_by"`
	TargetIDs   []string `json:"target_ids"`
}

// bulkFailure describes one failed player in a bulk award. Kind is the
// machine-readable classification; clients branch on it, not the message.
type bulkFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// bulkAwardResponse is the response body for a bulk award.
type bulkAwardResponse struct {
	TemplateID     string                 `json:"template_id"`
	TotalCount     int                    `json:"total_count"`
	SuccessCount   int                    `json:"success_count"`
	DuplicateCount int                    `json:"duplicate_count"`
	FailedCount    int                    `json:"failed_count"`
	Results        []awardResponse        `json:"results"`
	Errors         map[string]bulkFailure `json:"errors,omitempty"`
	CompletedAt    time.Time              `json:"completed_at"`
}

// toBulkAwardResponse flattens a fan-out result for the API, classifying
// each per-player failure so clients can tell a retryable timeout from a
// bad request.
func toBulkAwardResponse(result *command.BulkAwardResult) bulkAwardResponse {
	resp := bulkAwardResponse{
		TemplateID:     result.TemplateID,
		TotalCount:     result.TotalCount,
		SuccessCount:   result.SuccessCount,
		DuplicateCount: result.DuplicateCount,
		FailedCount:    result.FailedCount,
		Results:        make([]awardResponse, len(result.Results)),
		CompletedAt:    result.CompletedAt,
	}
	for i, res := range result.Results {
		resp.Results[i] = toAwardResponse(res)
	}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]bulkFailure, len(result.Errors))
		for id, ferr := range result.Errors {
			resp.Errors[id] = bulkFailure{Kind: errorKind(ferr), Message: ferr.Error()}
		}
	}
	return resp
}

// handleBulkAward handles POST /api/v1/awards/bulk
func (s *Server) handleBulkAward(w http.ResponseWriter, r *http.Request) {
	if s.deps.BulkAwardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Bulk award handler not configured")
		return
	}

	var req bulkAwardRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	cmd := command.BulkAwardCommand{
		TemplateID: req.TemplateID,
		Template: award.Template{
			ID:          req.TemplateID,
			Kind:        award.Kind(req.Kind),
			Amount:      req.Amount,
			QuestID:     player.QuestID(req.QuestID),
			Skill:       player.SkillName(req.Skill),
			Description: req.Description,
			IssuedBy:    req.IssuedBy,
		},
		TargetIDs:     req.TargetIDs,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.BulkAwardHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to apply bulk award")
		return
	}

	resp := toBulkAwardResponse(result)

	// Partial failure is still a processed batch: per-player outcomes
	// carry the detail, the status reflects whether everything landed.
	status := http.StatusCreated
	if result.FailedCount > 0 {
		status = http.StatusMultiStatus
	}

	writeJSON(w, status, resp)
}

// movePlayerRequest is the request body for POST /api/v1/players/{id}/move.
type movePlayerRequest struct {
	// StationID pins the station the move must land on. Omitted or zero
	// means no expectation; a mismatch fails the move without consuming it.
	StationID int `json:"station_id,omitempty"`

	// RollValue pre-supplies the roll in [0,100). Omitted means the
	// engine rolls itself.
	RollValue *int `json:"roll_value,omitempty"`
}

// handleMovePlayer handles POST /api/v1/players/{id}/move
func (s *Server) handleMovePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	if playerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Player ID is required")
		return
	}

	if s.deps.MovePlayerHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Move handler not configured")
		return
	}

	var req movePlayerRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	cmd := command.MovePlayerCommand{
		PlayerID:      playerID,
		StationID:     req.StationID,
		RollValue:     -1,
		CorrelationID: getRequestID(r.Context()),
	}
	if req.RollValue != nil {
		cmd.RollValue = *req.RollValue
	}

	result, err := s.deps.MovePlayerHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to move player")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id":       result.PlayerID,
		"station_id":      result.Outcome.StationID,
		"station_name":    result.StationName,
		"skill_used":      result.SkillUsed,
		"skill_level":     result.Outcome.SkillLevel,
		"roll_value":      result.Outcome.RollValue,
		"success_chance":  result.Outcome.SuccessChance,
		"succeeded":       result.Outcome.Succeeded,
		"rewards":         result.Outcome.Rewards,
		"new_position":    result.NewPosition,
		"moves_remaining": result.MovesRemaining,
		"total_xp":        result.TotalXP,
		"level":           result.Level,
		"result_version":  result.ResultVersion,
	})
}

// createSnapshotRequest is the request body for POST /api/v1/snapshots.
type createSnapshotRequest struct {
	IssuedBy string `json:"issued_by"`
}

// handleCreateSnapshot handles POST /api/v1/snapshots. Snapshots created
// over the API are always manual and must carry an issuer.
func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateSnapshotHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Snapshot handler not configured")
		return
	}

	var req createSnapshotRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	result, err := s.deps.CreateSnapshotHandler.Handle(r.Context(), command.CreateSnapshotCommand{
		TriggeredBy:   snapshot.TriggerManual,
		IssuedBy:      req.IssuedBy,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to create snapshot")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"snapshot_id":       result.Snapshot.ID,
		"created_at":        result.Snapshot.CreatedAt,
		"triggered_by":      result.Snapshot.TriggeredBy,
		"issued_by":         result.Snapshot.IssuedBy,
		"player_count":      result.Snapshot.PlayerCount,
		"total_xp_recorded": result.Snapshot.TotalXPRecorded,
		"checksum":          result.Snapshot.Checksum,
		"evicted":           result.Evicted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// maxBodyBytes bounds request bodies on write endpoints.
const maxBodyBytes = 1 << 20 // 1 MB

// decodeBody decodes the JSON request body into dst. When optional is true
// an empty body is accepted and dst is left zero-valued. Returns false if a
// response has already been written.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return true
		}
		s.logger.Warn("failed to decode request body", logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}

// errorKind classifies a failure for API clients.
func errorKind(err error) string {
	switch {
	case errors.Is(err, shared.ErrTimeout):
		return "timeout"
	case errors.Is(err, shared.ErrStoreUnavailable):
		return "store_unavailable"
	case shared.IsNotFound(err):
		return "not_found"
	case shared.IsValidation(err):
		return "validation"
	case shared.IsConflict(err):
		return "conflict"
	case errors.Is(err, shared.ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

// writeDomainError maps a domain error to an HTTP status and writes it.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	requestID := getRequestID(r.Context())

	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, shared.ErrAlreadyExists):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		s.logger.Error(logMsg, logger.Err(err), logger.String("request_id", requestID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
