package server

import (
	"io"
	"net/http"
	"time"

	"github.com/cifraxlab/cifrax/internal/records"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

type groupPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Color            string `json:"color"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

type groupRequestPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type combinationPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Numbers          [3]int `json:"numbers"`
	GroupID          string `json:"group_id,omitempty"`
	Notes            string `json:"notes,omitempty"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

type combinationRequestPayload struct {
	Name    string `json:"name"`
	Numbers [3]int `json:"numbers"`
	GroupID string `json:"group_id"`
	Notes   string `json:"notes"`
}

type statsPayload struct {
	TotalCombinations int            `json:"total_combinations"`
	TotalGroups       int            `json:"total_groups"`
	PerGroupCounts    map[string]int `json:"per_group_counts"`
	LastCreatedAt     *int64         `json:"last_created_at_s"`
	WeekdayHistogram  [7]int         `json:"weekday_histogram"`
}

func toGroupPayload(group records.Group) groupPayload {
	return groupPayload{
		ID:               group.GroupID,
		Name:             group.Name,
		Color:            group.Color,
		CreatedAtSeconds: group.CreatedAtSeconds,
	}
}

func toCombinationPayload(combination records.Combination) combinationPayload {
	return combinationPayload{
		ID:               combination.CombinationID,
		Name:             combination.Name,
		Numbers:          combination.Numbers(),
		GroupID:          combination.GroupID,
		Notes:            combination.Notes,
		CreatedAtSeconds: combination.CreatedAtSeconds,
	}
}

func (h *httpHandler) handleListGroups(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	groups, err := h.records.ListGroups(c.Request.Context(), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]groupPayload, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, toGroupPayload(group))
	}
	c.JSON(http.StatusOK, gin.H{"groups": payload})
}

func (h *httpHandler) handleCreateGroup(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	var request groupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	group, err := h.records.CreateGroup(c.Request.Context(), ownerID, request.Name, request.Color)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishChange(ownerID.String(), RecordKindGroup, group.GroupID)
	c.JSON(http.StatusCreated, toGroupPayload(group))
}

func (h *httpHandler) handleDeleteGroup(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	groupID, err := records.NewRecordID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.records.DeleteGroup(c.Request.Context(), ownerID, groupID); err != nil {
		h.respondError(c, err)
		return
	}
	h.publishChange(ownerID.String(), RecordKindGroup, groupID.String())
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCombinations(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	combinations, err := h.records.ListCombinations(c.Request.Context(), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	groups, err := h.records.ListGroups(c.Request.Context(), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	query := records.Query{
		Search:      c.Query("search"),
		GroupFilter: c.DefaultQuery("group", records.GroupFilterAll),
		Sort:        records.ParseSortMode(c.Query("sort")),
	}
	filtered := query.Apply(combinations, groups)

	payload := make([]combinationPayload, 0, len(filtered))
	for _, combination := range filtered {
		payload = append(payload, toCombinationPayload(combination))
	}
	c.JSON(http.StatusOK, gin.H{
		"combinations": payload,
		"total":        len(combinations),
		"filtered":     len(filtered),
	})
}

func (h *httpHandler) handleCreateCombination(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	var request combinationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	combination, err := h.records.CreateCombination(c.Request.Context(), ownerID, records.CombinationFields{
		Name:    request.Name,
		Numbers: records.NumberTriple(request.Numbers),
		GroupID: request.GroupID,
		Notes:   request.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishChange(ownerID.String(), RecordKindCombination, combination.CombinationID)
	c.JSON(http.StatusCreated, toCombinationPayload(combination))
}

func (h *httpHandler) handleUpdateCombination(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	combinationID, err := records.NewRecordID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request combinationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	combination, err := h.records.UpdateCombination(c.Request.Context(), ownerID, combinationID, records.CombinationFields{
		Name:    request.Name,
		Numbers: records.NumberTriple(request.Numbers),
		GroupID: request.GroupID,
		Notes:   request.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishChange(ownerID.String(), RecordKindCombination, combination.CombinationID)
	c.JSON(http.StatusOK, toCombinationPayload(combination))
}

func (h *httpHandler) handleDeleteCombination(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	combinationID, err := records.NewRecordID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.records.DeleteCombination(c.Request.Context(), ownerID, combinationID); err != nil {
		h.respondError(c, err)
		return
	}
	h.publishChange(ownerID.String(), RecordKindCombination, combinationID.String())
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleStats(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}
	combinations, err := h.records.ListCombinations(c.Request.Context(), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	groups, err := h.records.ListGroups(c.Request.Context(), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	summary := records.Summarize(combinations, groups)
	c.JSON(http.StatusOK, statsPayload{
		TotalCombinations: summary.TotalCombinations,
		TotalGroups:       summary.TotalGroups,
		PerGroupCounts:    summary.PerGroupCounts,
		LastCreatedAt:     summary.LastCreatedAt,
		WeekdayHistogram:  summary.WeekdayHistogram,
	})
}

type eventPayload struct {
	Kind      RecordKind `json:"kind"`
	RecordIDs []string   `json:"record_ids"`
	Timestamp int64      `json:"timestamp_s"`
}

// handleEvents streams record-change notifications for the authenticated
// owner as server-sent events, with periodic heartbeats to keep proxies from
// closing the connection.
func (h *httpHandler) handleEvents(c *gin.Context) {
	ownerID, ok := h.currentOwner(c)
	if !ok {
		return
	}

	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context(), ownerID.String())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// An immediate heartbeat flushes the response headers so clients see the
	// stream open without waiting for the first change.
	c.SSEvent(realtimeEventHeartbeat, gin.H{})
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, eventPayload{
				Kind:      message.Kind,
				RecordIDs: message.RecordIDs,
				Timestamp: message.Timestamp.Unix(),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) publishChange(ownerID string, kind RecordKind, recordIDs ...string) {
	h.dispatcher.Publish(RealtimeMessage{
		OwnerID:   ownerID,
		EventType: RealtimeEventRecordChanged,
		Kind:      kind,
		RecordIDs: recordIDs,
		Timestamp: time.Now().UTC(),
	})
	h.logger.Debug("record change published",
		zap.String("owner_id", ownerID),
		zap.String("kind", string(kind)))
}
