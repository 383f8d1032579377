package server

import (
	"net/http"
	"time"

	"github.com/cifraxlab/cifrax/internal/backup"
	"github.com/cifraxlab/cifrax/internal/records"
	"github.com/gin-gonic/gin"
)

type adminUserPayload struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

type adminCombinationPayload struct {
	combinationPayload
	UserEmail string `json:"user_email"`
	GroupName string `json:"group_name,omitempty"`
}

type userActivityPayload struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	CombinationCount int    `json:"combination_count"`
	FirstActiveAt    *int64 `json:"first_active_at_s"`
	LastActiveAt     *int64 `json:"last_active_at_s"`
}

type adminOverviewPayload struct {
	TotalUsers        int                   `json:"total_users"`
	TotalCombinations int                   `json:"total_combinations"`
	WeekdayHistogram  [7]int                `json:"weekday_histogram"`
	Users             []userActivityPayload `json:"users"`
	MostActive        []userActivityPayload `json:"most_active"`
}

func (h *httpHandler) handleAdminListUsers(c *gin.Context) {
	all, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]adminUserPayload, 0, len(all))
	for _, account := range all {
		payload = append(payload, adminUserPayload{
			ID:               account.AccountID,
			Email:            account.Email,
			Role:             string(account.Role),
			CreatedAtSeconds: account.CreatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": payload})
}

// handleAdminDeleteUser removes the account and everything it owns.
func (h *httpHandler) handleAdminDeleteUser(c *gin.Context) {
	accountID := c.Param("id")
	ownerID, err := records.NewOwnerID(accountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.records.PurgeOwner(c.Request.Context(), ownerID); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), accountID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAdminListCombinations(c *gin.Context) {
	combinations, err := h.records.ListAllCombinations(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	groups, err := h.records.ListAllGroups(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	all, err := h.accounts.List(c.Request.Context())
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

	emailByAccount := make(map[string]string, len(all))
	for _, account := range all {
		emailByAccount[account.AccountID] = account.Email
	}
	nameByGroup := make(map[string]string, len(groups))
	for _, group := range groups {
		nameByGroup[group.GroupID] = group.Name
	}

	payload := make([]adminCombinationPayload, 0, len(filtered))
	for _, combination := range filtered {
		payload = append(payload, adminCombinationPayload{
			combinationPayload: toCombinationPayload(combination),
			UserEmail:          emailByAccount[combination.OwnerID],
			GroupName:          nameByGroup[combination.GroupID],
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"combinations": payload,
		"total":        len(combinations),
		"filtered":     len(filtered),
	})
}

func (h *httpHandler) handleAdminDeleteCombination(c *gin.Context) {
	combinationID, err := records.NewRecordID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.records.AdminDeleteCombination(c.Request.Context(), combinationID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAdminOverview(c *gin.Context) {
	combinations, err := h.records.ListAllCombinations(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	all, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	users := make([]records.UserRef, 0, len(all))
	for _, account := range all {
		users = append(users, records.UserRef{UserID: account.AccountID, Email: account.Email})
	}

	overview := records.Overview(combinations, users)
	c.JSON(http.StatusOK, adminOverviewPayload{
		TotalUsers:        overview.TotalUsers,
		TotalCombinations: overview.TotalCombinations,
		WeekdayHistogram:  overview.WeekdayHistogram,
		Users:             toActivityPayload(overview.Users),
		MostActive:        toActivityPayload(overview.MostActive),
	})
}

func toActivityPayload(activities []records.UserActivity) []userActivityPayload {
	payload := make([]userActivityPayload, 0, len(activities))
	for _, activity := range activities {
		payload = append(payload, userActivityPayload{
			ID:               activity.UserID,
			Email:            activity.Email,
			CombinationCount: activity.CombinationCount,
			FirstActiveAt:    activity.FirstActiveAt,
			LastActiveAt:     activity.LastActiveAt,
		})
	}
	return payload
}

// handleAdminHealth probes the store with a lightweight count and reports
// connection state, round-trip latency and total record count.
func (h *httpHandler) handleAdminHealth(c *gin.Context) {
	started := time.Now()
	count, err := h.records.CountCombinations(c.Request.Context())
	latency := time.Since(started).Milliseconds()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"connected":  false,
			"latency_ms": latency,
			"error":      "store_unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":     true,
		"latency_ms":    latency,
		"total_records": count,
	})
}

func (h *httpHandler) handleAdminExport(c *gin.Context) {
	doc, err := h.backup.Export(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type importRequestPayload struct {
	Mode     string          `json:"mode"`
	Document backup.Document `json:"document"`
}

func (h *httpHandler) handleAdminImport(c *gin.Context) {
	var request importRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	mode, err := backup.ParseMode(request.Mode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.backup.Import(c.Request.Context(), request.Document, mode); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAdminReset(c *gin.Context) {
	if err := h.backup.Reset(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
