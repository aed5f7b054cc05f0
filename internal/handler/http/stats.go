package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// maxStreakUsers bounds one streak lookup.
const maxStreakUsers = 500

type StatsHandler interface {
	MonthlyStats(w http.ResponseWriter, r *http.Request)
	Streaks(w http.ResponseWriter, r *http.Request)
}

type statsHandlerImpl struct {
	statsService stats.StatsService
	clock        *clock.Resolver
}

func NewStatsHandler(statsService stats.StatsService, resolver *clock.Resolver) StatsHandler {
	return &statsHandlerImpl{
		statsService: statsService,
		clock:        resolver,
	}
}

type monthlyStatsResponse struct {
	UserID string `json:"user_id"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	stats.MonthlyStats
}

// canView reports whether the caller may read another user's figures.
func canView(claims user.Claims, userID string) bool {
	return userID == claims.UserID || user.HasPermission(claims.Role, user.PermissionAttendanceViewAll)
}

// MonthlyStats implements StatsHandler. Month and year default to the current regional month.
func (h *statsHandlerImpl) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	query := r.URL.Query()

	today := h.clock.Today()
	month, year := int(today.Month()), today.Year()

	var errs validator.ValidationErrors
	if v := query.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			errs.Add("month", "month must be a number")
		}
		month = m
	}
	if v := query.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			errs.Add("year", "year must be a number")
		}
		year = y
	}
	userID := claims.UserID
	if v := query.Get("user_id"); v != "" {
		if !validator.IsValidUUID(v) {
			errs.Add("user_id", "user_id must be a valid UUID")
		}
		userID = v
	}
	if err := errs.Err(); err != nil {
		response.HandleError(w, err)
		return
	}

	if !canView(claims, userID) {
		response.HandleError(w, user.ErrInsufficientPermissions)
		return
	}

	result, err := h.statsService.GetMonthlyStats(r.Context(), claims.SchoolID, userID, month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, monthlyStatsResponse{
		UserID:       userID,
		Month:        month,
		Year:         year,
		MonthlyStats: result,
	})
}

// Streaks implements StatsHandler. user_ids is a comma separated list; the caller by default.
func (h *statsHandlerImpl) Streaks(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	userIDs := []string{claims.UserID}
	if v := r.URL.Query().Get("user_ids"); v != "" {
		userIDs = userIDs[:0]
		var errs validator.ValidationErrors
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if !validator.IsValidUUID(id) {
				errs.Add("user_ids", "user_ids must contain valid UUIDs")
				break
			}
			userIDs = append(userIDs, id)
		}
		if len(userIDs) > maxStreakUsers {
			errs.Add("user_ids", "too many user_ids")
		}
		if err := errs.Err(); err != nil {
			response.HandleError(w, err)
			return
		}
	}

	for _, id := range userIDs {
		if !canView(claims, id) {
			response.HandleError(w, user.ErrInsufficientPermissions)
			return
		}
	}

	streaks, err := h.statsService.ComputeStreaks(r.Context(), claims.SchoolID, userIDs)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, map[string]interface{}{"streaks": streaks})
}
