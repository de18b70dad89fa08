package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/kara-go/internal/domain"
	redisrepo "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/sequencer"
	"github.com/kirinyoku/kara-go/internal/service"
	"github.com/kirinyoku/kara-go/internal/service/admission"
	"github.com/kirinyoku/kara-go/internal/service/query"
	"github.com/kirinyoku/kara-go/internal/service/staff"
	"github.com/kirinyoku/kara-go/internal/service/visits"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Playback is the slice of the sequencer runner the operator endpoints
// need.
type Playback interface {
	Pause()
	Resume()
	Reset()
	State() sequencer.State
}

// Screen is the playback screen's side of the player bridge: what to show
// and where to report what happened.
type Screen interface {
	Current() (url string, ok bool)
	Report(ev sequencer.PlayerEvent)
}

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	playback Playback,
	screen Screen,
	jwtSecret string,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/tables", handleListTables(svcs))
	r.GET("/tables/:id", handleGetTable(svcs))
	r.POST("/tables/:id/reserve", handleReserveTable(svcs, idem))

	r.GET("/visits/:id", handleGetVisit(svcs))
	r.POST("/visits/:id/join", handleJoinVisit(svcs))
	r.POST("/visits/:id/leave", handleLeaveVisit(svcs))
	r.POST("/visits/:id/waiter", handleCallWaiter(svcs))

	r.POST("/visits/:id/songs", handleRequestSong(svcs, idem))
	r.DELETE("/visits/:id/songs/:songID", handleRemoveSong(svcs))
	r.POST("/visits/:id/songs/:songID/like", handleLikeSong(svcs))

	r.GET("/queue", handleGetQueue(svcs))

	// Staff API
	st := r.Group("/staff", StaffAuth(jwtSecret))
	{
		st.POST("/tables", handleCreateTable(svcs))
		st.PATCH("/tables/:id/active", handleSetTableActive(svcs))

		st.POST("/visits/:id/accept", handleAcceptVisit(svcs))
		st.POST("/visits/:id/reject", handleRejectVisit(svcs))
		st.POST("/visits/:id/complete", handleCompleteVisit(svcs))
		st.POST("/visits/:id/exit", handleHostExit(svcs))
		st.POST("/visits/:id/guests/accept", handleAcceptGuest(svcs))
		st.POST("/visits/:id/guests/reject", handleRejectGuest(svcs))

		st.POST("/playback/pause", handlePlayback(playback, "pause"))
		st.POST("/playback/resume", handlePlayback(playback, "resume"))
		st.POST("/playback/reset", handlePlayback(playback, "reset"))
		st.GET("/playback/state", handlePlaybackState(playback))

		st.GET("/playback/current", handlePlaybackCurrent(screen))
		st.POST("/playback/events", handlePlayerEvent(screen))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List tables
// @Success  200  {array}  domain.Table
// @Router   /tables [get]
func handleListTables(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := svcs.Query.ListTables(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, tables, "public, max-age=60", true)
	}
}

// @Summary  Get table
// @Param    id  path  int  true  "Table ID"
// @Success  200  {object}  domain.Table
// @Failure  404  {object}  ErrorResponse
// @Router   /tables/{id} [get]
func handleGetTable(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tableID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Query.GetTable(c.Request.Context(), tableID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, t, "public, max-age=60", true)
	}
}

// @Summary  Reserve table (idempotent)
// @Param    id  path  int  true  "Table ID"
// @Param    req body  ReserveTableRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} ReserveTableResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "table occupied / idem in progress"
// @Router   /tables/{id}/reserve [post]
func handleReserveTable(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		tableID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReserveTableRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReserve(tableID, idemKey)

			if replayed(c, idem, idemStorageKey, idemKey) {
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayed(c, idem, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		visit, err := svcs.Visits.Reserve(
			c.Request.Context(),
			tableID,
			req.UserID,
			req.UserName,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := ReserveTableResponse{
			VisitID: visit.ID.String(),
			TableID: visit.TableID,
			Status:  string(visit.Status),
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get visit with songs, participants and guest requests
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Success  200  {object}  domain.Visit
// @Failure  404  {object}  ErrorResponse
// @Router   /visits/{id} [get]
func handleGetVisit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		v, err := svcs.Query.GetVisit(c.Request.Context(), visitID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 5s: the guest screen polls this
		writeJSONWithCache(c, http.StatusOK, v, "public, max-age=5", true)
	}
}

// @Summary  Request to join a visit
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  JoinVisitRequest true "payload"
// @Success  201 {object} JoinVisitResponse
// @Failure  404 {object} ErrorResponse
// @Router   /visits/{id}/join [post]
func handleJoinVisit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req JoinVisitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		gr, err := svcs.Visits.RequestJoin(
			c.Request.Context(),
			visitID,
			req.UserID,
			req.UserName,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, JoinVisitResponse{
			RequestID: gr.ID.String(),
			Status:    string(gr.Status),
		})
	}
}

// @Summary  Leave a visit (guest)
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  LeaveVisitRequest true "payload"
// @Success  204
// @Router   /visits/{id}/leave [post]
func handleLeaveVisit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req LeaveVisitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Visits.GuestExit(c.Request.Context(), visitID, req.UserID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Toggle call-waiter flag
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  CallWaiterRequest true "payload"
// @Success  204
// @Router   /visits/{id}/waiter [post]
func handleCallWaiter(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CallWaiterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Visits.SetCallWaiter(c.Request.Context(), visitID, req.On); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Request a song (idempotent, rate-limited)
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  RequestSongRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} RequestSongResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "round full / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /visits/{id}/songs [post]
func handleRequestSong(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req RequestSongRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemSong(visitID.String(), idemKey)

			if replayed(c, idem, idemStorageKey, idemKey) {
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayed(c, idem, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		song, err := svcs.Admission.RequestSong(
			c.Request.Context(),
			visitID,
			admission.SongRequest{
				TrackID:     req.TrackID,
				Title:       req.Title,
				DurationSec: req.DurationSec,
				Thumbnail:   req.Thumbnail,
				Greeting:    req.Greeting,
				RequestedBy: req.RequestedBy,
			},
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if errors.Is(err, admission.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"},
				)
				return
			}
			respondErr(c, err)
			return
		}

		resp := RequestSongResponse{
			SongID: song.ID.String(),
			Round:  song.Round,
			SeqNum: song.SeqNum,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Remove a pending song
// @Param    id      path  string  true  "Visit ID (uuid)"
// @Param    songID  path  string  true  "Song ID (uuid)"
// @Success  204
// @Failure  409 {object} ErrorResponse "song already playing"
// @Router   /visits/{id}/songs/{songID} [delete]
func handleRemoveSong(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		songID, ok := parseUUIDParam(c, "songID")
		if !ok {
			return
		}
		if err := svcs.Admission.RemoveSong(c.Request.Context(), visitID, songID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Like a song
// @Param    id      path  string  true  "Visit ID (uuid)"
// @Param    songID  path  string  true  "Song ID (uuid)"
// @Success  200 {object} LikeSongResponse
// @Router   /visits/{id}/songs/{songID}/like [post]
func handleLikeSong(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		songID, ok := parseUUIDParam(c, "songID")
		if !ok {
			return
		}
		likes, err := svcs.Admission.LikeSong(c.Request.Context(), visitID, songID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, LikeSongResponse{Likes: likes})
	}
}

// @Summary  Cross-table song queue in playback order
// @Success  200  {array}  domain.QueueEntry
// @Router   /queue [get]
func handleGetQueue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svcs.Query.CrossTableQueue(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 2s: the playback screen polls this
		writeJSONWithCache(c, http.StatusOK, entries, "public, max-age=2", true)
	}
}

// @Summary  Create table
// @Param    req body  CreateTableRequest true "payload"
// @Success  201 {object} CreateTableResponse
// @Router   /staff/tables [post]
func handleCreateTable(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTableRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Staff.CreateTable(c.Request.Context(), domain.Table{
			Name:          req.Name,
			Abbreviation:  req.Abbreviation,
			SongLimit:     req.SongLimit,
			WelcomeVideo:  req.WelcomeVideo,
			WelcomeExempt: req.WelcomeExempt,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateTableResponse{TableID: id})
	}
}

// @Summary  Activate or deactivate a table
// @Param    id  path  int  true  "Table ID"
// @Param    req body  SetTableActiveRequest true "payload"
// @Success  204
// @Router   /staff/tables/{id}/active [patch]
func handleSetTableActive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tableID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req SetTableActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Staff.SetTableActive(c.Request.Context(), tableID, req.Active); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Accept a pending visit
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Success  204
// @Router   /staff/visits/{id}/accept [post]
func handleAcceptVisit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Visits.Accept(c.Request.Context(), visitID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Reject a pending visit
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Success  204
// @Router   /staff/visits/{id}/reject [post]
func handleRejectVisit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Visits.Reject(c.Request.Context(), visitID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Complete an online visit
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  CompleteVisitRequest true "payload"
// @Success  200 {object} visits.CompleteResult
// @Router   /staff/visits/{id}/complete [post]
func handleCompleteVisit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CompleteVisitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svcs.Visits.Complete(
			c.Request.Context(),
			visitID,
			req.Points,
			req.ConsumptionCents,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Cancel a visit on the host's behalf
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Success  204
// @Router   /staff/visits/{id}/exit [post]
func handleHostExit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Visits.HostExit(c.Request.Context(), visitID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Accept a guest join request
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  GuestDecisionRequest true "payload"
// @Success  204
// @Router   /staff/visits/{id}/guests/accept [post]
func handleAcceptGuest(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req GuestDecisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Visits.AcceptGuest(c.Request.Context(), visitID, req.UserID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Reject a guest join request
// @Param    id  path  string  true  "Visit ID (uuid)"
// @Param    req body  GuestDecisionRequest true "payload"
// @Success  204
// @Router   /staff/visits/{id}/guests/reject [post]
func handleRejectGuest(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req GuestDecisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Visits.RejectGuest(c.Request.Context(), visitID, req.UserID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Playback control (pause/resume/reset)
// @Success  202
// @Router   /staff/playback/{action} [post]
func handlePlayback(playback Playback, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if playback == nil {
			c.JSON(http.StatusServiceUnavailable,
				ErrorResponse{Error: "playback not running"})
			return
		}
		switch action {
		case "pause":
			playback.Pause()
		case "resume":
			playback.Resume()
		case "reset":
			playback.Reset()
		}
		c.Status(http.StatusAccepted)
	}
}

// @Summary  Current playback state
// @Success  200 {object} sequencer.State
// @Router   /staff/playback/state [get]
func handlePlaybackState(playback Playback) gin.HandlerFunc {
	return func(c *gin.Context) {
		if playback == nil {
			c.JSON(http.StatusServiceUnavailable,
				ErrorResponse{Error: "playback not running"})
			return
		}
		c.JSON(http.StatusOK, playback.State())
	}
}

// @Summary  Media the playback screen should be showing
// @Success  200 {object} PlaybackCurrentResponse
// @Router   /staff/playback/current [get]
func handlePlaybackCurrent(screen Screen) gin.HandlerFunc {
	return func(c *gin.Context) {
		if screen == nil {
			c.JSON(http.StatusServiceUnavailable,
				ErrorResponse{Error: "playback not running"})
			return
		}
		url, playing := screen.Current()
		c.JSON(http.StatusOK, PlaybackCurrentResponse{URL: url, Playing: playing})
	}
}

// @Summary  Report a player event from the playback screen
// @Param    req body  PlayerEventRequest true "payload"
// @Success  202
// @Router   /staff/playback/events [post]
func handlePlayerEvent(screen Screen) gin.HandlerFunc {
	return func(c *gin.Context) {
		if screen == nil {
			c.JSON(http.StatusServiceUnavailable,
				ErrorResponse{Error: "playback not running"})
			return
		}
		var req PlayerEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		screen.Report(sequencer.PlayerEvent{
			Type:        sequencer.PlayerEventType(req.Type),
			Code:        req.Code,
			BufferedSec: req.BufferedSec,
		})
		c.Status(http.StatusAccepted)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

// replayed serves a stored idempotent result if one exists.
func replayed(
	c *gin.Context,
	idem *redisrepo.IdempotencyStore,
	storageKey, idemKey string,
) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey)
	if !ok {
		return false
	}
	c.Header("Idempotency-Key", idemKey)
	c.Data(
		http.StatusCreated,
		"application/json; charset=utf-8",
		[]byte(payload),
	)
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// admission service
	case errors.Is(err, admission.ErrRoundFull):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "round is full"})
		return
	case errors.Is(err, admission.ErrVisitNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "visit not found"})
		return
	case errors.Is(err, admission.ErrSongNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "song not found"})
		return
	case errors.Is(err, admission.ErrSongNotPending):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "song already playing"})
		return
	// visits service
	case errors.Is(err, visits.ErrTableNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "table not found"})
		return
	case errors.Is(err, visits.ErrTableOccupied):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "table occupied"})
		return
	case errors.Is(err, visits.ErrTableInactive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "table out of service"})
		return
	case errors.Is(err, visits.ErrVisitNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "visit not found"})
		return
	case errors.Is(err, visits.ErrVisitClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "visit closed"})
		return
	case errors.Is(err, visits.ErrGuestNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "guest request not found"})
		return
	case errors.Is(err, visits.ErrNotParticipant):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not a participant"})
		return
	case errors.Is(err, visits.ErrStoreUnavailable):
		c.Header("Retry-After", "3")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable, retry"})
		return
	// query service
	case errors.Is(err, query.ErrTableNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "table not found"})
		return
	case errors.Is(err, query.ErrVisitNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "visit not found"})
		return
	// staff service
	case errors.Is(err, staff.ErrTableConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "table already exists"})
		return
	case errors.Is(err, staff.ErrTableNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "table not found"})
		return
	case errors.Is(err, staff.ErrTableOccupied):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "table occupied"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
