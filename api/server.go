package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"sportsbook/models"
	"sportsbook/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server exposes the sportsbook services over HTTP
type Server struct {
	accounts   service.AccountService
	wagers     service.WagerService
	events     service.EventService
	settlement service.SettlementService
}

// NewServer creates a new HTTP server over the sportsbook services
func NewServer(accounts service.AccountService, wagers service.WagerService, events service.EventService, settlement service.SettlementService) *Server {
	return &Server{
		accounts:   accounts,
		wagers:     wagers,
		events:     events,
		settlement: settlement,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	accounts := r.Group("/accounts")
	accounts.POST("", s.register)
	accounts.GET("/:id", s.getAccount)
	accounts.GET("/:id/wagers", s.listWagers)
	accounts.GET("/:id/history", s.balanceHistory)

	wagers := r.Group("/wagers")
	wagers.POST("", s.placeWager)
	wagers.GET("/:id", s.getWager)

	events := r.Group("/events")
	events.POST("", s.createEvent)
	events.GET("", s.listEvents)
	events.GET("/by-teams/:home/:away/:date", s.getEventByTeams)
	events.PUT("/external-id", s.setExternalID)
	events.GET("/:id", s.getEvent)
	events.PUT("/:id/quotes", s.updateQuotes)
	events.POST("/:id/settle", s.settleEvent)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	}
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	account, err := s.accounts.Register(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccountResponse(account))
}

func (s *Server) getAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	account, err := s.accounts.GetAccount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(account))
}

func (s *Server) listWagers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	wagers, err := s.wagers.ListWagers(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wagers": toWagerResponses(wagers)})
}

func (s *Server) balanceHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	rows, err := s.accounts.GetBalanceHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": toHistoryResponses(rows)})
}

func (s *Server) placeWager(c *gin.Context) {
	var req placeWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	wager, err := s.wagers.PlaceWager(c.Request.Context(), service.PlaceWagerRequest{
		AccountID: req.AccountID,
		EventID:   req.EventID,
		Kind:      models.BetKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Stake:     req.Stake,
		Odds:      req.Odds,
		Line:      req.Line,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWagerResponse(wager))
}

func (s *Server) getWager(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	wager, err := s.wagers.GetWager(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWagerResponse(wager))
}

func (s *Server) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	date, err := time.Parse(dateLayout, req.ScheduledDate)
	if err != nil {
		badRequest(c, "scheduledDate", "expected YYYY-MM-DD")
		return
	}

	event, err := s.events.CreateEvent(c.Request.Context(), service.CreateEventRequest{
		ExternalID:    req.ExternalID,
		HomeTeam:      req.HomeTeam,
		AwayTeam:      req.AwayTeam,
		ScheduledDate: date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(event))
}

func (s *Server) listEvents(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			badRequest(c, "date", "expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	events, err := s.events.ListEventsByDate(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"date": date.Format(dateLayout), "events": out})
}

func (s *Server) getEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	event, err := s.events.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (s *Server) getEventByTeams(c *gin.Context) {
	date, err := time.Parse(dateLayout, c.Param("date"))
	if err != nil {
		badRequest(c, "date", "expected YYYY-MM-DD")
		return
	}

	event, err := s.events.GetEventByTeams(c.Request.Context(), c.Param("home"), c.Param("away"), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (s *Server) setExternalID(c *gin.Context) {
	var req setExternalIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	date, err := time.Parse(dateLayout, req.ScheduledDate)
	if err != nil {
		badRequest(c, "scheduledDate", "expected YYYY-MM-DD")
		return
	}

	event, err := s.events.SetExternalID(c.Request.Context(), service.SetExternalIDRequest{
		HomeTeam:      req.HomeTeam,
		AwayTeam:      req.AwayTeam,
		ScheduledDate: date,
		ExternalID:    req.ExternalID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (s *Server) updateQuotes(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req quotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	event, err := s.events.UpdateQuotes(c.Request.Context(), id, req.toQuoteBoard())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

// settleEvent answers 202 when the game has not finished yet
func (s *Server) settleEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := s.settlement.SettleEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if !result.IsReady() {
		status = http.StatusAccepted
	}
	c.JSON(status, toSettlementResponse(result))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id", "must be a positive integer")
		return 0, false
	}
	return id, true
}

// limitQuery reads ?limit=, zero means the service default
func limitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		badRequest(c, "limit", "must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
