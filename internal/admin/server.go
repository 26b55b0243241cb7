package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yanun0323/logs"

	"treasury/internal/model/enum"
	"treasury/internal/repository"
	"treasury/pkg/exception"
)

// Server wires the admin HTTP endpoints.
type Server struct {
	Router *gin.Engine

	repos *repository.Repos
	rules *RuleManager
}

func NewServer(repos *repository.Repos, rules *RuleManager) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	s := &Server{
		Router: r,
		repos:  repos,
		rules:  rules,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api/v1")
	{
		api.POST("/rules", s.createRule)
		api.GET("/rules/:id", s.getRule)
		api.PATCH("/rules/:id", s.updateRule)
		api.POST("/rules/:id/deactivate", s.deactivateRule)
		api.POST("/rules/:id/reactivate", s.reactivateRule)
		api.PUT("/rules/:id/reactivation-time", s.setReactivationTime)

		api.GET("/pipelines", s.listPipelines)
		api.GET("/pipelines/:id/orders", s.listPipelineOrders)
		api.GET("/balances", s.listBalances)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logs.Infof("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createRule(c *gin.Context) {
	var in RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	rule, err := s.rules.CreateRule(c.Request.Context(), in)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	rule, err := s.rules.GetRule(c.Request.Context(), id)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var upd RuleUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	rule, err := s.rules.UpdateRule(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deactivateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	rule, err := s.rules.DeactivateRule(c.Request.Context(), id)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) reactivateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	rule, err := s.rules.ReactivateRule(c.Request.Context(), id)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) setReactivationTime(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body struct {
		ReactivationTime *int `json:"reactivationTime"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	rule, err := s.rules.SetReactivationTime(c.Request.Context(), id, body.ReactivationTime)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) listPipelines(c *gin.Context) {
	statuses := []enum.PipelineStatus{
		enum.PipelineStatusCreated,
		enum.PipelineStatusInProgress,
		enum.PipelineStatusComplete,
		enum.PipelineStatusStopped,
		enum.PipelineStatusFailed,
	}
	if raw := c.Query("status"); raw != "" {
		statuses = []enum.PipelineStatus{enum.PipelineStatus(raw)}
	}

	pipelines, err := s.repos.Pipeline.ByStatuses(c.Request.Context(), statuses)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, pipelines)
}

func (s *Server) listPipelineOrders(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	orders, err := s.repos.Order.ByPipeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) listBalances(c *gin.Context) {
	balances, err := s.repos.Balance.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return 0, false
	}
	return uint(id), true
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exception.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exception.ErrInvalidArgument),
		errors.Is(err, exception.ErrAlreadyExists),
		errors.Is(err, exception.ErrRuleProcessing),
		errors.Is(err, exception.ErrCommandUnsupported),
		errors.Is(err, exception.ErrSystemUnsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
