package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/identity"
	"github.com/spigell/resource-matcher/internal/logger"
	"github.com/spigell/resource-matcher/internal/profile"
)

const defaultActivityLimit = 20

var errStoreDisabled = errors.New("user store is not configured")

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) questions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": profile.Questionnaire})
}

func (s *Server) listResources(c *gin.Context) {
	resources, err := s.deps.Catalog.ListVerified(c.Request.Context())
	if err != nil {
		requestLog(c).Error("list resources failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, errors.New("failed to fetch resources"))
		return
	}

	matched := catalog.Search(resources, c.Query("q"), c.DefaultQuery("category", catalog.CategoryAll))
	if c.Query("group") == "category" {
		c.JSON(http.StatusOK, gin.H{
			"groups": matched.ReportByCategory(),
			"count":  matched.Len(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"resources": matched.Items,
		"count":     matched.Len(),
	})
}

type categoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// categories lists the categories present in the verified catalog for the search filter.
func (s *Server) categories(c *gin.Context) {
	resources, err := s.deps.Catalog.ListVerified(c.Request.Context())
	if err != nil {
		requestLog(c).Error("list categories failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, errors.New("failed to fetch resources"))
		return
	}

	values := resources.Categories()
	options := make([]categoryOption, 0, len(values)+1)
	options = append(options, categoryOption{Value: catalog.CategoryAll, Label: "All categories"})
	for _, v := range values {
		options = append(options, categoryOption{Value: v, Label: catalog.CategoryLabel(v)})
	}
	c.JSON(http.StatusOK, gin.H{"categories": options})
}

type createUserRequest struct {
	ID    string `json:"id" binding:"required"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) createUser(c *gin.Context) {
	if s.deps.Store == nil {
		respondError(c, http.StatusServiceUnavailable, errStoreDisabled)
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	acc, err := s.deps.Store.CreateAccount(c.Request.Context(), req.ID, req.Email, req.Name)
	if err != nil {
		s.storeError(c, "create account", err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

type saveAnswersRequest struct {
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Answers   profile.Answers `json:"answers"`
	Completed bool            `json:"completed"`
}

// saveAnswers upserts onboarding answers, creating the account on first write.
func (s *Server) saveAnswers(c *gin.Context) {
	if s.deps.Store == nil {
		respondError(c, http.StatusServiceUnavailable, errStoreDisabled)
		return
	}
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("id"))

	var req saveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	answers, err := profile.Normalize(req.Answers)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if _, err := s.deps.Store.CreateAccount(ctx, id, req.Email, req.Name); err != nil {
		s.storeError(c, "create account", err)
		return
	}
	if err := s.deps.Store.SaveAnswers(ctx, id, answers); err != nil {
		s.storeError(c, "save answers", err)
		return
	}
	if req.Completed {
		if err := s.deps.Store.CompleteOnboarding(ctx, id); err != nil {
			s.storeError(c, "complete onboarding", err)
			return
		}
	}

	p, err := s.deps.Store.Profile(ctx, id)
	if err != nil {
		s.storeError(c, "load profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) storedRecommendations(c *gin.Context) {
	if s.deps.Store == nil {
		respondError(c, http.StatusServiceUnavailable, errStoreDisabled)
		return
	}
	rec, err := s.deps.Store.Recommendations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, "load recommendations", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) activity(c *gin.Context) {
	if s.deps.Store == nil {
		respondError(c, http.StatusServiceUnavailable, errStoreDisabled)
		return
	}
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	entries, err := s.deps.Store.Activity(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.storeError(c, "load activity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

type recommendationsRequest struct {
	UserID string `json:"userId"`
}

// generateRecommendations runs the matcher for a stored user and saves the result.
func (s *Server) generateRecommendations(c *gin.Context) {
	if s.deps.Store == nil {
		respondError(c, http.StatusServiceUnavailable, errStoreDisabled)
		return
	}
	ctx := c.Request.Context()

	var req recommendationsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		respondError(c, http.StatusBadRequest, errors.New("user id is required"))
		return
	}
	userID := strings.TrimSpace(req.UserID)
	log := logger.WithFields(requestLog(c), zap.String(logger.FieldUserID, userID))

	p, err := s.deps.Store.Profile(ctx, userID)
	if err != nil {
		s.storeError(c, "load profile", err)
		return
	}

	resources, err := s.deps.Catalog.ListVerified(ctx)
	if err != nil {
		log.Error("list resources failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, errors.New("failed to fetch resources"))
		return
	}

	result, err := s.deps.Matcher.Match(ctx, p, resources)
	if err != nil {
		log.Error("matching failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, errors.New("failed to generate recommendations"))
		return
	}

	err = s.deps.Store.SaveRecommendations(ctx, &identity.StoredRecommendations{
		UserID:          userID,
		Recommendations: result.Bundle,
		Opportunities:   result.Opportunities,
		Source:          result.Source,
	})
	if err != nil {
		log.Error("failed to save recommendations", zap.Error(err))
	}

	_, err = s.deps.Store.LogActivity(ctx, userID, identity.ActionRecommendationsGenerated, map[string]any{
		"recommendation_count": len(result.Bundle.Recommendations),
		"opportunities_count":  len(result.Opportunities.HiddenOpportunities),
		logger.FieldSource:     string(result.Source),
	})
	if err != nil {
		log.Error("failed to log activity", zap.Error(err))
	}

	log.Info("recommendations generated",
		zap.String(logger.FieldSource, string(result.Source)),
		zap.Int("count", len(result.Bundle.Recommendations)),
	)
	c.JSON(http.StatusOK, result)
}

func (s *Server) seedResources(c *gin.Context) {
	if s.deps.Seeder == nil || s.deps.SeedCatalog == nil {
		respondError(c, http.StatusNotImplemented, errors.New("seeding requires a postgres catalog"))
		return
	}

	n, err := s.deps.Seeder.Insert(c.Request.Context(), s.deps.SeedCatalog)
	if err != nil {
		requestLog(c).Error("seeding resources failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (s *Server) storeError(c *gin.Context, op string, err error) {
	if errors.Is(err, identity.ErrNotFound) {
		respondError(c, http.StatusNotFound, err)
		return
	}
	requestLog(c).Error(op+" failed", zap.Error(err))
	respondError(c, http.StatusInternalServerError, fmt.Errorf("%s failed", op))
}
