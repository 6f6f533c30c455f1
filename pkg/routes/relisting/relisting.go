package relisting

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	statsrepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/dealerstats"
	patternrepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/relistingpattern"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/context"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/progress"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/relisting"
)

// Register registers relisting routes
func Register(g *echo.Group) {
	g.POST("/scan", ScanRecentListings)
	g.POST("/stats/recompute", RecomputeDealerStats)
	g.GET("/patterns", ListPatterns)
	g.GET("/frequent-relisters", ListFrequentRelisters)
}

// ScanRecentListings runs relisting detection over recently activated listings
func ScanRecentListings(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	days := 7
	if v := c.QueryParam("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = parsed
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	ctx, engine, err := ectoinject.GetContext[*relisting.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	ctx, logger, _ := ectoinject.GetContext[logging.Logger](ctx)
	reporter := progress.Nop()
	if logger != nil {
		reporter = progress.NewLogReporter(logger)
	}

	result, err := engine.ScanBatch(ctx, tenantID, since, reporter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// RecomputeDealerStats rebuilds per-dealer relisting aggregates
func RecomputeDealerStats(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	ctx, engine, err := ectoinject.GetContext[*relisting.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	stats, err := engine.RecomputeDealerStats(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

// ListPatterns lists relisting patterns for a dealer, or suspicious patterns
// across the tenant when no dealer is given
func ListPatterns(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	dealerID := c.QueryParam("dealer_id")
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*patternrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if dealerID != "" {
		patterns, err := repo.ListByDealer(ctx, tenantID, dealerID, limit)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, patterns)
	}

	patterns, err := repo.ListSuspicious(ctx, tenantID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, patterns)
}

// ListFrequentRelisters lists dealers flagged as frequent relisters
func ListFrequentRelisters(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	ctx, repo, err := ectoinject.GetContext[*statsrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	stats, err := repo.ListFrequentRelisters(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}
