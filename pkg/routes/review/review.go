package review

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/context"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/review"
)

var validate = validator.New()

// Register registers review queue routes
func Register(g *echo.Group) {
	g.GET("", ListReviewItems)
	g.GET("/stats", GetReviewQueueStats)
	g.GET("/:id", GetReviewItem)
	g.POST("/:id/resolve", ResolveReviewItem)
	g.POST("/:id/dismiss", DismissReviewItem)
}

// ListReviewItems lists review items with filters and pagination
func ListReviewItems(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	var req models.ListReviewItemsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	page, err := svc.List(ctx, tenantID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// GetReviewQueueStats summarizes the review queue
func GetReviewQueueStats(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	stats, err := svc.Stats(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

// GetReviewItem gets a review item by ID
func GetReviewItem(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	item, err := svc.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, item)
}

// ResolveReviewItem resolves a pending review item
func ResolveReviewItem(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	id := c.Param("id")

	var req models.ResolveReviewItemRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = context.GetUserID(ctx)
	}

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	resolved, err := svc.Resolve(ctx, tenantID, id, &req)
	if err != nil {
		return err
	}
	if !resolved {
		return c.JSON(http.StatusOK, map[string]any{"resolved": false})
	}

	return c.JSON(http.StatusOK, map[string]any{"resolved": true})
}

// DismissReviewItem dismisses a pending review item
func DismissReviewItem(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	id := c.Param("id")

	var req models.DismissReviewItemRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dismissed, err := svc.Dismiss(ctx, tenantID, id, req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"dismissed": dismissed})
}
