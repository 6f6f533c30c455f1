package match

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/context"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/matching"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
)

var validate = validator.New()

// Register registers matching routes
func Register(g *echo.Group) {
	g.POST("/preview", PreviewMatch)
}

// PreviewMatch runs a record through the pipeline without persisting
// anything. Review items are not created in preview mode.
func PreviewMatch(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	var record models.ScrapedRecord
	if err := c.Bind(&record); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if record.TenantID == "" {
		record.TenantID = tenantID
	}
	if err := validate.Struct(&record); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, pipeline, err := ectoinject.GetContext[*matching.Pipeline](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := pipeline.Match(ctx, &record, "")
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
