package dealerrule

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/context"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/dealerrule"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
)

var validate = validator.New()

// Register registers dealer rule routes
func Register(g *echo.Group) {
	g.GET("", ListDealerRules)
	g.GET("/:id", GetDealerRule)
	g.POST("", CreateDealerRule)
	g.POST("/presets/:preset", CreateDealerRuleFromPreset)
	g.PUT("/:id", UpdateDealerRule)
	g.DELETE("/:id", DeleteDealerRule)
}

// ListDealerRules lists all rules for the tenant
func ListDealerRules(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	ctx, svc, err := ectoinject.GetContext[*dealerrule.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rules, err := svc.List(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rules)
}

// GetDealerRule gets a rule by ID
func GetDealerRule(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*dealerrule.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rule, err := svc.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rule)
}

// CreateDealerRule creates a new rule
func CreateDealerRule(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	var req models.CreateDealerRuleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*dealerrule.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rule, err := svc.Create(ctx, tenantID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, rule)
}

// CreateDealerRuleFromPreset creates a rule from a named preset
func CreateDealerRuleFromPreset(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	preset := c.Param("preset")

	var dealerID *string
	if v := c.QueryParam("dealer_id"); v != "" {
		dealerID = &v
	}

	ctx, svc, err := ectoinject.GetContext[*dealerrule.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rule, err := svc.CreateFromPreset(ctx, tenantID, preset, dealerID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, rule)
}

// UpdateDealerRule updates a rule
func UpdateDealerRule(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	id := c.Param("id")

	var req models.UpdateDealerRuleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*dealerrule.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rule, err := svc.Update(ctx, tenantID, id, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rule)
}

// DeleteDealerRule soft-deletes a rule
func DeleteDealerRule(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*dealerrule.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := svc.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
