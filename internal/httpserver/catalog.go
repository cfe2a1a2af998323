package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/pkg/logging"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.ListProducts(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return fail(l, "get_products_error", err)
	}
	if items == nil {
		items = []models.Product{}
	}

	return c.JSON(http.StatusOK, transport.Page[models.Product]{
		Data: items,
		Meta: transport.NewPageMeta(max(page, 1), offset, limit, total),
	})
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "get_product_failed", "id is not a positive integer", nil)
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_failed", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_create_error", "invalid body", err)
	}

	product, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return fail(l, "product_create_error", err)
	}

	l.Info("create_product_success", "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "product_patch_error", "id is not a positive integer", nil)
	}
	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_patch_error", "invalid body", err)
	}

	product, err := h.Svc.PatchProduct(ctx, id, req)
	if err != nil {
		return fail(l, "product_patch_error", err)
	}

	l.Info("patch_product_success", "product_id", id)
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "product_delete_error", "id is not a positive integer", nil)
	}
	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return fail(l, "product_delete_error", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}
