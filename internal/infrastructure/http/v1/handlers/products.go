package handlers

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/core/id"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves products and their recipes.
type ProductHandler struct {
	*BaseHandler
	products *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, products *product.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, products: products}
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.products.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// AddRecipeLine handles POST /products/:id/recipe
func (h *ProductHandler) AddRecipeLine(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.RecipeLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	materialID, _ := id.Parse(req.MaterialID)

	line, err := h.products.AddRecipeLine(c.Request.Context(), productID, materialID, req.Layers, req.ConsumptionPerUnitG)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, line)
}

// Recipe handles GET /products/:id/recipe
func (h *ProductHandler) Recipe(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	lines, err := h.products.Recipe(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(lines))
}
