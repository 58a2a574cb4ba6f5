package handler

import (
	"net/http"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/moduleregistry"
	"github.com/gin-gonic/gin"
)

// ModuleHandler backs "wp4odoo-cli module" over HTTP.
type ModuleHandler struct {
	registry *moduleregistry.Registry
}

func NewModuleHandler(registry *moduleregistry.Registry) *ModuleHandler {
	return &ModuleHandler{registry: registry}
}

func (h *ModuleHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modules": h.registry.List()})
}

func (h *ModuleHandler) Enable(c *gin.Context) {
	h.registry.Enable(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *ModuleHandler) Disable(c *gin.Context) {
	h.registry.Disable(c.Param("id"))
	c.Status(http.StatusNoContent)
}
