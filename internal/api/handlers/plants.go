package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/herbid/internal/botany"
	"github.com/your-org/herbid/internal/storage"
	"github.com/your-org/herbid/pkg/dto"
)

type PlantsHandler struct {
	engine *botany.Engine
	db     *storage.PostgresStore
}

func NewPlantsHandler(engine *botany.Engine, db *storage.PostgresStore) *PlantsHandler {
	return &PlantsHandler{engine: engine, db: db}
}

// Compare extracts botanical features from a name and free-text description
// and ranks the reference catalog against them.
func (h *PlantsHandler) Compare(c *gin.Context) {
	var req dto.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PlantName == "" && req.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plant_name or description required"})
		return
	}

	report, err := h.engine.Compare(c.Request.Context(), req.PlantName, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Search finds cached identifications by plant or scientific name.
func (h *PlantsHandler) Search(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q required"})
		return
	}

	limit := intQuery(c, "limit", 20)
	recs, err := h.db.SearchByName(c.Request.Context(), term, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": recs, "count": len(recs)})
}

// Popular lists the most identified plants by cache reuse.
func (h *PlantsHandler) Popular(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	plants, err := h.db.PopularPlants(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plants, "count": len(plants)})
}

// Stats reports aggregate cache figures.
func (h *PlantsHandler) Stats(c *gin.Context) {
	stats, err := h.db.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
