package api

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/herbid/internal/api/handlers"
	"github.com/your-org/herbid/internal/api/ws"
	"github.com/your-org/herbid/internal/auth"
	"github.com/your-org/herbid/internal/botany"
	"github.com/your-org/herbid/internal/identify"
	"github.com/your-org/herbid/internal/queue"
	"github.com/your-org/herbid/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Service  *identify.Service
	Engine   *botany.Engine
	// ExtractFn derives the pseudo-feature vector used for vector search.
	ExtractFn func(ctx context.Context, image []byte) []float32
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Identification pipeline
	identifyH := handlers.NewIdentifyHandler(cfg.Service, cfg.DB, cfg.MinIO)
	identifyH.ExtractFn = cfg.ExtractFn
	v1.POST("/identify", identifyH.Identify)
	v1.POST("/identify/batch", identifyH.IdentifyBatch)
	v1.POST("/identifications/:id/feedback", identifyH.Feedback)
	v1.POST("/identifications/:id/verify", identifyH.Verify)
	v1.GET("/identifications/:id/image", identifyH.Image)
	v1.POST("/identifications/similar", identifyH.Similar)
	v1.GET("/history", identifyH.History)

	// Plants & catalog
	plantsH := handlers.NewPlantsHandler(cfg.Engine, cfg.DB)
	v1.POST("/plants/compare", plantsH.Compare)
	v1.GET("/plants/search", plantsH.Search)
	v1.GET("/popular", plantsH.Popular)
	v1.GET("/stats", plantsH.Stats)

	return r
}
