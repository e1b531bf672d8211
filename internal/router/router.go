package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/bistro-pos/api/internal/config"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/events"
	"github.com/bistro-pos/api/internal/handler"
	"github.com/bistro-pos/api/internal/logger"
	"github.com/bistro-pos/api/internal/report"
	"github.com/bistro-pos/api/internal/service"
	"github.com/bistro-pos/api/internal/storage"
	"github.com/bistro-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the long-lived collaborators the routes are built from.
type Deps struct {
	Config    *config.Config
	Pool      service.Pool
	Hub       *ws.Hub
	Images    *storage.ImageStore
	Publisher events.Publisher
	// ReportLocation sets day boundaries and hour buckets; nil means time.Local.
	ReportLocation *time.Location
}

// New creates a Chi router with all application routes wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Staff screens subscribe without a table_id; table tablets pass theirs.
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, w, r)
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(d.Images.Root())))))

	queries := database.New(d.Pool)

	catalog := service.NewCatalogService(d.Pool,
		func(db database.DBTX) service.CatalogStore { return database.New(db) },
		d.Images, d.Config.CategoryDeletePolicy)
	orders := service.NewOrderService(d.Pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		d.Publisher, d.Config.TaxRate)
	payments := service.NewPaymentService(d.Pool,
		func(db database.DBTX) service.PaymentStore { return database.New(db) },
		d.Publisher)
	tables := service.NewTableService(d.Pool,
		func(db database.DBTX) service.TableStore { return database.New(db) },
		d.Publisher)
	loc := d.ReportLocation
	if loc == nil {
		loc = time.Local
	}
	reports := report.NewService(queries, loc)

	r.Route("/categories", handler.NewCategoryHandler(queries, catalog).RegisterRoutes)
	r.Route("/menu-items", handler.NewMenuItemHandler(queries, catalog, d.Images).RegisterRoutes)
	r.Route("/staff", handler.NewStaffHandler(queries, d.Images).RegisterRoutes)
	r.Route("/tables", handler.NewTableHandler(queries, tables).RegisterRoutes)
	r.Route("/orders", handler.NewOrderHandler(orders).RegisterRoutes)
	r.Route("/payments", handler.NewPaymentHandler(payments).RegisterRoutes)
	r.Route("/reports", handler.NewReportsHandler(reports).RegisterRoutes)

	logger.L().Infow("router initialized", "upload_dir", d.Images.Root(), "cors_origins", d.Config.CORSOrigins)
	return r
}

// noDirListing answers 404 for directory paths instead of an index page.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
