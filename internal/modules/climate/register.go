package climate

import (
	"database/sql"
	"net/http"

	"surfsup-server/internal/modules/climate/controller"
	"surfsup-server/internal/modules/climate/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB) {
	climateStore := repository.NewStore(db)
	climateController := controller.NewClimateController(climateStore)
	climateController.RegisterRoutes(mux)
}
