package airquality

import (
	"net/http"

	"airquality-server/internal/modules/airquality/controller"
	"airquality-server/internal/modules/airquality/service"
)

func RegisterFeature(mux *http.ServeMux, svc *service.Service) {
	airQualityController := controller.NewAirQualityController(svc)
	airQualityController.RegisterRoutes(mux)
}
