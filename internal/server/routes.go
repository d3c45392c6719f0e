package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(h.logger))

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	dictionaries := router.PathPrefix("/dictionaries").Subrouter()
	dictionaries.HandleFunc("", h.CreateDictionary).Methods(http.MethodPost)
	dictionaries.HandleFunc("", h.GetDictionaries).Methods(http.MethodGet)
	dictionaries.HandleFunc("/search", h.FindDictionaries).Methods(http.MethodGet)
	dictionaries.HandleFunc("/{id:[0-9]+}", h.UpdateDictionary).Methods(http.MethodPut)
	dictionaries.HandleFunc("/{id:[0-9]+}/structure", h.GetStructure).Methods(http.MethodGet)
	dictionaries.HandleFunc("/{id:[0-9]+}/attributes", h.CreateAttribute).Methods(http.MethodPost)
	dictionaries.HandleFunc("/{id:[0-9]+}/import", h.ImportValues).Methods(http.MethodPost)
	dictionaries.HandleFunc("/{id:[0-9]+}/relations", h.GenerateRelations).Methods(http.MethodPost)
	dictionaries.HandleFunc("/{id:[0-9]+}/positions/{pid:[0-9]+}/relations", h.GeneratePositionRelations).Methods(http.MethodPost)
	dictionaries.HandleFunc("/{id:[0-9]+}/values", h.GetValues).Methods(http.MethodGet)
	dictionaries.HandleFunc("/{id:[0-9]+}/values/by-code", h.GetValueByCode).Methods(http.MethodGet)
	dictionaries.HandleFunc("/{id:[0-9]+}/values/search", h.FindValue).Methods(http.MethodGet)
	dictionaries.HandleFunc("/{id:[0-9]+}/values/{pid:[0-9]+}", h.GetValueByID).Methods(http.MethodGet)

	return router
}
