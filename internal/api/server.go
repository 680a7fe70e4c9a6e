package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weather-monitor/internal/display"
	"weather-monitor/internal/storage"
	"weather-monitor/internal/weather"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sixdouglas/suncalc"
)

const minSearchLength = 3

var validate = validator.New()

// Store is the persistence the API serves from.
type Store interface {
	Locations() ([]storage.Location, error)
	LocationByID(id int64) (storage.Location, error)
	SaveLocation(ctx context.Context, loc storage.Location) (storage.Location, error)
	RemoveLocation(id int64) error
	Forecasts(locationID int64) ([]storage.Forecast, error)
	CurrentForecast(locationID int64) storage.Forecast
	SymbolAt(f storage.Forecast, loc storage.Location) string
}

type Searcher interface {
	FindLocations(ctx context.Context, query string) (weather.SearchPayload, error)
}

type Refresher interface {
	RefreshOnce(ctx context.Context) error
	IsCollecting() bool
	LastRefresh() time.Time
}

// Announcer is told about newly added locations.
type Announcer interface {
	PublishDiscovery(loc storage.Location) error
}

type Server struct {
	router    *gin.Engine
	server    *http.Server
	store     Store
	searcher  Searcher
	collector Refresher
	announcer Announcer
	port      int
	now       func() time.Time
}

type ServerConfig struct {
	Port      int
	Store     Store
	Searcher  Searcher
	Collector Refresher
	Announcer Announcer
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		store:     cfg.Store,
		searcher:  cfg.Searcher,
		collector: cfg.Collector,
		announcer: cfg.Announcer,
		port:      cfg.Port,
		now:       time.Now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.GET("/locations", s.locationsHandler)
		api.POST("/locations", s.addLocationHandler)
		api.GET("/locations/:id", s.locationHandler)
		api.DELETE("/locations/:id", s.removeLocationHandler)
		api.GET("/locations/:id/forecasts", s.forecastsHandler)
		api.GET("/locations/:id/current", s.currentHandler)
		api.GET("/search", s.searchHandler)
		api.POST("/refresh", s.refreshHandler)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	log.Printf("INFO: API server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ForecastView is a forecast as a screen shows it.
type ForecastView struct {
	storage.Forecast
	Available   bool    `json:"available"`
	Symbol      string  `json:"symbol"`
	Temperature float64 `json:"temperature_c"`
	Day         string  `json:"day,omitempty"`
	Hour        string  `json:"hour,omitempty"`
}

type LocationView struct {
	storage.Location
	Current *ForecastView `json:"current,omitempty"`
	Sunrise *time.Time    `json:"sunrise,omitempty"`
	Sunset  *time.Time    `json:"sunset,omitempty"`
}

// AddLocationRequest is the body of POST /locations. ID is the provider's
// city id as returned by /search.
type AddLocationRequest struct {
	ID      int64   `json:"id" validate:"required,gt=0"`
	Town    string  `json:"town" validate:"required,max=100"`
	Country string  `json:"country" validate:"omitempty,len=2"`
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
}

func (s *Server) forecastView(f storage.Forecast, loc storage.Location) ForecastView {
	v := ForecastView{
		Forecast:  f,
		Available: f.Available(),
		Symbol:    s.store.SymbolAt(f, loc),
	}
	if v.Available {
		v.Temperature = display.Celsius(f.Temp)
		v.Day = display.DayLabel(f.Time, s.now(), loc.Timezone)
		v.Hour = display.HourLabel(f.Time, loc.Timezone)
	}
	return v
}

func (s *Server) locationView(loc storage.Location) LocationView {
	current := s.forecastView(s.store.CurrentForecast(loc.ID), loc)
	return LocationView{Location: loc, Current: &current}
}

func (s *Server) healthHandler(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": s.now(),
	}
	if s.collector != nil {
		body["collecting"] = s.collector.IsCollecting()
		if last := s.collector.LastRefresh(); !last.IsZero() {
			body["last_refresh"] = last
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) locationsHandler(c *gin.Context) {
	locations, err := s.store.Locations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]LocationView, 0, len(locations))
	for _, loc := range locations {
		views = append(views, s.locationView(loc))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) addLocationHandler(c *gin.Context) {
	var req AddLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.store.LocationByID(req.ID); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Location %d already exists", req.ID)})
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	loc, err := s.store.SaveLocation(c.Request.Context(), storage.Location{
		ID:      req.ID,
		Town:    req.Town,
		Country: strings.ToUpper(req.Country),
		Lat:     req.Lat,
		Lon:     req.Lon,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, weather.ErrTimezoneStatus) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if s.announcer != nil {
		if err := s.announcer.PublishDiscovery(loc); err != nil {
			log.Printf("ERROR: discovery for %s: %v", loc.Town, err)
		}
	}
	c.JSON(http.StatusCreated, loc)
}

// lookupLocation resolves the :id parameter, writing the error response
// itself when it fails.
func (s *Server) lookupLocation(c *gin.Context) (storage.Location, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location id"})
		return storage.Location{}, false
	}

	loc, err := s.store.LocationByID(id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return storage.Location{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return storage.Location{}, false
	}
	return loc, true
}

func (s *Server) locationHandler(c *gin.Context) {
	loc, ok := s.lookupLocation(c)
	if !ok {
		return
	}

	view := s.locationView(loc)
	times := suncalc.GetTimes(s.now(), loc.Lat, loc.Lon)
	if sunrise := times["sunrise"].Value; validTime(sunrise) {
		view.Sunrise = &sunrise
	}
	if sunset := times["sunset"].Value; validTime(sunset) {
		view.Sunset = &sunset
	}
	c.JSON(http.StatusOK, view)
}

// validTime rejects the values suncalc yields when the sun never rises or
// sets on that day.
func validTime(t time.Time) bool {
	return !t.IsZero() && t.Year() > 1970 && t.Year() < 10000
}

func (s *Server) removeLocationHandler(c *gin.Context) {
	loc, ok := s.lookupLocation(c)
	if !ok {
		return
	}
	if err := s.store.RemoveLocation(loc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": loc.ID})
}

func (s *Server) forecastsHandler(c *gin.Context) {
	loc, ok := s.lookupLocation(c)
	if !ok {
		return
	}
	forecasts, err := s.store.Forecasts(loc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]ForecastView, 0, len(forecasts))
	for _, f := range forecasts {
		views = append(views, s.forecastView(f, loc))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) currentHandler(c *gin.Context) {
	loc, ok := s.lookupLocation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.forecastView(s.store.CurrentForecast(loc.ID), loc))
}

func (s *Server) searchHandler(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if len([]rune(query)) < minSearchLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Search needs at least %d characters", minSearchLength)})
		return
	}
	if s.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is not configured"})
		return
	}

	payload, err := s.searcher.FindLocations(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, weather.LocationsFromSearch(payload, s.now()))
}

func (s *Server) refreshHandler(c *gin.Context) {
	if s.collector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Collector is not configured"})
		return
	}
	if err := s.collector.RefreshOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed_at": s.collector.LastRefresh()})
}
