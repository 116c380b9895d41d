package rest

import (
	"net/http"

	"github.com/draco-mount/alpaca-mount/internal/api/websocket"
	"github.com/draco-mount/alpaca-mount/internal/device"
	"github.com/draco-mount/alpaca-mount/internal/mount"
	"github.com/gin-gonic/gin"
)

// Config holds server configuration (kept from the teacher, unchanged shape).
type Config struct {
	Address string
	Debug   bool
}

// Server holds the HTTP server and its dependencies: the Alpaca telescope
// action set, management API, and the push-event hub. Grounded on the
// teacher's Server (internal/api/rest/router.go), stripped of the
// game/catalog/sky groups and re-routed onto the ASCOM Alpaca wire format
// (spec §6.1-6.2).
type Server struct {
	router        *gin.Engine
	mountHandlers *MountHandlers
	settingsStore *device.SettingsStore
	hub           *websocket.Hub
	deviceNumber  int
}

// NewServer creates a new HTTP server bound to ctrl, persisting settings
// through store and pushing property-change events through hub.
func NewServer(cfg Config, ctrl *mount.Controller, store *device.SettingsStore, hub *websocket.Hub) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:        gin.New(),
		mountHandlers: NewMountHandlers(ctrl),
		settingsStore: store,
		hub:           hub,
		deviceNumber:  0,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	return s
}

// setupRoutes configures the Alpaca telescope API (spec §6.1), the Alpaca
// management API (spec §6.2), and the WebSocket push endpoint (spec §6.3).
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	api.GET("/health", s.healthCheck)

	telescope := api.Group("/telescope/:device_number")
	{
		h := s.mountHandlers

		telescope.PUT("/connected", h.connected)
		telescope.GET("/connected", h.connected)

		telescope.GET("/rightascension", h.rightAscension)
		telescope.GET("/declination", h.declination)
		telescope.GET("/altitude", h.altitude)
		telescope.GET("/azimuth", h.azimuth)
		telescope.GET("/sideofpier", h.sideOfPier)
		telescope.GET("/atpark", h.atPark)
		telescope.GET("/athome", h.atHome)
		telescope.GET("/slewing", h.slewing)
		telescope.GET("/siderealtime", h.siderealTime)
		telescope.GET("/equatorialsystem", h.equatorialSystem)
		telescope.GET("/utcdate", h.utcDate)

		telescope.PUT("/tracking", h.tracking)
		telescope.GET("/tracking", h.tracking)
		telescope.PUT("/trackingrate", h.trackingRate)
		telescope.GET("/trackingrate", h.trackingRate)
		telescope.PUT("/rightascensionrate", h.rightAscensionRate)
		telescope.GET("/rightascensionrate", h.rightAscensionRate)
		telescope.PUT("/declinationrate", h.declinationRate)
		telescope.GET("/declinationrate", h.declinationRate)

		telescope.PUT("/targetrightascension", h.targetRightAscension)
		telescope.GET("/targetrightascension", h.targetRightAscension)
		telescope.PUT("/targetdeclination", h.targetDeclination)
		telescope.GET("/targetdeclination", h.targetDeclination)

		telescope.PUT("/slewtocoordinates", h.slewToCoordinates)
		telescope.PUT("/slewtocoordinatesasync", h.slewToCoordinatesAsync)
		telescope.PUT("/slewtoaltaz", h.slewToAltAz)
		telescope.PUT("/slewtoaltazasync", h.slewToAltAzAsync)
		telescope.PUT("/slewtotarget", h.slewToTarget)
		telescope.PUT("/slewtotargetasync", h.slewToTargetAsync)

		telescope.PUT("/synctocoordinates", h.syncToCoordinates)
		telescope.PUT("/synctotarget", h.syncToTarget)
		telescope.PUT("/synctoaltaz", h.syncToAltAz)

		telescope.PUT("/abortslew", h.abortSlew)
		telescope.PUT("/moveaxis", h.moveAxis)
		telescope.PUT("/pulseguide", h.pulseGuide)
		telescope.GET("/ispulseguiding", h.pulseGuiding)

		telescope.PUT("/findhome", h.findHome)
		telescope.PUT("/park", h.park)
		telescope.PUT("/unpark", h.unpark)
		telescope.PUT("/setpark", h.setPark)

		telescope.GET("/canslew", h.canSlew)
		telescope.GET("/canslewasync", h.canSlewAsync)
		telescope.GET("/cansync", h.canSync)
		telescope.GET("/canpark", h.canPark)
		telescope.GET("/canfindhome", h.canFindHome)
		telescope.GET("/canpulseguide", h.canPulseGuide)
		telescope.GET("/cansetpierside", h.canSetPierSide)
		telescope.GET("/cansettracking", h.canSetTracking)
		telescope.GET("/canmoveaxis", h.canMoveAxis)

		telescope.GET("/description", h.description)
		telescope.GET("/name", h.name)
		telescope.GET("/lasterror", h.lastError)
	}

	mgmt := api.Group("/management")
	{
		mgmt.GET("/apiversions", s.apiVersions)
		mgmt.GET("/v1/description", s.serverDescription)
		mgmt.GET("/v1/configureddevices", s.configuredDevices)
	}

	settings := api.Group("/settings")
	{
		settings.GET("", s.getSettings)
		settings.PUT("", s.putSettings)
	}

	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// corsMiddleware adds CORS headers, unchanged from the teacher.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck returns server health status.
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

// apiVersions implements the Alpaca management "list supported API versions"
// endpoint (spec §6.2).
func (s *Server) apiVersions(c *gin.Context) {
	writeValue(c, []int{1})
}

// serverDescription implements the Alpaca management description endpoint.
func (s *Server) serverDescription(c *gin.Context) {
	writeValue(c, gin.H{
		"ServerName":          "draco-mount",
		"Manufacturer":        "draco-mount",
		"ManufacturerVersion": "1.0.0",
		"Location":            "",
	})
}

// configuredDevices lists the single telescope device this server exposes.
func (s *Server) configuredDevices(c *gin.Context) {
	writeValue(c, []gin.H{
		{
			"DeviceName":   "AlpacaMount",
			"DeviceType":   "Telescope",
			"DeviceNumber": s.deviceNumber,
			"UniqueID":     "draco-mount-telescope-0",
		},
	})
}

// getSettings returns the persisted mount configuration (spec's settings
// adapter, DESIGN.md "Settings adapter" supplement).
func (s *Server) getSettings(c *gin.Context) {
	cfg, atPark := s.settingsStore.Current()
	c.JSON(http.StatusOK, gin.H{"config": cfg, "at_park": atPark})
}

// putSettings is intentionally not exposed for arbitrary overwrite here; full
// validation/persistence is driven through Controller.SetConfig plus
// SettingsStore.Save by the caller that owns the Controller, not by a raw
// client-supplied JSON body.
func (s *Server) putSettings(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "use the telescope action endpoints to change configuration"})
}
