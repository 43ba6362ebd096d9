// Package api exposes the bench instruments over HTTP: device
// enumeration, generator and scope control, power supplies, digital
// IO, the ADALM1000 stream and the capture archive, plus a websocket
// endpoint streaming scope acquisitions.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ammarkh95/go-analog/internal/config"
	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/middleware"
	"github.com/ammarkh95/go-analog/internal/recorder"
	"github.com/ammarkh95/go-analog/smu"
	"github.com/ammarkh95/go-analog/waveforms"
)

// Router wires the bench endpoints onto a gin engine.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	log    *zap.Logger

	scope *waveforms.Device
	smu   *smu.Device
	store *recorder.Store

	wsHandler *scopeStreamHandler
}

// NewRouter builds the bench server over already-acquired devices.
// Either device and the store may be nil; their endpoints then report
// the device as missing.
func NewRouter(cfg *config.Config, scope *waveforms.Device, smuDev *smu.Device, store *recorder.Store, log *zap.Logger) *Router {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORS())

	r := &Router{
		engine:    engine,
		cfg:       cfg,
		log:       log,
		scope:     scope,
		smu:       smuDev,
		store:     store,
		wsHandler: newScopeStreamHandler(cfg, scope, log),
	}

	r.setupRoutes()
	return r
}

// Engine returns the underlying gin engine for serving and tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	r.engine.GET(r.cfg.WebSocket.Path, r.wsHandler.handle)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/devices", r.listDevices)

		wavegen := v1.Group("/wavegen")
		{
			wavegen.POST("/play", r.playSignal)
			wavegen.POST("/stop", r.stopSignal)
		}

		scope := v1.Group("/scope")
		{
			scope.POST("/acquire", r.acquire)
		}

		supplies := v1.Group("/supplies")
		{
			supplies.GET("", r.suppliesStatus)
			supplies.POST("", r.setSupplies)
			supplies.DELETE("", r.disableSupplies)
		}

		digital := v1.Group("/digital")
		{
			digital.GET("", r.readDigital)
			digital.POST("", r.writeDigital)
		}

		smuGroup := v1.Group("/smu")
		{
			smuGroup.POST("/channels", r.configureSMUChannel)
			smuGroup.GET("/read", r.readSMU)
			smuGroup.GET("/status", r.smuStatus)
		}

		captures := v1.Group("/captures")
		{
			captures.GET("", r.listCaptures)
			captures.GET("/:id", r.getCapture)
			captures.DELETE("/:id", r.deleteCapture)
		}
	}
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (r *Router) listDevices(c *gin.Context) {
	devices, err := waveforms.Enumerate()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"devices": devices, "count": len(devices)})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr, uuid.New().String()))
}

func (r *Router) requireScope(c *gin.Context) bool {
	if r.scope == nil {
		respondError(c, apperrors.New(apperrors.ErrDeviceNotFound, "no analog discovery attached"))
		return false
	}
	return true
}

func (r *Router) requireSMU(c *gin.Context) bool {
	if r.smu == nil {
		respondError(c, apperrors.New(apperrors.ErrDeviceNotFound, "no adalm1000 attached"))
		return false
	}
	return true
}

func (r *Router) requireStore(c *gin.Context) bool {
	if r.store == nil {
		respondError(c, apperrors.New(apperrors.ErrStorageConnect, "capture archive disabled"))
		return false
	}
	return true
}
