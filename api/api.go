// Package api exposes the coordinator's operator surface over HTTP for
// scripted or remote approval, mirroring the interactive tui package's
// capabilities as REST endpoints, plus a Prometheus /metrics mount.
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"

	"github.com/batchlors/hydropair/pairing"
)

// Backend is the subset of Controller the REST surface drives.
type Backend interface {
	State() pairing.ControllerState
	Nodes() []pairing.DiscoveredNode
	Stats() *pairing.BindingStats
	EnablePermitJoin(durationMS uint64)
	DisablePermitJoin()
	Approve(mac pairing.MAC, correlationID string) error
	Reject(mac pairing.MAC, reason pairing.ReasonCode)
}

// Server wraps a gin.Engine bound to a Backend.
type Server struct {
	engine  *gin.Engine
	backend Backend
}

// NewServer builds the route tree. registry may be nil to skip /metrics.
func NewServer(backend Backend, registry *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, backend: backend}

	v1 := engine.Group("/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/permit-join", s.handlePermitJoinOn)
	v1.DELETE("/permit-join", s.handlePermitJoinOff)
	v1.GET("/nodes", s.handleListNodes)
	v1.POST("/nodes/:mac/approve", s.handleApprove)
	v1.POST("/nodes/:mac/reject", s.handleReject)

	if registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":            s.backend.State().String(),
		"discovered_nodes": len(s.backend.Nodes()),
	})
}

func (s *Server) handlePermitJoinOn(c *gin.Context) {
	var durationMS uint64
	if v := c.Query("duration_ms"); v != "" {
		fmt.Sscanf(v, "%d", &durationMS)
	}
	s.backend.EnablePermitJoin(durationMS)
	c.JSON(http.StatusOK, gin.H{"state": s.backend.State().String()})
}

func (s *Server) handlePermitJoinOff(c *gin.Context) {
	s.backend.DisablePermitJoin()
	c.JSON(http.StatusOK, gin.H{"state": s.backend.State().String()})
}

type nodeView struct {
	MAC        string `json:"mac"`
	DeviceType string `json:"device_type"`
	Firmware   string `json:"firmware"`
	RSSI       int8   `json:"rssi"`
	State      string `json:"state"`
	LastSeenMS uint64 `json:"last_seen_ms"`
}

func (s *Server) handleListNodes(c *gin.Context) {
	nodes := s.backend.Nodes()
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView{
			MAC:        n.MAC.String(),
			DeviceType: n.DeviceType.String(),
			Firmware:   n.FirmwareVersion.String(),
			RSSI:       n.RSSI,
			State:      n.State.String(),
			LastSeenMS: n.LastSeenMS,
		})
	}
	c.JSON(http.StatusOK, gin.H{"nodes": out})
}

func (s *Server) handleApprove(c *gin.Context) {
	mac, err := parseMACParam(c.Param("mac"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	correlationID := xid.New().String()
	if err := s.backend.Approve(mac, correlationID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"correlation_id": correlationID})
}

func (s *Server) handleReject(c *gin.Context) {
	mac, err := parseMACParam(c.Param("mac"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.backend.Reject(mac, pairing.ReasonUserRejected)
	c.JSON(http.StatusOK, gin.H{})
}

func parseMACParam(s string) (pairing.MAC, error) {
	return parseMAC(s)
}
