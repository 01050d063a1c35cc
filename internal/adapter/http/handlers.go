package http

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/geo"
	"github.com/0xbhavyaalag/EcoSphere/internal/spatial"
)

type submitRequest struct {
	Image       string             `json:"image"`
	Coordinate  *domain.Coordinate `json:"coordinate"`
	Description string             `json:"description"`
}

type reportResponse struct {
	Report domain.Report `json:"report"`
	Stats  domain.Stats  `json:"stats"`
	Error  string        `json:"error,omitempty"`
	Code   string        `json:"code,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// locationRequest carries what the browser got from its own geolocation API.
type locationRequest struct {
	SecureContext bool               `json:"secure_context"`
	Fix           *domain.Coordinate `json:"fix"`
	ErrorCode     string             `json:"error_code"`
	Message       string             `json:"message"`
}

func (s *Server) listReports(c *gin.Context) {
	reports, err := s.deps.Reports.Filter(c.Query("status"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) submitReport(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Coordinate != nil && req.Coordinate.Source == "" {
		req.Coordinate.Source = domain.SourceManual
	}

	r, stats, err := s.deps.Reports.Submit(c.Request.Context(), domain.Draft{
		Image:       req.Image,
		Coordinate:  req.Coordinate,
		Description: req.Description,
	})
	if err != nil && r.ID != "" {
		c.JSON(http.StatusInsufficientStorage, reportResponse{Report: r, Stats: stats, Error: persistMessage(err), Code: storageCode(err)})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reportResponse{Report: r, Stats: stats})
}

func (s *Server) getReport(c *gin.Context) {
	r, err := s.deps.Reports.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	r, err := s.deps.Reports.UpdateStatus(c.Request.Context(), c.Param("id"), domain.Status(req.Status))
	if err != nil && r.ID != "" {
		c.JSON(http.StatusInsufficientStorage, reportResponse{Report: r, Stats: s.deps.Reports.Stats(), Error: persistMessage(err), Code: storageCode(err)})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportResponse{Report: r, Stats: s.deps.Reports.Stats()})
}

func (s *Server) deleteReport(c *gin.Context) {
	err := s.deps.Reports.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, domain.ErrReportNotFound):
		s.writeError(c, err)
	case err != nil:
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": persistMessage(err), "code": storageCode(err), "stats": s.deps.Reports.Stats()})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Reports.Stats())
}

func (s *Server) hotspots(c *gin.Context) {
	res := spatial.DefaultResolution
	if v := c.Query("res"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			abort(c, http.StatusBadRequest, "invalid_request", "res must be an integer")
			return
		}
		res = n
	}

	reports, err := s.deps.Reports.Filter(domain.FilterAll)
	if err != nil {
		s.writeError(c, err)
		return
	}
	cells, err := spatial.Hotspots(reports, res)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolution": res, "hotspots": cells})
}

func (s *Server) nearestOffice(c *gin.Context) {
	point, ok := queryCoordinate(c, "lat", "lon")
	if !ok {
		abort(c, http.StatusBadRequest, "invalid_request", "lat and lon are required")
		return
	}

	res, err := s.deps.Locator.LocateNearestOffice(c.Request.Context(), *point)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.Office == nil {
		if res.RateLimited {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "geocoding service rate limit reached, try again later",
				"code":  string(domain.LookupRateLimited),
				"area":  res.Area,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNoOfficeFound.Error(), "code": "no_office", "area": res.Area})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) route(c *gin.Context) {
	dest, ok := queryCoordinate(c, "to_lat", "to_lon")
	if !ok {
		abort(c, http.StatusBadRequest, "invalid_request", "to_lat and to_lon are required")
		return
	}
	user, _ := queryCoordinate(c, "from_lat", "from_lon")

	url, err := s.deps.Reports.Route(*dest, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) routeToOffice(c *gin.Context) {
	r, err := s.deps.Reports.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	user, _ := queryCoordinate(c, "from_lat", "from_lon")

	url, office, err := s.deps.Reports.RouteToNearestOffice(c.Request.Context(), r.Coordinate, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "office": office})
}

func (s *Server) resolveLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	geoReq := geo.Request{SecureContext: req.SecureContext, ClientIP: publicIP(c.ClientIP())}
	if req.Fix != nil || req.ErrorCode != "" {
		if req.Fix != nil && req.Fix.Source == "" {
			req.Fix.Source = domain.SourceDevice
		}
		geoReq.Device = geo.ReportedDevice{Fix: req.Fix, ErrorCode: req.ErrorCode, Message: req.Message}
	}

	coord, err := s.deps.Resolver.Resolve(c.Request.Context(), geoReq)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, coord)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var locErr *domain.LocationError
	var lookupErr *domain.LookupError

	switch {
	case errors.As(err, &locErr):
		abort(c, http.StatusUnprocessableEntity, string(locErr.Kind), locErr.Message)
	case errors.Is(err, domain.ErrIncompleteSubmission):
		abort(c, http.StatusBadRequest, "incomplete_submission", err.Error())
	case errors.Is(err, domain.ErrInvalidCoordinate):
		abort(c, http.StatusBadRequest, "invalid_coordinate", err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		abort(c, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, domain.ErrUserLocationUnknown):
		abort(c, http.StatusBadRequest, "user_location_unknown", "Please get your location first.")
	case errors.Is(err, domain.ErrImageTooLarge):
		abort(c, http.StatusRequestEntityTooLarge, "image_too_large", err.Error())
	case errors.Is(err, domain.ErrReportNotFound):
		abort(c, http.StatusNotFound, "not_found", err.Error())
	case domain.IsRateLimited(err):
		abort(c, http.StatusTooManyRequests, string(domain.LookupRateLimited), "geocoding service rate limit reached, try again later")
	case errors.Is(err, domain.ErrNoOfficeFound):
		abort(c, http.StatusNotFound, "no_office", err.Error())
	case errors.As(err, &lookupErr):
		abort(c, http.StatusBadGateway, string(lookupErr.Kind), err.Error())
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		abort(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func storageCode(err error) string {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "persist_failed"
}

func persistMessage(err error) string {
	if domain.IsStorageFull(err) {
		return "Storage is full. Please delete some old reports."
	}
	return "Failed to save report: " + err.Error()
}

func queryCoordinate(c *gin.Context, latKey, lonKey string) (*domain.Coordinate, bool) {
	latStr, lonStr := c.Query(latKey), c.Query(lonKey)
	if latStr == "" || lonStr == "" {
		return nil, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, false
	}
	return &domain.Coordinate{Latitude: lat, Longitude: lon, Source: domain.SourceManual}, true
}

// publicIP drops loopback and private addresses so IP providers locate the
// server's egress address instead.
func publicIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return ""
	}
	return ip
}
