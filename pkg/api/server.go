// Package api provides the REST API server for touch2midi
package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/james-see/touch2midi/pkg/decoder"
	"github.com/james-see/touch2midi/pkg/gesture"
	"github.com/james-see/touch2midi/pkg/script"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Touch2MIDI API
// @version 1.0
// @description API for rendering gesture scripts to MIDI streams and decoding them back
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/render", handleRender)
		v1.POST("/decode", handleDecode)
		v1.GET("/limits", listLimits)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r.Run(fmt.Sprintf(":%d", port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "touch2midi",
	})
}

// listLimits godoc
// @Summary List rendering limits
// @Description Returns the fixed sizes of the gesture state machine
// @Tags info
// @Produce json
// @Success 200 {object} map[string]int
// @Router /api/v1/limits [get]
func listLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fingerMax":  gesture.FingerMax,
		"channelMax": gesture.ChannelMax,
		"polyMax":    gesture.PolyMax,
		"noteMax":    gesture.NoteMax,
		"bendCenter": gesture.BendCenter,
	})
}

// handleRender godoc
// @Summary Render a gesture script to MIDI
// @Description Accepts a JSON gesture script and returns the rendered MIDI byte stream
// @Tags convert
// @Accept json
// @Produce application/octet-stream
// @Param format query string false "Output format: raw (default) or smf"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/render [post]
func handleRender(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	s, err := script.Load(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, err := s.RenderBytes()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	switch c.DefaultQuery("format", "raw") {
	case "smf":
		data, err := script.WrapSMF(raw)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=rendered.mid")
		c.Data(http.StatusOK, "audio/midi", data)
	case "raw":
		c.Header("Content-Disposition", "attachment; filename=rendered.bin")
		c.Data(http.StatusOK, "application/octet-stream", raw)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format"})
	}
}

// decodedEvent is one engine callback in the decode response.
type decodedEvent struct {
	Channel  int     `json:"channel"`
	Attack   int     `json:"attack"`
	Pitch    float64 `json:"pitch"`
	Volume   float64 `json:"volume"`
	ExprParm int     `json:"exprParm"`
	Expr     int     `json:"expr"`
}

// handleDecode godoc
// @Summary Decode a MIDI stream to gesture events
// @Description Upload a raw MIDI stream or .mid file and receive the decoded engine events
// @Tags convert
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI stream to decode"
// @Success 200 {object} map[string][]decodedEvent
// @Failure 400 {object} map[string]string
// @Router /api/v1/decode [post]
func handleDecode(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	name := strings.ToLower(header.Filename)
	if strings.HasSuffix(name, ".mid") || strings.HasSuffix(name, ".midi") {
		data, err = script.UnwrapSMF(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var events []decodedEvent
	d := decoder.New(func(channel, attack int, pitch, volume float64, exprParm, expr int) {
		events = append(events, decodedEvent{
			Channel:  channel,
			Attack:   attack,
			Pitch:    pitch,
			Volume:   volume,
			ExprParm: exprParm,
			Expr:     expr,
		})
	})
	d.Feed(data)

	c.JSON(http.StatusOK, gin.H{"events": events, "bendSemis": d.BendSemis()})
}
