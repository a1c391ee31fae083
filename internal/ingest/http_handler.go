package ingest

import (
	"errors"
	"io"
	"net/http"

	"cdr-platform/internal/cdr"
	"cdr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HTTPHandler accepts the same comma-delimited payload as the socket
// protocol, as a raw POST body. The PBX does not authenticate, so this
// route is mounted outside the admin middleware chain.
//
// Responses are plain text: the PBX matches on strings, not JSON.
type HTTPHandler struct {
	Gateway *Gateway

	// Port attributes the HTTP feed to a tenant the same way a socket
	// connection's listening port would.
	Port int
}

func (h HTTPHandler) HandleCDR(c *gin.Context) {
	log := logger.FromGin(c)

	if c.Request.Method != http.MethodPost {
		c.String(http.StatusMethodNotAllowed, "Error: Invalid request method")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, readBufferSize))
	if err != nil {
		log.Warn("CDR body read failed", "err", err)
		c.String(http.StatusBadRequest, "Invalid CDR data")
		return
	}

	if _, err := h.Gateway.Submit(c.Request.Context(), h.Port, string(body)); err != nil {
		if errors.Is(err, cdr.ErrInvalidRecord) {
			c.String(http.StatusBadRequest, "Invalid CDR data")
			return
		}
		log.Error("CDR persistence failed", "err", err)
		c.String(http.StatusInternalServerError, "Error processing CDR")
		return
	}

	c.String(http.StatusOK, AckMessage)
}
