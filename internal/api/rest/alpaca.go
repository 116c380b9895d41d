package rest

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/draco-mount/alpaca-mount/internal/mounterr"
	"github.com/gin-gonic/gin"
)

// alpacaResponse is the envelope every Alpaca action returns (spec §6.1):
// Value carries the action-specific payload, ErrorNumber/ErrorMessage carry
// any failure, and the two TransactionID fields echo/assign the client's
// request identifiers.
type alpacaResponse struct {
	Value               any    `json:"Value,omitempty"`
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
}

// serverTransactionID hands out monotonically increasing ServerTransactionID
// values, the way every Alpaca device does.
var serverTransactionID atomic.Uint32

func nextServerTransactionID() uint32 {
	return serverTransactionID.Add(1)
}

// clientTransactionID extracts ClientTransactionID from the form body,
// defaulting to 0 when the client omitted it (spec: optional on requests).
func clientTransactionID(c *gin.Context) uint32 {
	v := c.Request.FormValue("ClientTransactionID")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// writeValue sends a successful Alpaca envelope with Value set to value.
func writeValue(c *gin.Context, value any) {
	c.JSON(http.StatusOK, alpacaResponse{
		Value:               value,
		ClientTransactionID: clientTransactionID(c),
		ServerTransactionID: nextServerTransactionID(),
	})
}

// writeOK sends a successful Alpaca envelope with no Value (PUT actions that
// only perform a side effect, e.g. abortslew).
func writeOK(c *gin.Context) {
	writeValue(c, nil)
}

// writeErr maps err onto the Alpaca ErrorNumber/ErrorMessage fields (spec
// §6.1's ASCOM error space) and always responds 200 OK, per the Alpaca
// convention of carrying failures in the envelope rather than the HTTP
// status line.
func writeErr(c *gin.Context, err error) {
	c.JSON(http.StatusOK, alpacaResponse{
		ClientTransactionID: clientTransactionID(c),
		ServerTransactionID: nextServerTransactionID(),
		ErrorNumber:         mounterr.AlpacaErrorNumber(err),
		ErrorMessage:        mounterr.AlpacaErrorMessage(err),
	})
}

// formFloat parses a required float form field, writing a 400-equivalent
// Alpaca InvalidValue error and returning ok=false on failure.
func formFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Request.FormValue(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeErr(c, mounterr.Domain(mounterr.CodeInvalidData, "missing/invalid %s", name))
		return 0, false
	}
	return v, true
}

func formInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Request.FormValue(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeErr(c, mounterr.Domain(mounterr.CodeInvalidData, "missing/invalid %s", name))
		return 0, false
	}
	return v, true
}

func formUint32(c *gin.Context, name string) (uint32, bool) {
	raw := c.Request.FormValue(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeErr(c, mounterr.Domain(mounterr.CodeInvalidData, "missing/invalid %s", name))
		return 0, false
	}
	return uint32(v), true
}

func formBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Request.FormValue(name)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeErr(c, mounterr.Domain(mounterr.CodeInvalidData, "missing/invalid %s", name))
		return false, false
	}
	return v, true
}
