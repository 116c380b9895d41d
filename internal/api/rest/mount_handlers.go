package rest

import (
	"net/http"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/mount"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
	"github.com/draco-mount/alpaca-mount/internal/mtype"
	"github.com/gin-gonic/gin"
)

// slewPollInterval is how often waitForSlewDone polls IsSlewing for the
// blocking slew variants.
const slewPollInterval = 200 * time.Millisecond

// MountHandlers implements the ASCOM Alpaca telescope action set (spec §6.1)
// as thin adapters over mount.Controller: each handler parses the Alpaca form
// body, calls the façade, and writes back the {Value, ClientTransactionID,
// ServerTransactionID, ErrorNumber, ErrorMessage} envelope via alpaca.go's
// helpers. Grounded on the teacher's MountHandlers struct/method shape
// (internal/api/rest/mount_handlers.go), generalized from a bespoke JSON API
// to the Alpaca wire format.
type MountHandlers struct {
	ctrl *mount.Controller
}

// NewMountHandlers builds handlers bound to ctrl.
func NewMountHandlers(ctrl *mount.Controller) *MountHandlers {
	return &MountHandlers{ctrl: ctrl}
}

func (h *MountHandlers) connected(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPut:
		on, ok := formBool(c, "Connected")
		if !ok {
			return
		}
		var err error
		if on {
			err = h.ctrl.Connect(c.Request.Context())
		} else {
			err = h.ctrl.Disconnect()
		}
		if err != nil {
			writeErr(c, err)
			return
		}
		writeOK(c)
	default:
		writeValue(c, h.ctrl.IsConnected())
	}
}

func (h *MountHandlers) rightAscension(c *gin.Context) {
	writeValue(c, h.ctrl.Status().RaHours)
}

func (h *MountHandlers) declination(c *gin.Context) {
	writeValue(c, h.ctrl.Status().DecDeg)
}

func (h *MountHandlers) altitude(c *gin.Context) {
	writeValue(c, h.ctrl.Status().AltDeg)
}

func (h *MountHandlers) azimuth(c *gin.Context) {
	writeValue(c, h.ctrl.Status().AzDeg)
}

func (h *MountHandlers) sideOfPier(c *gin.Context) {
	writeValue(c, h.ctrl.Status().SideOfPier)
}

func (h *MountHandlers) atPark(c *gin.Context) {
	writeValue(c, h.ctrl.IsAtPark())
}

func (h *MountHandlers) atHome(c *gin.Context) {
	writeValue(c, h.ctrl.Status().AtHome)
}

func (h *MountHandlers) slewing(c *gin.Context) {
	writeValue(c, h.ctrl.IsSlewing())
}

func (h *MountHandlers) siderealTime(c *gin.Context) {
	writeValue(c, h.ctrl.Status().SiderealLST)
}

// tracking is the GET/PUT property (spec §6.1 "tracking (PUT/GET)").
func (h *MountHandlers) tracking(c *gin.Context) {
	if c.Request.Method == http.MethodPut {
		on, ok := formBool(c, "Tracking")
		if !ok {
			return
		}
		h.ctrl.SetTracking(on)
		writeOK(c)
		return
	}
	writeValue(c, h.ctrl.IsTracking())
}

// trackingRate is the ASCOM DriveRates enum property (spec §6.1 "trackingrate").
func (h *MountHandlers) trackingRate(c *gin.Context) {
	if c.Request.Method == http.MethodPut {
		n, ok := formInt(c, "TrackingRate")
		if !ok {
			return
		}
		if err := h.ctrl.SetTrackingRate(mount.DriveRate(n)); err != nil {
			writeErr(c, err)
			return
		}
		writeOK(c)
		return
	}
	writeValue(c, int(h.ctrl.TrackingRate()))
}

func (h *MountHandlers) rightAscensionRate(c *gin.Context) {
	if c.Request.Method == http.MethodPut {
		v, ok := formFloat(c, "RightAscensionRate")
		if !ok {
			return
		}
		_, dec := h.ctrl.RateOffsets()
		h.ctrl.SetRateOffsets(v, dec)
		writeOK(c)
		return
	}
	ra, _ := h.ctrl.RateOffsets()
	writeValue(c, ra)
}

func (h *MountHandlers) declinationRate(c *gin.Context) {
	if c.Request.Method == http.MethodPut {
		v, ok := formFloat(c, "DeclinationRate")
		if !ok {
			return
		}
		ra, _ := h.ctrl.RateOffsets()
		h.ctrl.SetRateOffsets(ra, v)
		writeOK(c)
		return
	}
	_, dec := h.ctrl.RateOffsets()
	writeValue(c, dec)
}

func (h *MountHandlers) targetRightAscension(c *gin.Context) {
	if c.Request.Method == http.MethodPut {
		v, ok := formFloat(c, "TargetRightAscension")
		if !ok {
			return
		}
		_, dec, _ := h.ctrl.Target()
		h.ctrl.SetTarget(v, dec)
		writeOK(c)
		return
	}
	ra, _, ok := h.ctrl.Target()
	if !ok {
		writeErr(c, mounterr.Domain(mounterr.CodeInvalidData, "target not set"))
		return
	}
	writeValue(c, ra)
}

func (h *MountHandlers) targetDeclination(c *gin.Context) {
	if c.Request.Method == http.MethodPut {
		v, ok := formFloat(c, "TargetDeclination")
		if !ok {
			return
		}
		ra, _, _ := h.ctrl.Target()
		h.ctrl.SetTarget(ra, v)
		writeOK(c)
		return
	}
	_, dec, ok := h.ctrl.Target()
	if !ok {
		writeErr(c, mounterr.Domain(mounterr.CodeInvalidData, "target not set"))
		return
	}
	writeValue(c, dec)
}

func (h *MountHandlers) slewToCoordinates(c *gin.Context) {
	ra, ok := formFloat(c, "RightAscension")
	if !ok {
		return
	}
	dec, ok := formFloat(c, "Declination")
	if !ok {
		return
	}
	if dec < -90 || dec > 90 {
		writeErr(c, mounterr.Domain(mounterr.CodeOutOfRange, "declination %.4f out of range", dec))
		return
	}
	h.ctrl.SetTarget(ra, dec)
	if err := h.ctrl.SlewToCoordinatesAsync(ra, dec); err != nil {
		writeErr(c, err)
		return
	}
	h.waitForSlewDone(c)
}

func (h *MountHandlers) slewToCoordinatesAsync(c *gin.Context) {
	ra, ok := formFloat(c, "RightAscension")
	if !ok {
		return
	}
	dec, ok := formFloat(c, "Declination")
	if !ok {
		return
	}
	if dec < -90 || dec > 90 {
		writeErr(c, mounterr.Domain(mounterr.CodeOutOfRange, "declination %.4f out of range", dec))
		return
	}
	h.ctrl.SetTarget(ra, dec)
	if err := h.ctrl.SlewToCoordinatesAsync(ra, dec); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) slewToAltAz(c *gin.Context) {
	az, ok := formFloat(c, "Azimuth")
	if !ok {
		return
	}
	alt, ok := formFloat(c, "Altitude")
	if !ok {
		return
	}
	if err := h.ctrl.SlewToAltAzAsync(az, alt); err != nil {
		writeErr(c, err)
		return
	}
	h.waitForSlewDone(c)
}

func (h *MountHandlers) slewToAltAzAsync(c *gin.Context) {
	az, ok := formFloat(c, "Azimuth")
	if !ok {
		return
	}
	alt, ok := formFloat(c, "Altitude")
	if !ok {
		return
	}
	if err := h.ctrl.SlewToAltAzAsync(az, alt); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) slewToTarget(c *gin.Context) {
	if err := h.ctrl.SlewToTargetAsync(); err != nil {
		writeErr(c, err)
		return
	}
	h.waitForSlewDone(c)
}

func (h *MountHandlers) slewToTargetAsync(c *gin.Context) {
	if err := h.ctrl.SlewToTargetAsync(); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

// waitForSlewDone implements the blocking "slewtocoordinates" (non-async)
// variant spec §6.1 lists alongside the async one: poll IsSlewing at a short
// interval until it clears, the same shape the teacher's blocking SlewTo
// used before this client request returns.
func (h *MountHandlers) waitForSlewDone(c *gin.Context) {
	ticker := time.NewTicker(slewPollInterval)
	defer ticker.Stop()
	for h.ctrl.IsSlewing() {
		select {
		case <-c.Request.Context().Done():
			writeErr(c, mounterr.New(mounterr.KindCancelled, mounterr.CodeCancelled, "client disconnected during slew"))
			return
		case <-ticker.C:
		}
	}
	writeOK(c)
}

func (h *MountHandlers) syncToCoordinates(c *gin.Context) {
	ra, ok := formFloat(c, "RightAscension")
	if !ok {
		return
	}
	dec, ok := formFloat(c, "Declination")
	if !ok {
		return
	}
	if err := h.ctrl.SyncToCoordinates(ra, dec); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) syncToTarget(c *gin.Context) {
	if err := h.ctrl.SyncToTarget(); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) syncToAltAz(c *gin.Context) {
	az, ok := formFloat(c, "Azimuth")
	if !ok {
		return
	}
	alt, ok := formFloat(c, "Altitude")
	if !ok {
		return
	}
	writeErr(c, mounterr.Domain(mounterr.CodeUnimplemented, "SyncToAltAz not supported, azimuth=%.3f altitude=%.3f", az, alt))
}

func (h *MountHandlers) abortSlew(c *gin.Context) {
	if err := h.ctrl.AbortSlewAsync(); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) moveAxis(c *gin.Context) {
	axisNum, ok := formInt(c, "Axis")
	if !ok {
		return
	}
	rate, ok := formFloat(c, "Rate")
	if !ok {
		return
	}
	a := axis.Primary
	if axisNum == 1 {
		a = axis.Secondary
	}
	if err := h.ctrl.MoveAxis(a, rate); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) pulseGuide(c *gin.Context) {
	dirNum, ok := formInt(c, "Direction")
	if !ok {
		return
	}
	durMs, ok := formUint32(c, "Duration")
	if !ok {
		return
	}
	dir := guideDirectionFromAlpaca(dirNum)
	if err := h.ctrl.PulseGuide(dir, durMs); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

// guideDirectionFromAlpaca maps the ASCOM GuideDirections enum (0=North/+Dec,
// 1=South/-Dec, 2=East/+RA, 3=West/-RA) onto this core's GuideDirection.
func guideDirectionFromAlpaca(n int64) mtype.GuideDirection {
	switch n {
	case 0:
		return mtype.GuideDecPlus
	case 1:
		return mtype.GuideDecMinus
	case 2:
		return mtype.GuideRAPlus
	default:
		return mtype.GuideRAMinus
	}
}

func (h *MountHandlers) pulseGuiding(c *gin.Context) {
	writeValue(c, h.ctrl.IsPulseGuiding())
}

func (h *MountHandlers) findHome(c *gin.Context) {
	if err := h.ctrl.FindHome(); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) park(c *gin.Context) {
	if err := h.ctrl.Park(""); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) unpark(c *gin.Context) {
	if err := h.ctrl.Unpark(); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *MountHandlers) setPark(c *gin.Context) {
	if err := h.ctrl.SetPark(); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

// capability queries (spec §6.1 "canX capability queries"): all read off the
// current Config snapshot rather than hardcoding true, since CanX reflects
// what the connected backend actually advertises.
func (h *MountHandlers) canSlew(c *gin.Context)        { writeValue(c, h.ctrl.Config().CanSlew) }
func (h *MountHandlers) canSlewAsync(c *gin.Context)   { writeValue(c, h.ctrl.Config().CanSlew) }
func (h *MountHandlers) canSync(c *gin.Context)        { writeValue(c, h.ctrl.Config().CanSync) }
func (h *MountHandlers) canPark(c *gin.Context)        { writeValue(c, h.ctrl.Config().CanPark) }
func (h *MountHandlers) canFindHome(c *gin.Context)    { writeValue(c, h.ctrl.Config().CanFindHome) }
func (h *MountHandlers) canPulseGuide(c *gin.Context)  { writeValue(c, h.ctrl.Config().CanPulseGuide) }
func (h *MountHandlers) canSetPierSide(c *gin.Context) { writeValue(c, h.ctrl.Config().CanSetPierSide) }
func (h *MountHandlers) canSetTracking(c *gin.Context) { writeValue(c, true) }
func (h *MountHandlers) canMoveAxis(c *gin.Context) {
	axisNum, ok := formInt(c, "Axis")
	if !ok {
		return
	}
	writeValue(c, axisNum == 0 || axisNum == 1)
}

func (h *MountHandlers) equatorialSystem(c *gin.Context) { writeValue(c, 1) } // ASCOM EquatorialCoordinateType.Topocentric

func (h *MountHandlers) utcDate(c *gin.Context) {
	writeValue(c, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
}

func (h *MountHandlers) lastError(c *gin.Context) {
	err := h.ctrl.GetLastError()
	if err == nil {
		writeValue(c, "")
		return
	}
	writeValue(c, err.Error())
}

func (h *MountHandlers) description(c *gin.Context) {
	writeValue(c, "draco-mount alpaca telescope driver")
}

func (h *MountHandlers) name(c *gin.Context) {
	writeValue(c, "AlpacaMount")
}
