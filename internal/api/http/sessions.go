package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/sensor-multitool/internal/feature"
	"github.com/i474232898/sensor-multitool/internal/session"
	"github.com/i474232898/sensor-multitool/internal/users"
)

type openSessionRequest struct {
	Feature string `json:"feature" validate:"required,oneof=compass station theme proximity"`
	UserID  *int   `json:"userId"`
}

type sessionResponse struct {
	ID       uuid.UUID       `json:"id"`
	Feature  feature.Feature `json:"feature"`
	UserID   int             `json:"userId"`
	OpenedAt time.Time       `json:"openedAt"`
	State    any             `json:"state"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:       s.ID,
		Feature:  s.Feature,
		UserID:   s.UserID,
		OpenedAt: s.OpenedAt,
		State:    s.Controller.Snapshot(),
	}
}

func (h *handler) openSession(c *fiber.Ctx) error {
	var req openSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	f, err := feature.ParseFeature(req.Feature)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	userID := users.GuestID
	if req.UserID != nil {
		userID = *req.UserID
	}

	s, err := h.Sessions.Open(f, userID)
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(s))
}

func (h *handler) listSessions(c *fiber.Ctx) error {
	list := h.Sessions.List()
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionResponse(s))
	}
	return c.JSON(out)
}

// lookupSession resolves the :id route parameter.
func (h *handler) lookupSession(c *fiber.Ctx) (*session.Session, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	s, err := h.Sessions.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return nil, err
	}
	return s, nil
}

// lookupStation resolves :id and requires a weather station session.
func (h *handler) lookupStation(c *fiber.Ctx) (*feature.StationController, error) {
	s, err := h.lookupSession(c)
	if err != nil {
		return nil, err
	}
	st := s.Station()
	if st == nil {
		return nil, fiber.NewError(fiber.StatusConflict, "session is not a weather station")
	}
	return st, nil
}

func (h *handler) getSession(c *fiber.Ctx) error {
	s, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	return c.JSON(toSessionResponse(s))
}

func (h *handler) sessionEvents(c *fiber.Ctx) error {
	s, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	h.stream(c, s.Controller, "session_id", s.ID.String())
	return nil
}

func (h *handler) closeSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	if err := h.Sessions.Close(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type permissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// stationPermission records the permission answer for the device and hands
// it to the station.
func (h *handler) stationPermission(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	var req permissionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if h.Tracker != nil {
		h.Tracker.SetGranted(*req.Granted)
	}
	st.OnPermissionResult(*req.Granted)
	return c.Status(fiber.StatusAccepted).JSON(st.State())
}

func (h *handler) stationWeather(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	st.LoadWeather()
	return c.Status(fiber.StatusAccepted).JSON(st.State())
}

func (h *handler) stationEnableHandled(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	st.LocationEnableHandled()
	return c.JSON(st.State())
}
