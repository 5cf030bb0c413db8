package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/sensor"
)

type sensorsRequest struct {
	Available []string `json:"available" validate:"dive,required"`
}

func (h *handler) putSensors(c *fiber.Ctx) error {
	var req sensorsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	kinds := make([]sensor.Kind, 0, len(req.Available))
	for _, name := range req.Available {
		k, err := sensor.ParseKind(name)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		kinds = append(kinds, k)
	}

	h.Platform.SetAvailable(kinds...)
	registered := 0
	if h.Hub != nil {
		registered = h.Hub.Rescan()
	}
	h.Logger.Info("device sensors updated", "available", kinds, "registered", registered)

	available := h.Platform.AvailableKinds()
	units := make(map[string]string, len(available))
	for _, k := range available {
		units[k.String()] = k.Unit()
	}

	return c.JSON(fiber.Map{
		"available":  available,
		"units":      units,
		"registered": registered,
	})
}

type sampleBody struct {
	Kind   string    `json:"kind" validate:"required"`
	Vector []float64 `json:"vector" validate:"omitempty,len=3"`
	Value  *float64  `json:"value"`
}

func (b sampleBody) toSample() (sensor.Sample, error) {
	k, err := sensor.ParseKind(b.Kind)
	if err != nil {
		return sensor.Sample{}, err
	}
	if k.IsVector() {
		if len(b.Vector) != 3 {
			return sensor.Sample{}, fmt.Errorf("%s sample needs a 3-axis vector", k)
		}
		return sensor.VectorSample(k, b.Vector[0], b.Vector[1], b.Vector[2]), nil
	}
	if b.Value == nil {
		return sensor.Sample{}, fmt.Errorf("%s sample needs a value", k)
	}
	return sensor.ScalarSample(k, *b.Value), nil
}

type samplesRequest struct {
	Samples []sampleBody `json:"samples" validate:"required,min=1,max=1000,dive"`
}

// postSamples pushes a batch in request order. The batch is rejected as a
// whole if any sample is malformed.
func (h *handler) postSamples(c *fiber.Ctx) error {
	var req samplesRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	samples := make([]sensor.Sample, 0, len(req.Samples))
	for i, b := range req.Samples {
		s, err := b.toSample()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("samples[%d]: %v", i, err))
		}
		samples = append(samples, s)
	}

	delivered := h.Platform.Emit(samples...)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted":  len(samples),
		"delivered": delivered,
	})
}

type locationRequest struct {
	Granted *bool              `json:"granted"`
	Enabled *bool              `json:"enabled"`
	Fix     *location.Position `json:"fix"`
}

func (h *handler) putLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if req.Granted != nil {
		h.Tracker.SetGranted(*req.Granted)
		if !*req.Granted {
			// A revoked permission invalidates the cached fix.
			h.Tracker.Forget()
		}
	}
	if req.Enabled != nil {
		h.Tracker.SetEnabled(*req.Enabled)
	}
	if req.Fix != nil {
		h.Tracker.Report(*req.Fix)
	}

	return c.JSON(fiber.Map{
		"granted": h.Tracker.Granted(),
		"enabled": h.Tracker.Enabled(),
	})
}
