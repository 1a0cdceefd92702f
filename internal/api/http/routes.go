package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-extraction/internal/common"
	"github.com/i474232898/weather-extraction/internal/extraction"
	"github.com/i474232898/weather-extraction/internal/runner"
	"github.com/i474232898/weather-extraction/internal/store"
)

var validate = validator.New()

// ObjectLister lists stored objects by key prefix.
type ObjectLister interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, r *runner.Runner, objects ObjectLister) {
	v1 := app.Group("/api/v1")
	svc := r.Service()

	v1.Post("/activations", func(c *fiber.Ctx) error {
		var in extraction.ActivationInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid activation input: "+err.Error())
		}

		res, err := r.Run(c.UserContext(), in)
		if err != nil {
			return activationError(c, res, err)
		}
		return c.JSON(res)
	})

	v1.Post("/activations/scheduled", func(c *fiber.Ctx) error {
		res, err := r.Activate(c.UserContext())
		if err != nil {
			return activationError(c, res, err)
		}
		return c.JSON(res)
	})

	v1.Post("/weight", func(c *fiber.Ctx) error {
		var task extraction.Task
		if err := c.BodyParser(&task); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid task: "+err.Error())
		}

		weight, err := svc.Pricing().Weight(task)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(fiber.Map{
			"weight":  weight,
			"display": common.Display(weight),
		})
	})

	v1.Get("/cadence", func(c *fiber.Ctx) error {
		ctrl := svc.Cadence()
		mode := ctrl.Current()
		expr, _ := mode.Expression()
		return c.JSON(fiber.Map{
			"rule":       ctrl.RuleName(),
			"mode":       mode,
			"expression": expr,
		})
	})

	v1.Put("/cadence/:mode", func(c *fiber.Ctx) error {
		mode, err := extraction.ParseCadenceMode(c.Params("mode"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := svc.Cadence().SetCadence(c.UserContext(), mode)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
				"result":  res,
			})
		}
		return c.JSON(res)
	})

	v1.Get("/objects", func(c *fiber.Ctx) error {
		q := objectsQuery{
			Bucket: c.Query("bucket"),
			Prefix: c.Query("prefix"),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		keys, err := objects.List(c.UserContext(), q.Bucket, q.Prefix)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list objects")
		}
		if keys == nil {
			keys = []string{}
		}
		return c.JSON(fiber.Map{
			"bucket": q.Bucket,
			"prefix": q.Prefix,
			"keys":   keys,
		})
	})
}

// objectsQuery holds query parameters for the objects endpoint.
type objectsQuery struct {
	Bucket string `validate:"required"`
	Prefix string
}

// activationError writes the failure together with whatever the activation
// completed before it stopped.
func activationError(c *fiber.Ctx, res extraction.ActivationResult, err error) error {
	body := fiber.Map{
		"error":   true,
		"message": err.Error(),
	}
	if res.ID != "" {
		body["result"] = res
	}
	return c.Status(statusFor(err)).JSON(body)
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, runner.ErrActivationInProgress):
		return fiber.StatusConflict
	case errors.Is(err, extraction.ErrEmptyDocument),
		errors.Is(err, extraction.ErrMalformedBatch),
		errors.Is(err, extraction.ErrMalformedTask):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, extraction.ErrUnknownCadence), errors.As(err, &verrs):
		return fiber.StatusBadRequest
	case errors.Is(err, extraction.ErrProvider):
		return fiber.StatusBadGateway
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
