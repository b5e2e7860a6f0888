package serverutils

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"property-insight-be/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	SessionId string `json:"sessionId" validate:"required"`
	Feedback  string `json:"feedback" validate:"required,oneof=positive negative"`
	Rating    int    `json:"overallRating" validate:"omitempty,min=1,max=5"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       sampleRequest
		wantField string
	}{
		{"valid", sampleRequest{SessionId: "abc", Feedback: "negative"}, ""},
		{"missing session", sampleRequest{Feedback: "negative"}, "sessionId"},
		{"bad polarity", sampleRequest{SessionId: "abc", Feedback: "maybe"}, "feedback"},
		{"rating too high", sampleRequest{SessionId: "abc", Feedback: "positive", Rating: 6}, "overallRating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *entity.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/validation", func(ctx *fiber.Ctx) error {
		return &entity.ValidationError{Field: "feedback", Reason: "must be positive or negative"}
	})
	app.Get("/missing", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "nope")
	})
	app.Get("/boom", func(ctx *fiber.Ctx) error {
		return errors.New("boom")
	})

	for path, want := range map[string]int{"/validation": 400, "/missing": 404, "/boom": 500} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `"success":false`)
	}
}

func TestIdentityMiddleware(t *testing.T) {
	const secret = "test-secret"
	app := fiber.New()
	app.Use(IdentityMiddleware(secret))
	app.Get("/", func(ctx *fiber.Ctx) error {
		if id := CallerID(ctx); id != nil {
			return ctx.SendString(*id)
		}
		return ctx.SendString("anonymous")
	})

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-1"}).SignedString([]byte(secret))
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-2"}).SignedString([]byte("other"))
	require.NoError(t, err)

	tests := map[string]string{
		"":                   "anonymous",
		"Bearer " + signed:   "u-1",
		"Bearer " + forged:   "anonymous",
		"Bearer not-a-token": "anonymous",
	}
	for header, want := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, want, string(body))
	}
}
