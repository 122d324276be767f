package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pharmacy/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inboundInput struct {
	ItemID    string `json:"item_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	ExpiresOn string `json:"expires_on" binding:"required,isodate"`
}

func newValidationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req inboundInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func postJSON(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	require.NoError(t, SetupValidator())

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NoError(t, v.Var("2030-01-31", "isodate"))
	assert.Error(t, v.Var("31/01/2030", "isodate"))
	assert.Error(t, v.Var("2030-02-30", "isodate"))
}

func TestFormatValidationErrors(t *testing.T) {
	router := newValidationRouter(t)

	t.Run("reports each invalid field by JSON name", func(t *testing.T) {
		w := postJSON(router, `{"item_id": "nope", "quantity": 0, "expires_on": "tomorrow"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		require.Len(t, resp.Error.Details, 3)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", fields["item_id"])
		assert.Equal(t, "This field is required", fields["quantity"])
		assert.Equal(t, "Must be a date in YYYY-MM-DD format", fields["expires_on"])
	})

	t.Run("returns success for valid input", func(t *testing.T) {
		w := postJSON(router, `{"item_id": "3f2c1a9e-8d4b-4c6a-9f1e-2b7d5a0c8e41", "quantity": 3, "expires_on": "2031-06-30"}`)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestIsValidationError(t *testing.T) {
	require.NoError(t, SetupValidator())

	var req inboundInput
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	assert.True(t, IsValidationError(c.ShouldBindJSON(&req)))

	c.Request = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"quantity": "many"`))
	c.Request.Header.Set("Content-Type", "application/json")
	assert.False(t, IsValidationError(c.ShouldBindJSON(&req)))
}

func TestGetValidationMessage(t *testing.T) {
	type input struct {
		Required string `validate:"required"`
		Min      string `validate:"min=5"`
		UUID     string `validate:"uuid"`
		OneOf    string `validate:"oneof=a b c"`
		GTE      int    `validate:"gte=10"`
	}

	v := validator.New()
	err := v.Struct(input{Min: "ab", UUID: "invalid", OneOf: "d", GTE: 1})
	require.Error(t, err)

	expected := map[string]string{
		"Required": "This field is required",
		"Min":      "Must be at least 5 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: a b c",
		"GTE":      "Must be greater than or equal to 10",
	}
	for _, e := range err.(validator.ValidationErrors) {
		assert.Equal(t, expected[e.Field()], getValidationMessage(e), e.Field())
	}
}
