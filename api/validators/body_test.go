package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
)

type quantityPayload struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type optionalPayload struct {
	Quantity *int `json:"quantity" validate:"omitempty,gte=1"`
}

func bundleRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPut, "/api/v1/cart/bundle", strings.NewReader(body))
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "valid", body: `{"quantity":4}`},
		{name: "zero allowed", body: `{"quantity":0}`},
		{name: "missing field", body: `{}`, wantErr: true, field: "quantity"},
		{name: "negative", body: `{"quantity":-1}`, wantErr: true, field: "quantity"},
		{name: "unknown field", body: `{"quantity":1,"variant":"x"}`, wantErr: true},
		{name: "wrong type", body: `{"quantity":"four"}`, wantErr: true},
		{name: "not json", body: `quantity=1`, wantErr: true},
		{name: "truncated", body: `{"quantity":`, wantErr: true},
		{name: "trailing object", body: `{"quantity":1}{"quantity":2}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "too large", body: `{"quantity":1,"pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload quantityPayload
			err := DecodeJSONBody(bundleRequest(tt.body), &payload)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
			if tt.field == "" {
				return
			}
			details, ok := pkgerrors.As(err).Details().(map[string]string)
			require.True(t, ok, "expected field details, got %#v", pkgerrors.As(err).Details())
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestDecodeJSONBodyDetails(t *testing.T) {
	err := DecodeJSONBody(bundleRequest(`{"quantity":1,"variant":"x"}`), &quantityPayload{})
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "variant", details["field"])

	err = DecodeJSONBody(bundleRequest(`{"quantity":"four"}`), &quantityPayload{})
	assert.Equal(t, `field "quantity" has the wrong type`, pkgerrors.As(err).Message())
}

func TestDecodeOptionalJSONBody(t *testing.T) {
	var payload optionalPayload
	present, err := DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPost, "/api/v1/cart/add", nil), &payload)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, payload.Quantity)

	present, err = DecodeOptionalJSONBody(bundleRequest(`{"quantity":3}`), &payload)
	require.NoError(t, err)
	assert.True(t, present)
	require.NotNil(t, payload.Quantity)
	assert.Equal(t, 3, *payload.Quantity)

	_, err = DecodeOptionalJSONBody(bundleRequest(`{"quantity":-1}`), &optionalPayload{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
