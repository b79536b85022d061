package middleware

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	ready  bool
	tokens map[string]bool
}

func (f fakeStore) Ready() bool { return f.ready }
func (f fakeStore) Validate(token string) bool { return f.tokens[token] }

func newAuthApp(store TokenStore) *fiber.App {
	app := fiber.New()
	app.Get("/", RequireAPIKey(store), func(c *fiber.Ctx) error {
		return c.SendString(APIKey(c))
	})
	return app
}

func errorBody(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code, body.Error.Message
}

func TestRequireAPIKey(t *testing.T) {
	app := newAuthApp(fakeStore{ready: true, tokens: map[string]bool{"good": true}})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"unknown", "bad", fiber.StatusUnauthorized},
		{"valid", "good", fiber.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tc.key != "" {
				req.Header.Set(APIKeyHeader, tc.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status != fiber.StatusOK {
				code, msg := errorBody(t, resp)
				assert.Equal(t, tc.status, code)
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestRequireAPIKey_StoreNotReady(t *testing.T) {
	app := newAuthApp(fakeStore{ready: false})
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	_, msg := errorBody(t, resp)
	assert.Equal(t, "token store not ready", msg)
}
