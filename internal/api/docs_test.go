package api

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	_ "github.com/aicompanion/companion/docs"
)

func TestSwaggerDocCoversAPIRoutes(t *testing.T) {
	e := newTestServer(t)

	raw, err := swag.ReadDoc()
	require.NoError(t, err)
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	documented := 0
	for _, r := range e.Routes() {
		if r.Method == echo.RouteNotFound {
			continue
		}
		if !strings.HasPrefix(r.Path, "/auth/") && !strings.HasPrefix(r.Path, "/v1/") {
			continue
		}
		ops, ok := doc.Paths[r.Path]
		require.Truef(t, ok, "%s %s is not in the swagger doc", r.Method, r.Path)
		_, ok = ops[strings.ToLower(r.Method)]
		require.Truef(t, ok, "%s %s is not in the swagger doc", r.Method, r.Path)
		documented++
	}

	total := 0
	for _, ops := range doc.Paths {
		total += len(ops)
	}
	require.Equal(t, total, documented, "swagger doc lists routes the router does not serve")
}
