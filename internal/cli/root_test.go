package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/fares/internal/search/types"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fares 1.2.3 (commit: abc, built: today)\n", out)
}

func TestSearch_ArgErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing destination", []string{"search", "LAX"}},
		{"missing date", []string{"search", "LAX", "NRT"}},
		{"bad code", []string{"search", "LAXX", "NRT", "--date", "2025-03-15"}},
		{"bad cabin", []string{"search", "LAX", "NRT", "--date", "2025-03-15", "--cabin", "coach"}},
		{"too many passengers", []string{"search", "LAX", "NRT", "--date", "2025-03-15", "--passengers", "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSearchFlags_Query(t *testing.T) {
	f := &searchFlags{date: "2025-03-15", passengers: 2, cabin: "business"}
	q, err := f.query([]string{"lax", "nrt"})
	require.NoError(t, err)
	assert.Equal(t, types.Query{
		Origin: "LAX", Destination: "NRT", DepartureDate: "2025-03-15",
		Passengers: 2, CabinClass: types.CabinBusiness,
	}, q)
}

func TestSearch_PrintsResult(t *testing.T) {
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div data-ved="1"><ul><li class="pIav2d">`+
			`<div class="sSHqwe">JAL</div><div class="YMlIz">$512</div></li></ul></div></body></html>`)
	}))
	defer render.Close()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(
		"renderer:\n  kind: http\n  url: %s\ncache:\n  redis_url: \"\"\n", render.URL)), 0o644))

	out, _, err := run(t, "search", "lax", "nrt", "--date", "2025-03-15", "--config", path, "--countries", "IN,mx")
	require.NoError(t, err)

	var resp struct {
		Success bool `json:"success"`
		types.Result
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	require.NotNil(t, resp.BaselinePrice)
	assert.Equal(t, 512.0, *resp.BaselinePrice)
	for _, f := range resp.Flights {
		assert.Equal(t, "JAL", f.Airline)
		assert.Equal(t, 0, f.Stops)
		require.NotNil(t, f.Savings, "savings are set against an equal baseline")
		assert.Zero(t, f.Amount)
	}
}

func TestLower(t *testing.T) {
	assert.Equal(t, []string{"in", "mx"}, lower([]string{" IN ", "", "Mx"}))
}
