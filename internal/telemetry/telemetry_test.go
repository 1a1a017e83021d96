package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecordingAPI()
	tel := NewScopedAPI("store", rec)

	tel.ReportBroken("add-versioned", "a")
	tel.ReportWarning("add-versioned", "b")
	tel.ReportDebug("new version")
	tel.ReportCount("rows", 3)

	broken := rec.Reports("broken", "")
	require.Len(t, broken, 1)
	require.Equal(t, "store: add-versioned", broken[0].ID)
	require.Equal(t, []any{"a"}, broken[0].Params)

	require.Len(t, rec.Reports("warning", "add-versioned"), 1)
	require.Len(t, rec.Reports("debug", "new version"), 1)

	counts := rec.Reports("count", "rows")
	require.Len(t, counts, 1)
	require.EqualValues(t, 3, counts[0].Count)

	require.Empty(t, rec.Reports("broken", "rows"))
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	rec := NewRecordingAPI()
	client := resty.New()
	InstrumentResty(client, rec)

	res, err := client.R().Get(srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, res.StatusCode())

	require.Len(t, rec.Reports("debug", report_resty_request), 1)
	responses := rec.Reports("debug", report_resty_response)
	require.Len(t, responses, 1)
	require.EqualValues(t, 1, responses[0].Params[0])

	srv.Close()
	_, err = client.R().Get(srv.URL)
	require.Error(t, err)
	require.Len(t, rec.Reports("warning", report_resty_response), 1)
}
