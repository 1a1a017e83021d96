package fmcsa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/telemetry"

	"github.com/stretchr/testify/require"
)

type fixtureServer struct {
	*httptest.Server
	carrlistHits atomic.Int64
}

func serveFixture(w http.ResponseWriter, name string) {
	content, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "text/html; charset=ISO-8859-1")
	_, _ = w.Write(content)
}

func newFixtureServer(t testing.TB) *fixtureServer {
	fs := &fixtureServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/query.asp", func(w http.ResponseWriter, r *http.Request) {
		switch r.FormValue("query_string") {
		case "123456":
			serveFixture(w, "safer.html")
		case "2":
			serveFixture(w, "safer_inactive.html")
		default:
			serveFixture(w, "safer_not_found.html")
		}
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/LIVIEW/pkg_carrquery.prc_carrlist", func(w http.ResponseWriter, r *http.Request) {
		fs.carrlistHits.Add(1)
		switch r.FormValue("n_dotno") {
		case "123456", "654321":
			serveFixture(w, "carrlist.html")
		default:
			serveFixture(w, "carrlist_empty.html")
		}
	})
	mux.HandleFunc("/LIVIEW/pkg_carrquery.prc_getdetail", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("pv_apcant_id") != "555" || r.FormValue("pv_vpath") != "LIVIEW" {
			http.Error(w, "unknown applicant", http.StatusBadRequest)
			return
		}
		serveFixture(w, "detail.html")
	})
	mux.HandleFunc("/LIVIEW/pkg_carrquery.prc_insurancehistory", func(w http.ResponseWriter, r *http.Request) {
		serveFixture(w, "insurance_history.html")
	})
	mux.HandleFunc("/LIVIEW/pkg_carrquery.prc_activeinsurance", func(w http.ResponseWriter, r *http.Request) {
		serveFixture(w, "no_data.html")
	})
	mux.HandleFunc("/LIVIEW/pkg_carrquery.prc_revocation", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(t testing.TB, srv *fixtureServer, cfg Config) *Client {
	if cfg.SaferUrl == "" {
		cfg.SaferUrl = srv.URL + "/query.asp"
	}
	cfg.LicenseUrl = srv.URL + "/LIVIEW/"
	cfg.RequestsPerSecond = 100
	client, err := NewClient(cfg, telemetry.NewRecordingAPI())
	require.NoError(t, err)
	return client
}

func TestExtractSafer(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{})

	rows, err := client.Extract(context.Background(), record.ReportSafer, "123456")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]

	require.Equal(t, "10/14/2026", row["page_date"])
	require.Equal(t, "CARRIER", row["entity_type"])
	require.Equal(t, "ACTIVE", row["status"])
	require.Equal(t, "ACME TRUCKING LLC", row["legal_name"])
	require.Equal(t, "123 MAIN ST SPRINGFIELD, IL 62701", row["address"])
	require.Equal(t, "(555) 555-0100", row["telephone"])
	require.Equal(t, "MC-123456", row["mc_number"])
	require.Equal(t, "120,000", row["mcs150_mileage"])
	require.Equal(t, "2023", row["mcs150_mileage_year"])
	require.Equal(t, "Non-Ratable", row["rating_type"])
	require.Equal(t, []string{"Auth. For Hire", "Priv. Pass.(Business)"}, row["operation_classification"])
	require.Equal(t, []string{"Interstate"}, row["carrier_operation_list"])
	require.Equal(t, []string{"General Freight", "Building Materials"}, row["cargo_carried"])

	require.Equal(t, "10", row["veh_inspections"])
	require.Equal(t, "5%", row["driver_oos_pct"])
	require.Equal(t, "22.26%", row["veh_oos_national_avg"])
	require.NotContains(t, row, "iep_oos_national_avg")
	require.Equal(t, "3", row["crashes_total"])
	require.Equal(t, "4", row["veh_inspections_ca"])
	require.Equal(t, "25%", row["veh_oos_pct_ca"])
	require.Equal(t, "0", row["crashes_fatal_ca"])

	rec, err := record.Safer.Apply("123456", row, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(12), rec.Get("nbr_power_unit"))
	require.Equal(t, int64(120000), rec.Get("mcs150_mileage"))
	require.Equal(t, "2025-01-15", rec.Get("mcs150_date"))
	require.Nil(t, rec.Get("oos_date"))
	require.Equal(t, 20.0, rec.Get("veh_oos_pct"))
}

func TestExtractSaferMissing(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{})

	_, err := client.Extract(context.Background(), record.ReportSafer, "1")
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = client.Extract(context.Background(), record.ReportSafer, "2")
	require.ErrorIs(t, err, ErrInactiveRecord)
}

func TestExtractLicense(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{})

	rows, err := client.Extract(context.Background(), record.ReportLicense, "123456")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]

	require.Equal(t, "ACTIVE", row["common_authority_status"])
	require.Equal(t, "Yes", row["broker_application_pending"])
	require.Equal(t, "YES", row["ins_property"])
	require.Equal(t, "NO", row["ins_enterprise"])
	require.Equal(t, "$1,000,000*", row["bipd_on_file"])

	rec, err := record.License.Apply("123456", row, time.Now())
	require.NoError(t, err)
	require.Equal(t, true, rec.Get("ins_property"))
	require.Equal(t, false, rec.Get("common_application_pending"))
	require.Equal(t, "$1,000,000", rec.Get("bipd_on_file"))
}

func TestExtractLicenseOtherCarrier(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{})

	// the detail page belongs to 123456
	_, err := client.Extract(context.Background(), record.ReportLicense, "654321")
	require.ErrorIs(t, err, ErrNoDataAvailable)
}

func TestExtractNoLicensingRecord(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{})

	for _, page := range []string{record.ReportLicense, record.ReportInsuranceHistory} {
		_, err := client.Extract(context.Background(), page, "999999")
		require.ErrorIs(t, err, ErrNoDataAvailable, page)
	}
	require.Equal(t, int64(1), srv.carrlistHits.Load())
}

func TestExtractRows(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{})
	ctx := context.Background()

	rows, err := client.Extract(ctx, record.ReportInsuranceHistory, "123456")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, record.Raw{
		"form_name":      "91X",
		"insurance_type": "BIPD/Primary",
		"carrier":        "GEICO",
		"policy_name":    "GX-200",
		"coverage_from":  "$0",
		"coverage_to":    "$1,000,000",
		"date_from":      "01/01/2024",
		"status":         "Cancelled",
		"date_to":        "06/30/2025",
	}, rows[1])
	for _, row := range rows {
		_, err := record.InsuranceHistory.Apply("123456", row, time.Now())
		require.NoError(t, err)
	}

	_, err = client.Extract(ctx, record.ReportActiveInsurance, "123456")
	require.ErrorIs(t, err, ErrNoDataAvailable)

	_, err = client.Extract(ctx, record.ReportRevocation, "123456")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoDataAvailable)

	_, err = client.Extract(ctx, "census", "123456")
	require.ErrorIs(t, err, ErrUnknownPage)

	// one carrier list lookup serves every licensing page
	require.Equal(t, int64(1), srv.carrlistHits.Load())
}

func TestExtractTimeout(t *testing.T) {
	srv := newFixtureServer(t)
	client := newTestClient(t, srv, Config{
		SaferUrl:  srv.URL + "/slow",
		TimeoutMs: 50,
	})

	_, err := client.Extract(context.Background(), record.ReportSafer, "123456")
	require.ErrorIs(t, err, ErrFetchTimeout)
}
