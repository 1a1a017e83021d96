// client.go contains the transport side of the FMCSA scraper, the parsing of
// each page lives next to it in safer.go, license.go and insurance.go.

package fmcsa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/cookiejar"
	"strings"
	"time"

	"fmcsa-backend/internal/assert"
	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/telemetry"
	"fmcsa-backend/lib/htmlutil"
	"fmcsa-backend/lib/restyutil"
	libtelemetry "fmcsa-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("internal/scrapers/fmcsa")

const (
	report_client_fetch     = "client.fetch"
	report_client_applicant = "client.applicant"
	report_client_extract   = "client.extract"
)

const (
	DefaultSaferUrl   = "https://safer.fmcsa.dot.gov/query.asp"
	DefaultLicenseUrl = "https://li-public.fmcsa.dot.gov/LIVIEW/"
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type Config struct {
	SaferUrl          string  `json:"safer_url"`
	LicenseUrl        string  `json:"license_url"`
	TimeoutMs         int     `json:"timeout_ms"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Retries           int     `json:"retries"`
	UserAgent         string  `json:"user_agent"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

func (c Config) withDefaults() Config {
	if c.SaferUrl == "" {
		c.SaferUrl = DefaultSaferUrl
	}
	if c.LicenseUrl == "" {
		c.LicenseUrl = DefaultLicenseUrl
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 120_000
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// applicant is the licensing system's internal id for a carrier, a zero
// value means the carrier has no licensing record.
type applicant struct {
	id    string
	vpath string
}

type Client struct {
	http       *resty.Client
	cfg        Config
	applicants *expirable.LRU[string, applicant]
	tel        telemetry.API
}

func NewClient(cfg Config, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("fmcsa_scraper", tel)
	cfg = cfg.withDefaults()

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if cfg.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", cfg.UserAgent)
	httpClient.SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond)
	httpClient.SetRetryCount(cfg.Retries)
	httpClient.SetRetryWaitTime(500 * time.Millisecond)
	httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
		return res != nil && res.StatusCode() >= 500
	})

	// max burst >= requests per second just means that no requests will be dropped
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	libtelemetry.TraceResty(httpClient, "internal/scrapers/fmcsa/resty")

	return &Client{
		http:       httpClient,
		cfg:        cfg,
		applicants: expirable.NewLRU[string, applicant](2048, nil, time.Minute*15),
		tel:        tel,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// fetch posts a form and parses the response, FMCSA serves ISO-8859-1.
func (c *Client) fetch(ctx context.Context, url string, form map[string]string) (*goquery.Document, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(url)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrFetchTimeout, url)
		}
		c.tel.ReportWarning(report_client_fetch, url, err)
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, res.Status())
	}

	body, err := charmap.ISO8859_1.NewDecoder().Bytes(res.Body())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, fmt.Errorf("parse html: %w", err), url)
		return nil, err
	}
	return doc, nil
}

func (c *Client) licenseUrl(procedure string) string {
	return strings.TrimSuffix(c.cfg.LicenseUrl, "/") + "/pkg_carrquery." + procedure
}

// applicant finds the licensing id of a carrier through the carrier list
// page, results (including misses) are cached.
func (c *Client) applicant(ctx context.Context, dotNumber string) (applicant, error) {
	if cached, ok := c.applicants.Get(dotNumber); ok {
		return cached, nil
	}

	doc, err := c.fetch(ctx, c.licenseUrl("prc_carrlist"), map[string]string{
		"n_dotno": dotNumber,
	})
	if err != nil {
		return applicant{}, err
	}

	var found applicant
	doc.Find(`form[action="pkg_carrquery.prc_getdetail"]`).EachWithBreak(func(_ int, form *goquery.Selection) bool {
		values := htmlutil.FormValues(form)
		found = applicant{id: values["pv_apcant_id"], vpath: values["pv_vpath"]}
		return found.id == ""
	})
	if found.id == "" {
		c.tel.ReportDebug(report_client_applicant, "no licensing record", dotNumber)
	}
	c.applicants.Add(dotNumber, found)
	return found, nil
}

func (c *Client) fetchLicensePage(ctx context.Context, procedure, dotNumber string) (*goquery.Document, error) {
	app, err := c.applicant(ctx, dotNumber)
	if err != nil {
		return nil, err
	}
	if app.id == "" {
		return nil, fmt.Errorf("%w: %s has no licensing record", ErrNoDataAvailable, dotNumber)
	}
	return c.fetch(ctx, c.licenseUrl(procedure), map[string]string{
		"pv_apcant_id": app.id,
		"pv_vpath":     app.vpath,
	})
}

// Extract fetches one page for a carrier and returns its raw rows, versioned
// pages yield exactly one row.
func (c *Client) Extract(ctx context.Context, page, subjectKey string) ([]record.Raw, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("page", page),
		attribute.String("dot_number", subjectKey),
	)

	rows, err := c.extract(ctx, page, subjectKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	c.tel.ReportDebug(report_client_extract, page, subjectKey, len(rows))
	return rows, nil
}

func (c *Client) extract(ctx context.Context, page, dotNumber string) ([]record.Raw, error) {
	switch page {
	case record.ReportSafer:
		doc, err := c.fetch(ctx, c.cfg.SaferUrl, map[string]string{
			"searchtype":   "ANY",
			"query_type":   "queryCarrierSnapshot",
			"query_param":  "USDOT",
			"query_string": dotNumber,
		})
		if err != nil {
			return nil, err
		}
		row, err := parseSafer(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dotNumber, err)
		}
		return []record.Raw{row}, nil
	case record.ReportLicense:
		doc, err := c.fetchLicensePage(ctx, "prc_getdetail", dotNumber)
		if err != nil {
			return nil, err
		}
		row, err := parseLicense(doc, dotNumber)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dotNumber, err)
		}
		return []record.Raw{row}, nil
	}

	table, ok := rowPages[page]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPage, page)
	}
	doc, err := c.fetchLicensePage(ctx, table.procedure, dotNumber)
	if err != nil {
		return nil, err
	}
	rows, err := parseRows(doc, table.columns)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", page, dotNumber, err)
	}
	return rows, nil
}

// Dump writes every exchange the client makes to output, for debugging parsers
// against live pages.
func (c *Client) Dump(output restyutil.InstrumentOutput) {
	restyutil.DumpClient(c.http, output)
}
