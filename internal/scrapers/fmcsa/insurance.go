package fmcsa

import (
	"strings"

	"fmcsa-backend/internal/record"
	"fmcsa-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type rowPage struct {
	procedure string
	// columns in the order the page lays them out, blank columns are skipped
	columns []string
}

var rowPages = map[string]rowPage{
	record.ReportInsuranceHistory: {
		procedure: "prc_insurancehistory",
		columns: []string{
			"form_name", "insurance_type", "carrier", "policy_name",
			"coverage_from", "coverage_to", "date_from", "status", "date_to",
		},
	},
	record.ReportActiveInsurance: {
		procedure: "prc_activeinsurance",
		columns: []string{
			"form_name", "insurance_type", "carrier", "policy_name", "posted_date",
			"coverage_from", "coverage_to", "effective_date", "cancellation_date",
		},
	},
	record.ReportRejectedInsurance: {
		procedure: "prc_rejectinsurance",
		columns: []string{
			"form_name", "insurance_type", "carrier", "policy_name",
			"coverage_from", "coverage_to", "received_date", "rejected_date",
		},
	},
	record.ReportAuthorityHistory: {
		procedure: "prc_authorityhistory",
		columns:   []string{"auth_type", "action", "action_date", "disposition", "disposition_date"},
	},
	record.ReportPendingApplication: {
		procedure: "prc_pendingapplication",
		columns:   []string{"auth_type", "file_date", "insurance", "boc_3"},
	},
	record.ReportRevocation: {
		procedure: "prc_revocation",
		columns:   []string{"auth_type", "initial_date", "effective_date", "reason"},
	},
}

func hasData(doc *goquery.Document) bool {
	noData := false
	doc.Find(`strong font[color="red"]`).EachWithBreak(func(_ int, font *goquery.Selection) bool {
		noData = strings.EqualFold(htmlutil.Text(font), "No Data Available")
		return !noData
	})
	return !noData
}

// parseRows reads the data rows of a licensing sub page, they are the only
// rows aligned LEFT.
func parseRows(doc *goquery.Document, columns []string) ([]record.Raw, error) {
	if !hasData(doc) {
		return nil, ErrNoDataAvailable
	}

	var rows []record.Raw
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		align, _ := tr.Attr("align")
		if !strings.EqualFold(align, "left") {
			return
		}
		cells := htmlutil.Cells(tr)
		row := record.Raw{}
		for i, name := range columns {
			if i >= len(cells) {
				break
			}
			row[name] = cells[i]
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	if len(rows) == 0 {
		return nil, ErrNoDataAvailable
	}
	return rows, nil
}
