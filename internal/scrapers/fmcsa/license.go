package fmcsa

import (
	"fmcsa-backend/internal/record"
	"fmcsa-backend/lib/htmlutil"
	"fmcsa-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

var authorityRows = map[string]string{
	"common":   "common",
	"contract": "contract",
	"broker":   "broker",
}

var coverageRows = map[string]string{
	"bipd":  "bipd",
	"cargo": "cargo",
	"bond":  "bond",
}

var insuranceFlags = map[string]string{
	"property":       "ins_property",
	"passenger":      "ins_passenger",
	"householdgoods": "ins_household_goods",
	"private":        "ins_private",
	"enterprise":     "ins_enterprise",
}

// hasDotNumber reports whether the page is the detail page of the carrier,
// the licensing system answers unknown applicants with an empty shell.
func hasDotNumber(doc *goquery.Document, dotNumber string) bool {
	found := false
	doc.Find("th, td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		switch textutil.NormalizeLabel(htmlutil.Text(cell)) {
		case "usdot", "usdotnumber":
			found = textutil.Digits(htmlutil.Text(cell.Next())) == dotNumber
		}
		return !found
	})
	return found
}

func parseLicense(doc *goquery.Document, dotNumber string) (record.Raw, error) {
	if !hasDotNumber(doc, dotNumber) {
		return nil, ErrNoDataAvailable
	}

	row := record.Raw{}
	var flagColumns []string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := htmlutil.Cells(tr)
		if len(cells) == 0 {
			return
		}

		if flagColumns != nil {
			for i, name := range flagColumns {
				if name != "" && i < len(cells) {
					row[name] = cells[i]
				}
			}
			flagColumns = nil
			return
		}

		label := textutil.NormalizeLabel(cells[0])
		if prefix, ok := authorityRows[label]; ok && len(cells) >= 3 {
			row[prefix+"_authority_status"] = cells[1]
			row[prefix+"_application_pending"] = cells[2]
			return
		}
		if prefix, ok := coverageRows[label]; ok && len(cells) >= 3 {
			row[prefix+"_required"] = cells[1]
			row[prefix+"_on_file"] = cells[2]
			return
		}

		// the insurance type flags are a header row followed by a row of values
		columns := make([]string, len(cells))
		matched := 0
		for i, cell := range cells {
			columns[i] = insuranceFlags[textutil.NormalizeLabel(cell)]
			if columns[i] != "" {
				matched++
			}
		}
		if matched >= 2 {
			flagColumns = columns
		}
	})
	if len(row) == 0 {
		return nil, ErrNoDataAvailable
	}
	return row, nil
}
