package fmcsa

import (
	"regexp"
	"strings"

	"fmcsa-backend/internal/record"
	"fmcsa-backend/lib/htmlutil"
	"fmcsa-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// saferLabels maps the normalized label cells of the snapshot to field names.
var saferLabels = map[string]string{
	"entitytype":               "entity_type",
	"usdotstatus":              "status",
	"outofservicedate":         "oos_date",
	"operatingauthoritystatus": "carrier_operation",
	"legalname":                "legal_name",
	"dbaname":                  "dba_name",
	"physicaladdress":          "address",
	"phone":                    "telephone",
	"mailingaddress":           "mailing_address",
	"statecarrieridnumber":     "state_id",
	"mcmxffnumbers":            "mc_number",
	"dunsnumber":               "duns_number",
	"powerunits":               "nbr_power_unit",
	"drivers":                  "driver_total",
	"mcs150formdate":           "mcs150_date",
	"ratingdate":               "rating_date",
	"reviewdate":               "review_date",
	"rating":                   "rating",
	"type":                     "rating_type",
}

const mileageLabel = "mcs150mileageyear"

var saferLists = map[string]string{
	"Operation Classification": "operation_classification",
	"Carrier Operation":        "carrier_operation_list",
	"Cargo Carried":            "cargo_carried",
}

var (
	pageDateRegex = regexp.MustCompile(`as of\s+(\d{2}/\d{2}/\d{4})`)
	mileageRegex  = regexp.MustCompile(`^([\d,]+)\s*\((\d{4})\)$`)
)

// counter columns of the inspection and crash tables
var counterColumns = map[string]string{
	"vehicle": "veh",
	"driver":  "driver",
	"hazmat":  "hazmat",
	"iep":     "iep",
	"fatal":   "fatal",
	"injury":  "injury",
	"tow":     "tow",
	"total":   "total",
}

func checkSaferStatus(doc *goquery.Document) error {
	var err error
	doc.Find("font").EachWithBreak(func(_ int, font *goquery.Selection) bool {
		text := htmlutil.Text(font)
		switch {
		case strings.HasPrefix(text, "No records matching"):
			err = ErrRecordNotFound
		case strings.HasPrefix(text, "The record matching"):
			err = ErrInactiveRecord
		}
		return err == nil
	})
	return err
}

func parseSafer(doc *goquery.Document) (record.Raw, error) {
	if err := checkSaferStatus(doc); err != nil {
		return nil, err
	}

	row := record.Raw{}
	doc.Find("th").Each(func(_ int, th *goquery.Selection) {
		label := textutil.NormalizeLabel(htmlutil.Text(th))
		value := th.NextFiltered("td")
		if value.Length() == 0 {
			return
		}
		text := htmlutil.Text(value)

		if label == mileageLabel {
			m := mileageRegex.FindStringSubmatch(text)
			if m != nil {
				row["mcs150_mileage"] = m[1]
				row["mcs150_mileage_year"] = m[2]
			}
			return
		}
		name, ok := saferLabels[label]
		if !ok {
			return
		}
		if _, seen := row[name]; seen {
			return
		}
		row[name] = text
	})
	if len(row) == 0 {
		return nil, ErrNoDataAvailable
	}

	if m := pageDateRegex.FindStringSubmatch(htmlutil.Text(doc.Find("body"))); m != nil {
		row["page_date"] = m[1]
	}

	for summary, name := range saferLists {
		row[name] = parseCheckList(doc.Find(`table[summary="` + summary + `"]`))
	}

	doc.Find(`table[summary="Inspections"]`).Each(func(i int, table *goquery.Selection) {
		parseCounters(row, table, i == 1)
	})
	doc.Find(`table[summary="Crashes"]`).Each(func(i int, table *goquery.Selection) {
		parseCounters(row, table, i == 1)
	})

	return row, nil
}

// parseCheckList collects the entries marked with an X, the label is the
// cell right after the mark.
func parseCheckList(table *goquery.Selection) []string {
	items := []string{}
	table.Find("td").Each(func(_ int, td *goquery.Selection) {
		if htmlutil.Text(td) != "X" {
			return
		}
		text := htmlutil.Text(td.Next())
		if text != "" && text != "X" {
			items = append(items, text)
		}
	})
	return items
}

func counterSuffix(label string) string {
	label = strings.ToLower(label)
	switch {
	case strings.Contains(label, "nat") && strings.Contains(label, "average"):
		return "oos_national_avg"
	case strings.Contains(label, "%"):
		return "oos_pct"
	case strings.Contains(label, "out of service"):
		return "oos"
	case strings.Contains(label, "inspections"):
		return "inspections"
	case strings.Contains(label, "crashes"):
		return ""
	}
	return "-"
}

// parseCounters reads an inspection or crash table: the first row names the
// columns and every other row is one counter per column. The second table of
// each kind on the page is the Canadian one.
func parseCounters(row record.Raw, table *goquery.Selection, canada bool) {
	var columns []string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := htmlutil.Cells(tr)
		if len(cells) < 2 {
			return
		}
		if columns == nil {
			columns = make([]string, len(cells))
			for j, cell := range cells {
				columns[j] = counterColumns[textutil.NormalizeLabel(cell)]
			}
			return
		}

		suffix := counterSuffix(cells[0])
		if suffix == "-" {
			return
		}
		for j := 1; j < len(cells) && j < len(columns); j++ {
			if columns[j] == "" || strings.EqualFold(cells[j], "N/A") {
				continue
			}
			var name string
			if suffix == "" {
				name = "crashes_" + columns[j]
			} else {
				name = columns[j] + "_" + suffix
			}
			if canada {
				name += "_ca"
			}
			if _, ok := record.Safer.Field(name); !ok {
				continue
			}
			row[name] = cells[j]
		}
	})
}
