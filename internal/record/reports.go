package record

import "strings"

// Report type names. They double as table names and as the page names the
// extraction layer is asked for.
const (
	ReportSafer              = "safer"
	ReportLicense            = "license"
	ReportInsuranceHistory   = "insurance_history"
	ReportActiveInsurance    = "active_insurance"
	ReportRejectedInsurance  = "rejected_insurance"
	ReportAuthorityHistory   = "authority_history"
	ReportPendingApplication = "pending_application"
	ReportRevocation         = "revocation"
)

// inspection and crash counters, the Canadian table has no hazmat or IEP rows.
var (
	usCounters = []string{
		"veh_inspections", "veh_oos", "veh_oos_pct", "veh_oos_national_avg",
		"driver_inspections", "driver_oos", "driver_oos_pct", "driver_oos_national_avg",
		"hazmat_inspections", "hazmat_oos", "hazmat_oos_pct", "hazmat_oos_national_avg",
		"iep_inspections", "iep_oos", "iep_oos_pct", "iep_oos_national_avg",
		"crashes_fatal", "crashes_injury", "crashes_tow", "crashes_total",
	}
	caCounters = []string{
		"veh_inspections_ca", "veh_oos_ca", "veh_oos_pct_ca", "veh_oos_national_avg_ca",
		"driver_inspections_ca", "driver_oos_ca", "driver_oos_pct_ca", "driver_oos_national_avg_ca",
		"crashes_fatal_ca", "crashes_injury_ca", "crashes_tow_ca", "crashes_total_ca",
	}
)

func saferCounterFields() []Field {
	var out []Field
	for _, name := range append(append([]string{}, usCounters...), caCounters...) {
		if strings.Contains(name, "_pct") || strings.Contains(name, "_avg") {
			out = append(out, FloatField(name))
			continue
		}
		out = append(out, IntegerField(name))
	}
	return out
}

func fieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

var saferIdentity = []Field{
	DateField("page_date"),
	Text("carrier_operation", 128),
	Text("status", 16),
	Text("entity_type", 32),
	Text("legal_name", 128),
	Text("dba_name", 128),
	Text("address", 256),
	Text("mailing_address", 256),
	Text("telephone", 16),
	IntegerField("nbr_power_unit"),
	Text("mc_number", 32),
	IntegerField("driver_total"),
	DateField("mcs150_date"),
	IntegerField("mcs150_mileage"),
	Text("mcs150_mileage_year", 4),
	DateField("oos_date"),
	Text("state_id", 64),
	Text("duns_number", 64),
	DateField("rating_date"),
	Text("rating", 32),
	DateField("review_date"),
	Text("rating_type", 32),
	ListField("operation_classification"),
	ListField("carrier_operation_list"),
	ListField("cargo_carried"),
}

// Safer is the company snapshot. Page metadata (page_date, the free text
// carrier_operation, status, entity_type) and the mailing address churn
// without the carrier changing, so they are not compared.
var Safer = Schema{
	Name:      ReportSafer,
	Table:     ReportSafer,
	Versioned: true,
	Fields:    append(append([]Field{}, saferIdentity...), saferCounterFields()...),
	Equivalence: Equivalence{
		Comparisons: concat(
			Compare(Exact, NullTolerant, "legal_name", "dba_name", "address"),
			Compare(Digits, NullStrict, "telephone"),
			Compare(Exact, NullStrict,
				"nbr_power_unit", "mc_number", "driver_total",
				"mcs150_date", "mcs150_mileage", "mcs150_mileage_year",
				"oos_date", "state_id", "duns_number",
				"rating_date", "rating", "review_date", "rating_type",
				"operation_classification", "carrier_operation_list", "cargo_carried",
			),
			Compare(Exact, NullStrict, usCounters...),
			Compare(Exact, NullStrict, caCounters...),
		),
	},
	Deprecated: []string{"mcs150_mileage_and_year"},
}

var licenseFields = []Field{
	Text("common_authority_status", 16),
	Text("contract_authority_status", 16),
	Text("broker_authority_status", 16),
	BoolField("common_application_pending"),
	BoolField("contract_application_pending"),
	BoolField("broker_application_pending"),
	BoolField("ins_property"),
	BoolField("ins_passenger"),
	BoolField("ins_household_goods"),
	BoolField("ins_private"),
	BoolField("ins_enterprise"),
	MoneyField("bipd_required"),
	MoneyField("bipd_on_file"),
	BoolField("cargo_required"),
	BoolField("cargo_on_file"),
	BoolField("bond_required"),
	BoolField("bond_on_file"),
}

// License is the operating authority snapshot.
var License = Schema{
	Name:      ReportLicense,
	Table:     ReportLicense,
	Versioned: true,
	Fields:    licenseFields,
	Equivalence: Equivalence{
		Comparisons: Compare(Exact, NullTolerant, fieldNames(licenseFields)...),
	},
}

var InsuranceHistory = Schema{
	Name:       ReportInsuranceHistory,
	Table:      ReportInsuranceHistory,
	NaturalKey: []string{"policy_name", "date_to"},
	Fields: []Field{
		Text("form_name", 8),
		Text("insurance_type", 128),
		Text("carrier", 128),
		Text("policy_name", 128),
		MoneyField("coverage_from"),
		MoneyField("coverage_to"),
		DateField("date_from"),
		DateField("date_to"),
		Text("status", 128),
	},
}

var ActiveInsurance = Schema{
	Name:       ReportActiveInsurance,
	Table:      ReportActiveInsurance,
	NaturalKey: []string{"form_name", "insurance_type", "policy_name", "effective_date"},
	Fields: []Field{
		Text("form_name", 8),
		Text("insurance_type", 128),
		Text("carrier", 128),
		Text("policy_name", 128),
		DateField("posted_date"),
		MoneyField("coverage_from"),
		MoneyField("coverage_to"),
		DateField("effective_date"),
		DateField("cancellation_date"),
	},
}

var RejectedInsurance = Schema{
	Name:       ReportRejectedInsurance,
	Table:      ReportRejectedInsurance,
	NaturalKey: []string{"policy_name", "rejected_date"},
	Fields: []Field{
		Text("form_name", 8),
		Text("insurance_type", 128),
		Text("carrier", 128),
		Text("policy_name", 128),
		MoneyField("coverage_from"),
		MoneyField("coverage_to"),
		DateField("received_date"),
		DateField("rejected_date"),
	},
}

var AuthorityHistory = Schema{
	Name:       ReportAuthorityHistory,
	Table:      ReportAuthorityHistory,
	NaturalKey: []string{"action", "action_date"},
	Fields: []Field{
		Text("auth_type", 128),
		Text("action", 128),
		DateField("action_date"),
		Text("disposition", 128),
		DateField("disposition_date"),
	},
}

var PendingApplication = Schema{
	Name:       ReportPendingApplication,
	Table:      ReportPendingApplication,
	NaturalKey: []string{"insurance", "file_date"},
	Fields: []Field{
		Text("auth_type", 128),
		DateField("file_date"),
		Text("insurance", 128),
		Text("boc_3", 128),
	},
}

var Revocation = Schema{
	Name:       ReportRevocation,
	Table:      ReportRevocation,
	NaturalKey: []string{"auth_type", "effective_date"},
	Fields: []Field{
		Text("auth_type", 128),
		DateField("initial_date"),
		DateField("effective_date"),
		Text("reason", 256),
	},
}

// Reports lists every report type in processing order. Safer always comes
// first, the other reports are only collected for carriers with a safer record.
var Reports = []Schema{
	Safer,
	License,
	InsuranceHistory,
	ActiveInsurance,
	RejectedInsurance,
	AuthorityHistory,
	PendingApplication,
	Revocation,
}

func Lookup(name string) (Schema, bool) {
	for _, s := range Reports {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

func concat(groups ...[]Comparison) []Comparison {
	var out []Comparison
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
