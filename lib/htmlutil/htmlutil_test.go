package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<table><tr>
			<th>Physical&nbsp;Address:</th>
			<td>123 MAIN ST<br>SPRINGFIELD, IL &nbsp; 62701</td>
		</tr></table>`))
	require.NoError(t, err)

	require.Equal(t, "Physical Address:", Text(doc.Find("th")))
	require.Equal(t, "123 MAIN ST SPRINGFIELD, IL 62701", Text(doc.Find("td")))
	require.Equal(t, []string{"Physical Address:", "123 MAIN ST SPRINGFIELD, IL 62701"}, Cells(doc.Find("tr")))
}

func TestFormValues(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<form action="pkg_carrquery.prc_getdetail">
			<input type="hidden" name="pv_apcant_id" value="123">
			<input type="hidden" name="pv_vpath" value="LIVIEW">
			<input type="submit" value="HTML">
		</form>`))
	require.NoError(t, err)

	require.Equal(t, map[string]string{
		"pv_apcant_id": "123",
		"pv_vpath":     "LIVIEW",
	}, FormValues(doc.Find("form")))
}
