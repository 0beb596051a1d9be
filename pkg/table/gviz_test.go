package table

import "testing"

const sampleGviz = `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","reqId":"0","status":"ok","sig":"1","table":{
"cols":[{"id":"A","label":"Nom","type":"string"},{"id":"B","label":"Date","type":"date"},{"id":"C","label":"Accueil","type":"number"}],
"rows":[
{"c":[{"v":"Mme Dupont"},{"v":"Date(2025,6,9)","f":"09/07/2025"},{"v":9.2,"f":"9,2"}]},
{"c":[{"v":"M. Martin"},null,{"v":8.0}]},
{"c":[null,null,null]}
]}});`

func TestParseGviz(t *testing.T) {
	tbl, err := ParseGviz([]byte(sampleGviz))
	if err != nil {
		t.Fatalf("ParseGviz: %v", err)
	}

	wantCols := []string{"Nom", "Date", "Accueil"}
	if len(tbl.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", tbl.Columns, wantCols)
	}
	for i, want := range wantCols {
		if tbl.Columns[i] != want {
			t.Errorf("column %d = %q, want %q", i, tbl.Columns[i], want)
		}
	}

	if len(tbl.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(tbl.Rows))
	}

	if got := tbl.Cell(0, 0).Display(); got != "Mme Dupont" {
		t.Errorf("cell (0,0) = %q, want Mme Dupont", got)
	}
	// Date cells keep both the literal and the formatted rendering.
	if got := tbl.Cell(0, 1); got.Text != "Date(2025,6,9)" || got.Formatted != "09/07/2025" {
		t.Errorf("cell (0,1) = %+v", got)
	}
	if got := tbl.Cell(0, 2); got.Kind != CellNumber || got.Display() != "9,2" {
		t.Errorf("cell (0,2) = %+v", got)
	}
	// Nulls resolve to Empty, and a row of nulls is blank.
	if got := tbl.Cell(1, 1); !got.IsEmpty() {
		t.Errorf("cell (1,1) = %+v, want empty", got)
	}
	if !tbl.RowIsBlank(2) {
		t.Error("row 2 should be blank")
	}
}

func TestParseGvizError(t *testing.T) {
	payload := `google.visualization.Query.setResponse({"status":"error","errors":[{"reason":"access_denied","detailed_message":"sheet is private"}]});`
	if _, err := ParseGviz([]byte(payload)); err == nil {
		t.Fatal("expected error for error-status response")
	}
}

func TestParseGvizNoEnvelope(t *testing.T) {
	if _, err := ParseGviz([]byte("<html>login page</html>")); err == nil {
		t.Fatal("expected error for non-gviz content")
	}
}
