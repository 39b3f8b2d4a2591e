package scenario

import "testing"

func TestParseGridGeometriesSortsByCellID(t *testing.T) {
	raw := []byte(`{"features":[
		{"properties":{"cell_id":2},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"properties":{"cell_id":0},"geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,2]]]}},
		{"properties":{"cell_id":1},"geometry":{"type":"Polygon","coordinates":[[[4,4],[5,4],[5,5],[4,4]]]}}
	]}`)
	got, err := ParseGridGeometries("mackerel", raw, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ScenarioID != "mackerel" {
		t.Fatalf("scenario = %q", got.ScenarioID)
	}
	if len(got.Geometries) != 3 {
		t.Fatalf("got %d cells", len(got.Geometries))
	}
	for i, cell := range got.Geometries {
		if cell.CellID != i {
			t.Fatalf("cells not sorted: index %d has id %d", i, cell.CellID)
		}
	}
	if got.Geometries[0].Geometry.Type != "Polygon" {
		t.Fatalf("geometry type = %q", got.Geometries[0].Geometry.Type)
	}
}

func TestParseGridGeometriesSkipsInvalidFeatures(t *testing.T) {
	raw := []byte(`{"features":[
		{"properties":{},"geometry":{"type":"Polygon","coordinates":[]}},
		{"properties":{"cell_id":"seven"},"geometry":{"type":"Polygon","coordinates":[]}},
		{"properties":{"cell_id":3}},
		{"properties":{"cell_id":4},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`)
	got, err := ParseGridGeometries("mackerel", raw, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Geometries) != 1 || got.Geometries[0].CellID != 4 {
		t.Fatalf("geometries = %+v, want only cell 4", got.Geometries)
	}
}

func TestParseGridGeometriesErrors(t *testing.T) {
	if _, err := ParseGridGeometries("s", []byte(`not json`), nil); err == nil {
		t.Fatal("expected error for malformed json")
	}
	if _, err := ParseGridGeometries("s", []byte(`{}`), nil); err == nil {
		t.Fatal("expected error when features are missing")
	}
	if _, err := ParseGridGeometries("s", []byte(`{"features":[{"properties":{}}]}`), nil); err == nil {
		t.Fatal("expected error when no features survive")
	}
}
