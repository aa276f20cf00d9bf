package ingest

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestCheck_Clean(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(sampleCSV), 0)
	if err != nil {
		t.Fatalf("ReadCSV() unexpected error: %v", err)
	}

	rep := Check(table)
	if !rep.Clean() {
		t.Errorf("Check() = %+v, want clean", rep)
	}
	if rep.Rows != 2 || rep.Columns != 15 {
		t.Errorf("Rows, Columns = %d, %d, want 2, 15", rep.Rows, rep.Columns)
	}
}

func TestCheck_Issues(t *testing.T) {
	input := "patient_id,Notes," + header + `
p00001,,Bobby JacksOn,30,Male,B-,,2024-01-31,Matthew Smith,Sons and Miller,Blue Cross,1,328,Urgent,2024-02-02,Paracetamol,Normal
P00001,x,LesLie TErRy,62,Male,A+,Obesity,2019-08-20,Samantha Davies,Kim Inc,Medicare,2,265,Emergency,2019-08-26,,Inconclusive
P00002,x,Bad Row,200,Male,A+,Obesity,2019-08-20,Samantha Davies,Kim Inc,Medicare,3,265,Emergency,2019-08-26,Ibuprofen,Normal
`
	table, err := ReadCSV(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("ReadCSV() unexpected error: %v", err)
	}

	rep := Check(table)
	if rep.Clean() {
		t.Fatal("Check() reported clean table")
	}
	wantEmpty := map[string]int{"Notes": 1, "Medical Condition": 1, "Medication": 1}
	if !reflect.DeepEqual(rep.EmptyCells, wantEmpty) {
		t.Errorf("EmptyCells = %v, want %v", rep.EmptyCells, wantEmpty)
	}
	if !reflect.DeepEqual(rep.DuplicateIDs, []string{"P00001"}) {
		t.Errorf("DuplicateIDs = %v, want [P00001]", rep.DuplicateIDs)
	}
	if !reflect.DeepEqual(rep.ExtraColumns, []string{"Notes"}) {
		t.Errorf("ExtraColumns = %v, want [Notes]", rep.ExtraColumns)
	}
}

func TestReport_Log(t *testing.T) {
	tests := []struct {
		name string
		rep  Report
		want string
	}{
		{"clean", Report{Rows: 3, Columns: 15}, "level=INFO msg=\"data integrity check passed\""},
		{"issues", Report{Rows: 3, DuplicateIDs: []string{"P00001"}}, "duplicate_patient_ids=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.rep.Log(slog.New(slog.NewTextHandler(&buf, nil)))
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}
