package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/export"
	"github.com/JonMunkholm/patients/internal/ingest"
)

// maxRejectionsShown bounds the rejected rows printed after a load. The
// full list is in the log.
const maxRejectionsShown = 10

// printPatient writes every field of p, one per line.
func printPatient(w io.Writer, p core.Patient) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	values := export.NewRecord(p).Strings()
	for i, name := range export.Header {
		if name == "_id" {
			continue
		}
		fmt.Fprintf(tw, "  %s:\t%s\n", name, values[i])
	}
	tw.Flush()
}

// printMatches writes a short line pair per patient.
func printMatches(w io.Writer, term string, ps []core.Patient) {
	if len(ps) == 0 {
		fmt.Fprintf(w, "No patient matches %q.\n", term)
		return
	}
	fmt.Fprintf(w, "%d patient(s) match %q:\n", len(ps), term)
	for _, p := range ps {
		fmt.Fprintf(w, "  %s | %s | %d | %s\n", p.PatientID, p.Name, p.Age, p.MedicalCondition)
		fmt.Fprintf(w, "    admitted %s | %s\n", p.DateOfAdmission.Format(core.DateLayout), p.Hospital)
	}
}

func printLoad(w io.Writer, report ingest.Report, s core.LoadSummary) {
	fmt.Fprintf(w, "Load %s finished in %s\n", s.LoadID, s.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  rows read:\t%d\n", s.Rows)
	fmt.Fprintf(tw, "  valid:\t%d\n", s.Valid)
	fmt.Fprintf(tw, "  rejected:\t%d\n", len(s.Rejected))
	fmt.Fprintf(tw, "  batches:\t%d\n", s.Batches)
	fmt.Fprintf(tw, "  stored:\t%d\n", s.Count)
	fmt.Fprintf(tw, "  empty cells:\t%d\n", emptyCells(report))
	fmt.Fprintf(tw, "  duplicate ids in file:\t%d\n", len(report.DuplicateIDs))
	tw.Flush()

	for i, r := range s.Rejected {
		if i == maxRejectionsShown {
			fmt.Fprintf(w, "  ... %d more rejected rows, see the log\n", len(s.Rejected)-i)
			break
		}
		fmt.Fprintf(w, "  line %d (%s): %s\n", r.Line, r.PatientID, r.Reason)
	}
}

func emptyCells(r ingest.Report) int {
	n := 0
	for _, c := range r.EmptyCells {
		n += c
	}
	return n
}
