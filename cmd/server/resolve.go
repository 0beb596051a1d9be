package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/guestpulse/matrice-engine/pkg/resort"
	"github.com/guestpulse/matrice-engine/pkg/table"
)

// cmdResolve reconciles a single respondent from the command line, either
// against the live sheets of a configured resort or against offline xlsx
// snapshots exported by hotel staff.
func cmdResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	resortsFile := fs.String("resorts", "resorts.yaml", "path to the resorts file")
	resortID := fs.String("resort", "", "resort ID to query (live mode)")
	email := fs.String("email", "", "respondent email")
	name := fs.String("name", "", "respondent name")
	date := fs.String("date", "", "respondent date, any supported format")
	row := fs.Int("row", 0, "explicit 1-based matrice row override")
	respondentsXLSX := fs.String("respondents-xlsx", "", "offline respondent workbook (replaces live fetch)")
	matriceXLSX := fs.String("matrice-xlsx", "", "offline matrice workbook (replaces live fetch)")
	respondentSheet := fs.String("respondent-sheet", "Feuille 1", "sheet name in the respondent workbook")
	matriceSheet := fs.String("matrice-sheet", "matrice", "sheet name in the matrice workbook")
	fs.Parse(args)

	id := matrice.Identifier{Email: *email, Name: *name, Date: *date, ExplicitRow: *row}
	if id.Email == "" && id.Name == "" && id.Date == "" && id.ExplicitRow == 0 {
		fmt.Fprintln(os.Stderr, "Erreur: au moins un identifiant requis (--email, --name, --date ou --row)")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var respondents, mat *table.Table
	var opts []matrice.Option
	var err error

	switch {
	case *matriceXLSX != "":
		mat, err = table.LoadXLSX(*matriceXLSX, *matriceSheet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur lecture matrice: %v\n", err)
			os.Exit(1)
		}
		if *respondentsXLSX != "" {
			respondents, err = table.LoadXLSX(*respondentsXLSX, *respondentSheet)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Erreur lecture Feuille 1: %v\n", err)
				os.Exit(1)
			}
		}

	case *resortID != "":
		reg := resort.NewRegistry(*resortsFile)
		if err := reg.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Erreur chargement resorts: %v\n", err)
			os.Exit(1)
		}
		res, ok := reg.Get(*resortID)
		if !ok {
			fmt.Fprintf(os.Stderr, "Erreur: resort inconnu %q\n", *resortID)
			os.Exit(1)
		}
		if res.FeedbackHeader != "" {
			opts = append(opts, matrice.WithFeedbackHeader(res.FeedbackHeader))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		fetcher := table.NewGvizFetcher()
		respondents, err = fetcher.Fetch(ctx, res.RespondentSource())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur fetch Feuille 1: %v\n", err)
			os.Exit(1)
		}
		mat, err = fetcher.Fetch(ctx, res.MatriceSource())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur fetch matrice: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "Erreur: --resort ou --matrice-xlsx requis")
		os.Exit(1)
	}

	result, found := matrice.NewMatcher(logger, opts...).Match(id, respondents, mat)
	if !found {
		fmt.Fprintln(os.Stderr, "Aucune correspondance")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}
