// Command validate ingests a directory of daily report files once and checks
// the integrity of the result: derived metrics, canonical region names,
// country aggregation, the date index, top-N ranking, and rolling windows.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data/daily_reports \
//	  -aliases config/aliases.yaml \
//	  -window 7
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/couchcryptid/covid-report-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/covid-report-etl/internal/config"
	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/samber/lo"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory containing MM-DD-YYYY.csv daily reports")
	aliases := flag.String("aliases", "", "optional YAML region alias overlay")
	window := flag.Int("window", domain.DefaultWindow, "rolling window in days")
	top := flag.Int("top", 10, "number of regions to rank")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *aliases, *window, *top); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, aliasesPath string, window, top int) int {
	fmt.Println("=== Daily Report Integrity Validation ===")
	fmt.Println()

	overlay, err := config.LoadAliases(aliasesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	canon, err := domain.NewCanonicalizer(overlay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: region aliases: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snapshots, skipped, err := csvfile.NewSource(dataDir, logger).LoadSnapshots(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load snapshots: %v\n", err)
		return 1
	}
	res, err := domain.Build(snapshots, canon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateDerived(res),
		validateCanonical(res, canon),
		validateAggregation(res),
		validateDateIndex(res.Dates),
		validateTopN(res.Countries, top),
		validateRolling(res.Countries, window),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d loaded, %d skipped. Rows: %d skipped, %d observations, %d country rows, %d dates\n",
		len(snapshots), len(skipped), res.RowsSkipped, res.Observations.Len(), res.Countries.Len(), res.Dates.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateDerived(res *domain.IngestionResult) *phase {
	p := &phase{name: "Derived metrics"}
	for _, t := range []*domain.Table{res.Observations, res.Countries} {
		for _, o := range t.Rows() {
			if o.Closed != o.Recovered+o.Deaths {
				p.errorf("%s %s %s: closed %d != recovered %d + deaths %d",
					t.Kind(), o.Region, o.DateKey, o.Closed, o.Recovered, o.Deaths)
			}
			if o.Active != o.Confirmed-o.Closed {
				p.errorf("%s %s %s: active %d != confirmed %d - closed %d",
					t.Kind(), o.Region, o.DateKey, o.Active, o.Confirmed, o.Closed)
			}
		}
	}
	return p
}

func validateCanonical(res *domain.IngestionResult, canon *domain.Canonicalizer) *phase {
	p := &phase{name: "Canonical region names"}
	aliases := canon.Aliases()
	for _, region := range res.Observations.Regions() {
		if _, ok := aliases[region]; ok {
			p.errorf("alias %q survived canonicalization", region)
		}
		if got := canon.Canonicalize(region); got != region {
			p.errorf("canonicalize(%q) = %q, want idempotent", region, got)
		}
	}
	if diff := lo.Without(res.Countries.Regions(), res.Observations.Regions()...); len(diff) > 0 {
		p.errorf("country regions without observations: %v", diff)
	}
	return p
}

type regionDate struct {
	region  string
	dateKey string
}

func validateAggregation(res *domain.IngestionResult) *phase {
	p := &phase{name: "Country aggregation"}

	sums := make(map[regionDate]domain.Observation)
	for _, o := range res.Observations.Rows() {
		k := regionDate{region: o.Region, dateKey: o.DateKey}
		s := sums[k]
		s.Confirmed += o.Confirmed
		s.Recovered += o.Recovered
		s.Deaths += o.Deaths
		sums[k] = s
	}

	countries := res.Countries.Rows()
	if len(countries) != len(sums) {
		p.errorf("country rows: got %d, want %d distinct region/date pairs", len(countries), len(sums))
	}
	for _, c := range countries {
		if c.Subregion != "" {
			p.errorf("%s %s: country row has subregion %q", c.Region, c.DateKey, c.Subregion)
		}
		s, ok := sums[regionDate{region: c.Region, dateKey: c.DateKey}]
		if !ok {
			p.errorf("%s %s: no observations behind country row", c.Region, c.DateKey)
			continue
		}
		if c.Confirmed != s.Confirmed || c.Recovered != s.Recovered || c.Deaths != s.Deaths {
			p.errorf("%s %s: got %d/%d/%d, want %d/%d/%d", c.Region, c.DateKey,
				c.Confirmed, c.Recovered, c.Deaths, s.Confirmed, s.Recovered, s.Deaths)
		}
	}

	sorted := slices.IsSortedFunc(countries, func(a, b domain.Observation) int {
		if a.Region != b.Region {
			if a.Region < b.Region {
				return -1
			}
			return 1
		}
		return a.Date.Compare(b.Date)
	})
	if !sorted {
		p.errorf("country rows are not ordered by region then date")
	}
	return p
}

func validateDateIndex(dates *domain.DateIndex) *phase {
	p := &phase{name: "Date index round trip"}
	if dates.Len() == 0 {
		p.errorf("empty date index")
		return p
	}

	for i := range dates.Len() {
		key, err := dates.Key(i)
		if err != nil {
			p.errorf("key(%d): %v", i, err)
			continue
		}
		got, err := dates.Resolve(key)
		if err != nil || got != i {
			p.errorf("resolve(%q) = %d, %v; want %d", key, got, err, i)
		}
		if i == 0 {
			continue
		}
		prev, _ := dates.Date(i - 1)
		cur, _ := dates.Date(i)
		if !cur.After(prev) {
			p.errorf("dates not strictly increasing at ordinal %d", i)
		}
	}

	keys := dates.Keys()
	start, end, err := dates.RangeToSlice(keys[0], keys[len(keys)-1])
	if err != nil || start != 0 || end != dates.Last() {
		p.errorf("full range = [%d, %d], %v; want [0, %d]", start, end, err, dates.Last())
	}
	return p
}

func validateTopN(countries *domain.Table, n int) *phase {
	p := &phase{name: "Top-N ranking"}
	for _, v := range domain.Variables {
		first, err := domain.TopN(countries, n, v)
		if err != nil {
			p.errorf("top %d by %s: %v", n, v, err)
			continue
		}
		again, _ := domain.TopN(countries, n, v)
		if !slices.Equal(first, again) {
			p.errorf("top %d by %s not stable: %v then %v", n, v, first, again)
		}
		if want := min(n, len(countries.Regions())); len(first) != want {
			p.errorf("top %d by %s: got %d regions, want %d", n, v, len(first), want)
		}
		if len(lo.Uniq(first)) != len(first) {
			p.errorf("top %d by %s repeats a region: %v", n, v, first)
		}
		all, _ := domain.TopN(countries, len(countries.Regions()), v)
		if !slices.Equal(first, all[:len(first)]) {
			p.errorf("top %d by %s is not a prefix of the full ranking", n, v)
		}
	}
	return p
}

func validateRolling(countries *domain.Table, window int) *phase {
	p := &phase{name: fmt.Sprintf("Rolling window (%d days)", window)}
	dates := countries.Dates()
	if dates.Len() == 0 {
		return p
	}

	for _, region := range countries.Regions() {
		points, err := domain.GetRolling(countries, region, domain.Confirmed, 0, dates.Last(),
			domain.RollingOptions{Window: window})
		if err != nil {
			p.errorf("%s: %v", region, err)
			continue
		}
		ordinals := make([]int, len(points))
		for i, pt := range points {
			ordinals[i], _ = dates.Resolve(pt.DateKey)
		}
		for i, pt := range points {
			wantNew := int64(0)
			if i > 0 {
				wantNew = pt.Value - points[i-1].Value
			}
			if pt.New != wantNew {
				p.errorf("%s %s: new %d, want %d", region, pt.DateKey, pt.New, wantNew)
			}
			var wantWindowed int64
			for j := i; j >= 0 && ordinals[j] > ordinals[i]-window; j-- {
				wantWindowed += points[j].New
			}
			if pt.Windowed != wantWindowed {
				p.errorf("%s %s: windowed %d, want %d", region, pt.DateKey, pt.Windowed, wantWindowed)
			}
		}
	}
	return p
}
