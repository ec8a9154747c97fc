// Command genmock writes a synthetic directory of daily report files that
// exercises every ingestion path: the early slash-separated header schema, the
// later underscore schema with a byte order mark and county rows, region
// aliases that change between layouts, a malformed row, and a file whose name
// is not a report date. It reads the result back through the real ingestion
// code and prints a summary.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/daily_reports \
//	  -days 60 \
//	  -switch-day 40
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-report-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/covid-report-etl/internal/config"
	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/jszwec/csvutil"
	"gopkg.in/yaml.v3"
)

var startDate = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)

// earlyRow is the header layout used by the first reports.
type earlyRow struct {
	ProvinceState string `csv:"Province/State"`
	CountryRegion string `csv:"Country/Region"`
	LastUpdate    string `csv:"Last Update"`
	Confirmed     string `csv:"Confirmed"`
	Deaths        string `csv:"Deaths"`
	Recovered     string `csv:"Recovered"`
}

// lateRow is the header layout used once county rows were introduced.
type lateRow struct {
	FIPS          string `csv:"FIPS"`
	Admin2        string `csv:"Admin2"`
	ProvinceState string `csv:"Province_State"`
	CountryRegion string `csv:"Country_Region"`
	LastUpdate    string `csv:"Last_Update"`
	Lat           string `csv:"Lat"`
	Long          string `csv:"Long_"`
	Confirmed     string `csv:"Confirmed"`
	Deaths        string `csv:"Deaths"`
	Recovered     string `csv:"Recovered"`
	Active        string `csv:"Active"`
	CombinedKey   string `csv:"Combined_Key"`
}

// leaf is the finest-grained series generated: a county, a province, or a
// whole country.
type leaf struct {
	early    string // country name in early reports
	late     string // country name in later reports
	province string
	county   string
	fips     string
	lat, lon float64
	rate     int64 // typical new cases per day once established
	firstDay int   // first day the leaf reports

	confirmed, recovered, deaths int64
}

func leaves() []*leaf {
	return []*leaf{
		{early: "Mainland China", late: "China", province: "Hubei", lat: 30.97, lon: 112.27, rate: 900},
		{early: "Mainland China", late: "China", province: "Guangdong", lat: 23.34, lon: 113.42, rate: 40},
		{early: "South Korea", late: "Korea, South", lat: 35.91, lon: 127.77, rate: 120, firstDay: 3},
		{early: "Iran (Islamic Republic of)", late: "Iran", lat: 32.43, lon: 53.69, rate: 200, firstDay: 20},
		{early: "Italy", late: "Italy", lat: 41.87, lon: 12.57, rate: 350, firstDay: 9},
		{early: "Viet Nam", late: "Vietnam", lat: 14.06, lon: 108.28, rate: 3, firstDay: 2},
		{early: "US", late: "US", province: "New York", county: "New York City", fips: "36061", lat: 40.77, lon: -73.97, rate: 500, firstDay: 35},
		{early: "US", late: "US", province: "New York", county: "Westchester", fips: "36119", lat: 41.16, lon: -73.76, rate: 90, firstDay: 36},
		{early: "US", late: "US", province: "Washington", county: "King", fips: "53033", lat: 47.49, lon: -121.83, rate: 60, firstDay: 30},
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for daily report files")
	days := flag.Int("days", 60, "number of daily reports to generate")
	switchDay := flag.Int("switch-day", 40, "first day written with the later header layout")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *days < 1 {
		return fmt.Errorf("-days must be at least 1")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	ls := leaves()
	malformedDay := *days / 2

	for day := range *days {
		date := startDate.AddDate(0, 0, day)
		advance(rng, ls, day)

		var (
			data []byte
			err  error
		)
		if day < *switchDay {
			data, err = csvutil.Marshal(earlyRows(ls, day, date, day == malformedDay))
		} else {
			data, err = csvutil.Marshal(lateRows(ls, day, date, day == malformedDay))
			data = append([]byte("\ufeff"), data...)
		}
		if err != nil {
			return fmt.Errorf("marshal day %d: %w", day, err)
		}

		path := filepath.Join(*out, date.Format(domain.SnapshotDateLayout)+".csv")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return err
		}
	}
	log.Printf("wrote %d daily reports to %s", *days, *out)

	if err := os.WriteFile(filepath.Join(*out, "latest.csv"), []byte("Country_Region,Confirmed\nUS,1\n"), 0o600); err != nil {
		return err
	}
	if err := writeAliases(filepath.Join(*out, "aliases.yaml")); err != nil {
		return err
	}

	return summarize(*out, filepath.Join(*out, "aliases.yaml"))
}

// advance moves every established leaf forward one day. Counts are cumulative
// and never decrease.
func advance(rng *rand.Rand, ls []*leaf, day int) {
	for _, l := range ls {
		if day < l.firstDay {
			continue
		}
		age := int64(day - l.firstDay + 1)
		newCases := rng.Int64N(l.rate+1) * min(age, 10) / 10
		l.confirmed += newCases
		l.deaths += newCases/40 + rng.Int64N(2)
		if age > 14 {
			l.recovered += newCases/2 + rng.Int64N(l.rate/4+1)
		}
	}
}

func earlyRows(ls []*leaf, day int, date time.Time, malformed bool) []earlyRow {
	// Counties did not exist yet; they are summed into their province.
	var rows []earlyRow
	byProvince := make(map[string]int)
	for _, l := range ls {
		if day < l.firstDay {
			continue
		}
		key := l.early + "|" + l.province
		if i, ok := byProvince[key]; ok {
			rows[i].Confirmed = addCount(rows[i].Confirmed, l.confirmed)
			rows[i].Deaths = addCount(rows[i].Deaths, l.deaths)
			rows[i].Recovered = addCount(rows[i].Recovered, l.recovered)
			continue
		}
		byProvince[key] = len(rows)
		rows = append(rows, earlyRow{
			ProvinceState: l.province,
			CountryRegion: l.early,
			LastUpdate:    date.Add(18 * time.Hour).Format("2006-01-02T15:04:05"),
			Confirmed:     strconv.FormatInt(l.confirmed, 10),
			Deaths:        strconv.FormatInt(l.deaths, 10),
			Recovered:     strconv.FormatInt(l.recovered, 10),
		})
	}
	if malformed {
		rows = append(rows, earlyRow{CountryRegion: "Cruise Ship", Confirmed: "pending"})
	}
	return rows
}

func lateRows(ls []*leaf, day int, date time.Time, malformed bool) []lateRow {
	var rows []lateRow
	for _, l := range ls {
		if day < l.firstDay {
			continue
		}
		rows = append(rows, lateRow{
			FIPS:          l.fips,
			Admin2:        l.county,
			ProvinceState: l.province,
			CountryRegion: l.late,
			LastUpdate:    date.Add(21 * time.Hour).Format(time.DateTime),
			Lat:           strconv.FormatFloat(l.lat, 'f', 2, 64),
			Long:          strconv.FormatFloat(l.lon, 'f', 2, 64),
			Confirmed:     strconv.FormatInt(l.confirmed, 10),
			Deaths:        strconv.FormatInt(l.deaths, 10),
			Recovered:     strconv.FormatInt(l.recovered, 10),
			Active:        strconv.FormatInt(l.confirmed-l.recovered-l.deaths, 10),
			CombinedKey:   combinedKey(l),
		})
	}
	if malformed {
		rows = append(rows, lateRow{CountryRegion: "", Confirmed: "12"})
	}
	return rows
}

func addCount(s string, n int64) string {
	cur, _ := strconv.ParseInt(s, 10, 64)
	return strconv.FormatInt(cur+n, 10)
}

func combinedKey(l *leaf) string {
	key := l.late
	if l.province != "" {
		key = l.province + ", " + key
	}
	if l.county != "" {
		key = l.county + ", " + key
	}
	return key
}

func writeAliases(path string) error {
	data, err := yaml.Marshal(map[string]map[string]string{
		"aliases": {"Viet Nam": "Vietnam"},
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// summarize reads the generated directory back through the ingestion code.
func summarize(dir, aliasesPath string) error {
	overlay, err := config.LoadAliases(aliasesPath)
	if err != nil {
		return err
	}
	canon, err := domain.NewCanonicalizer(overlay)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snapshots, skipped, err := csvfile.NewSource(dir, logger).LoadSnapshots(context.Background())
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	res, err := domain.Build(snapshots, canon)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	log.Printf("files: %d loaded, %d skipped", len(snapshots), len(skipped))
	log.Printf("rows: %d skipped, %d observations, %d country rows",
		res.RowsSkipped, res.Observations.Len(), res.Countries.Len())
	log.Printf("dates: %d, countries: %v", res.Dates.Len(), res.Countries.Regions())
	return nil
}
