// ABOUTME: Account-age estimation from numeric platform user ids
// ABOUTME: Piecewise-linear interpolation over known (id, issue date) anchors

package idage

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Anchor pairs a user id with the approximate date ids around it were issued.
type Anchor struct {
	ID   int64
	Date time.Time
}

// defaultAnchors covers observed id issuance from the platform's launch
// through mid-2025. Ids beyond the last anchor clamp to its date; extend the
// table via an anchors file instead of extrapolating.
var defaultAnchors = []Anchor{
	{ID: 1, Date: time.Date(2013, time.August, 14, 0, 0, 0, 0, time.UTC)},
	{ID: 1_000_000_000, Date: time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 2_000_000_000, Date: time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 3_000_000_000, Date: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 4_000_000_000, Date: time.Date(2022, time.July, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 5_000_000_000, Date: time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 6_000_000_000, Date: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 7_000_000_000, Date: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)},
}

// Estimator estimates account creation dates from user ids.
type Estimator struct {
	anchors []Anchor
}

// NewEstimator returns an estimator backed by the built-in anchor table.
func NewEstimator() *Estimator {
	return &Estimator{anchors: defaultAnchors}
}

// NewEstimatorWithAnchors returns an estimator backed by a custom table.
// The table needs at least two anchors with strictly increasing ids and
// non-decreasing dates.
func NewEstimatorWithAnchors(anchors []Anchor) (*Estimator, error) {
	if len(anchors) < 2 {
		return nil, fmt.Errorf("anchor table needs at least 2 entries, got %d", len(anchors))
	}
	for i := 1; i < len(anchors); i++ {
		if anchors[i].ID <= anchors[i-1].ID {
			return nil, fmt.Errorf("anchor ids must be strictly increasing: %d follows %d", anchors[i].ID, anchors[i-1].ID)
		}
		if anchors[i].Date.Before(anchors[i-1].Date) {
			return nil, fmt.Errorf("anchor dates must not decrease: %s follows %s",
				anchors[i].Date.Format(time.RFC3339), anchors[i-1].Date.Format(time.RFC3339))
		}
	}
	return &Estimator{anchors: anchors}, nil
}

// NewEstimatorFromFile loads a TOML anchor table and builds an estimator
// from it. The file holds [[anchor]] entries with id and RFC3339 date:
//
//	[[anchor]]
//	id = 1
//	date = 2013-08-14T00:00:00Z
func NewEstimatorFromFile(path string) (*Estimator, error) {
	anchors, err := LoadAnchors(path)
	if err != nil {
		return nil, err
	}
	return NewEstimatorWithAnchors(anchors)
}

type anchorsFile struct {
	Anchors []anchorEntry `toml:"anchor"`
}

type anchorEntry struct {
	ID   int64     `toml:"id"`
	Date time.Time `toml:"date"`
}

// LoadAnchors reads an anchor table from a TOML file.
func LoadAnchors(path string) ([]Anchor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading anchors file: %w", err)
	}

	var file anchorsFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, fmt.Errorf("parsing anchors file: %w", err)
	}

	anchors := make([]Anchor, len(file.Anchors))
	for i, entry := range file.Anchors {
		anchors[i] = Anchor{ID: entry.ID, Date: entry.Date.UTC()}
	}
	return anchors, nil
}

// Creation estimates when the account owning the given id was created.
// Ids at or below the first anchor return the first anchor's date; ids beyond
// the last anchor return the last anchor's date. In between, the estimate is
// linear between the bracketing anchors.
func (e *Estimator) Creation(id int64) time.Time {
	first := e.anchors[0]
	if id <= first.ID {
		return first.Date
	}

	for i := 0; i < len(e.anchors)-1; i++ {
		left, right := e.anchors[i], e.anchors[i+1]
		if id > right.ID {
			continue
		}
		ratio := float64(id-left.ID) / float64(right.ID-left.ID)
		leftTS := float64(left.Date.Unix())
		rightTS := float64(right.Date.Unix())
		return time.Unix(int64(leftTS+ratio*(rightTS-leftTS)), 0).UTC()
	}

	return e.anchors[len(e.anchors)-1].Date
}

// AgeDays estimates the account's age in whole days at the given time.
// Never negative, even for ids issued "after" now per the table.
func (e *Estimator) AgeDays(id int64, now time.Time) int {
	days := int(now.Sub(e.Creation(id)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
