package clean

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

// ErrEmptyTable is returned when HandleMissing is given no table
var ErrEmptyTable = errors.New("table has no rows")

const (
	DefaultThreshold = 20.0
	DefaultSentinel  = "Unknown"
)

// Options controls missing-value handling
type Options struct {
	// Threshold is the missing percentage above which a column is dropped
	Threshold float64
	// Sentinel fills missing categorical cells
	Sentinel string
}

// DefaultOptions returns a 20% threshold and the "Unknown" sentinel
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Sentinel: DefaultSentinel}
}

func (o Options) normalized() (Options, error) {
	if o.Threshold < 0 || o.Threshold > 100 {
		return o, fmt.Errorf("%w: threshold %.1f outside [0, 100]", util.ErrInvalidConfig, o.Threshold)
	}
	if o.Sentinel == "" {
		o.Sentinel = DefaultSentinel
	}
	return o, nil
}

// ColumnReport describes what happened to one column
type ColumnReport struct {
	Column  string
	Kind    table.Kind
	Percent float64
	Fill    string // value used for imputation; empty for dropped columns
}

// Result is the outcome of HandleMissing
type Result struct {
	Table   *table.Table
	Dropped []ColumnReport
	Filled  []ColumnReport
}

// HandleMissing drops columns whose missing percentage exceeds the
// threshold and imputes the rest: categorical gaps get the sentinel,
// numeric gaps the column median. Output columns are ordered categorical
// first, then numeric, each group keeping input order. The input table is
// not modified.
func HandleMissing(t *table.Table, opts Options) (*Result, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrEmptyTable
	}
	if t.Len() == 0 {
		// no ratios to compute; the header passes through
		out, err := t.Select(t.Columns()...)
		if err != nil {
			return nil, err
		}
		return &Result{Table: out}, nil
	}

	// Kinds are fixed before any filling happens
	cols := t.Columns()
	kinds := make(map[string]table.Kind, len(cols))
	var categorical, numeric []string
	for _, c := range cols {
		k := t.Kind(c)
		kinds[c] = k
		if k == table.KindNumeric {
			numeric = append(numeric, c)
		} else {
			categorical = append(categorical, c)
		}
	}

	ordered := append(categorical, numeric...)
	out, err := t.Select(ordered...)
	if err != nil {
		return nil, err
	}

	res := &Result{Table: out}
	rows := float64(t.Len())

	for _, c := range ordered {
		nulls := t.NullCount(c)
		pct := float64(nulls) / rows * 100

		drop := pct > opts.Threshold
		fill := opts.Sentinel
		if !drop && nulls > 0 && kinds[c] == table.KindNumeric {
			// an all-null column has no median to impute with
			m, ok := Median(t.Column(c))
			if ok {
				fill = strconv.FormatFloat(m, 'f', -1, 64)
			}
			drop = !ok
		}

		switch {
		case drop:
			out.DropColumns(c)
			res.Dropped = append(res.Dropped, ColumnReport{Column: c, Kind: kinds[c], Percent: pct})
			util.DebugLog("Dropped column %s (%.1f%% missing)", c, pct)

		case nulls > 0:
			fillValue := table.String(fill)
			column := t.Column(c)
			out.SetColumn(c, func(i int) table.Value {
				if column[i].IsNull() {
					return fillValue
				}
				return column[i]
			})
			res.Filled = append(res.Filled, ColumnReport{Column: c, Kind: kinds[c], Percent: pct, Fill: fill})
			util.DebugLog("Filled column %s (%.1f%% missing) with %q", c, pct, fill)
		}
	}

	return res, nil
}

// Median returns the median of the numeric cells, ignoring nulls. With an
// even count it is the mean of the two middle values.
func Median(values []table.Value) (float64, bool) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.Float(); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return 0, false
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid], true
	}
	return (nums[mid-1] + nums[mid]) / 2, true
}

// DropDuplicates keeps the first row for each key value. It reports how
// many rows were removed.
func DropDuplicates(t *table.Table, key string) (*table.Table, int, error) {
	out, err := t.DropDuplicates(key)
	if err != nil {
		return nil, 0, fmt.Errorf("dedupe on %s: %w", key, err)
	}
	return out, t.Len() - out.Len(), nil
}
