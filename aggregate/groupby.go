package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
)

// GroupBy groups records by a set of fields and runs aggregators per group.
type GroupBy struct {
	groupFields []string
	outputs     []string
	aggregators map[string]Aggregator
}

// NewGroupBy creates a grouping on the given fields.
func NewGroupBy(groupFields ...string) *GroupBy {
	return &GroupBy{
		groupFields: groupFields,
		aggregators: make(map[string]Aggregator),
	}
}

func (g *GroupBy) add(outputField string, agg Aggregator) *GroupBy {
	if _, exists := g.aggregators[outputField]; !exists {
		g.outputs = append(g.outputs, outputField)
	}
	g.aggregators[outputField] = agg
	return g
}

// Count adds a count aggregator for the specified output field
func (g *GroupBy) Count(outputField string) *GroupBy {
	return g.add(outputField, &CountAggregator{})
}

// Sum adds a sum aggregator for the specified field
func (g *GroupBy) Sum(field, outputField string) *GroupBy {
	return g.add(outputField, &SumAggregator{Field: field})
}

// Avg adds an average aggregator rounded to places fractional digits
func (g *GroupBy) Avg(field, outputField string, places int32) *GroupBy {
	return g.add(outputField, &AvgAggregator{Field: field, Places: places})
}

// Min adds a minimum aggregator for the specified field
func (g *GroupBy) Min(field, outputField string) *GroupBy {
	return g.add(outputField, &MinAggregator{Field: field})
}

// Max adds a maximum aggregator for the specified field
func (g *GroupBy) Max(field, outputField string) *GroupBy {
	return g.add(outputField, &MaxAggregator{Field: field})
}

type group struct {
	values      []interface{}
	aggregators map[string]Aggregator
}

// Process aggregates records and returns one result per group, ordered by group key.
// Each result carries the group fields plus one column per output field.
func (g *GroupBy) Process(ctx context.Context, records []core.Record) ([]core.Record, error) {
	groups := make(map[string]*group)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, values := g.groupKey(record)

		grp, exists := groups[key]
		if !exists {
			grp = &group{values: values, aggregators: make(map[string]Aggregator, len(g.aggregators))}
			for outputField, aggregator := range g.aggregators {
				clone, err := cloneAggregator(aggregator)
				if err != nil {
					return nil, err
				}
				grp.aggregators[outputField] = clone
			}
			groups[key] = grp
		}

		for outputField, aggregator := range grp.aggregators {
			if err := aggregator.Add(ctx, record); err != nil {
				return nil, fmt.Errorf("aggregation error for field %s: %w", outputField, err)
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]core.Record, 0, len(keys))
	for _, key := range keys {
		grp := groups[key]
		result := make(core.Record, len(g.groupFields)+len(g.outputs))
		for i, field := range g.groupFields {
			result[field] = grp.values[i]
		}
		for _, outputField := range g.outputs {
			value, err := grp.aggregators[outputField].Result()
			if err != nil {
				return nil, fmt.Errorf("failed to get result for field %s: %w", outputField, err)
			}
			if len(value) == 1 {
				for _, v := range value {
					result[outputField] = v
				}
				continue
			}
			for k, v := range value {
				result[outputField+"_"+k] = v
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func (g *GroupBy) groupKey(record core.Record) (string, []interface{}) {
	parts := make([]string, len(g.groupFields))
	values := make([]interface{}, len(g.groupFields))
	for i, field := range g.groupFields {
		value := record[field]
		values[i] = value
		if value != nil {
			parts[i] = fmt.Sprintf("%v", value)
		}
	}
	return strings.Join(parts, "\x1f"), values
}

// Department summarizes the clean records of one department.
type Department struct {
	Department     string `json:"department"`
	Headcount      int    `json:"headcount"`
	AvgSalary      string `json:"avg_salary,omitempty"`
	MinSalary      string `json:"min_salary,omitempty"`
	MaxSalary      string `json:"max_salary,omitempty"`
	AvgTenureYears string `json:"avg_tenure_years,omitempty"`
}

// Departments groups clean records by department. Records without a department are
// summarized under the empty name.
func Departments(ctx context.Context, records []core.Record) ([]Department, error) {
	rows, err := NewGroupBy(employee.ColDepartment).
		Count("headcount").
		Avg(employee.ColSalary, "avg_salary", 2).
		Min(employee.ColSalary, "min_salary").
		Max(employee.ColSalary, "max_salary").
		Avg(employee.ColTenureYears, "avg_tenure_years", 1).
		Process(ctx, records)
	if err != nil {
		return nil, err
	}

	out := make([]Department, 0, len(rows))
	for _, row := range rows {
		name, _ := row[employee.ColDepartment].(string)
		headcount, _ := row["headcount"].(int)
		out = append(out, Department{
			Department:     name,
			Headcount:      headcount,
			AvgSalary:      fixed(row["avg_salary"], 2),
			MinSalary:      fixed(row["min_salary"], 2),
			MaxSalary:      fixed(row["max_salary"], 2),
			AvgTenureYears: fixed(row["avg_tenure_years"], 1),
		})
	}
	return out, nil
}

func fixed(value interface{}, places int32) string {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return ""
	}
	return d.StringFixed(places)
}
