package models

import (
	"reflect"
	"strings"
)

// TabKind names one of the 14 assumption categories.
type TabKind string

// Tab kinds as submitted by the deal forms.
const (
	TabProperty       TabKind = "property"
	TabAcquisition    TabKind = "acquisition"
	TabFinancing      TabKind = "financing"
	TabDisposition    TabKind = "disposition"
	TabCapitalExpense TabKind = "capital-expense"
	TabInflation      TabKind = "inflation"
	TabPenetration    TabKind = "penetration"
	TabRevenue        TabKind = "revenue"
	TabDeptExpense    TabKind = "dept-expense"
	TabMgmtFee        TabKind = "mgmt-fee"
	TabUndist1        TabKind = "undist1"
	TabUndist2        TabKind = "undist2"
	TabNonOpExpense   TabKind = "nonop-expense"
	TabFFE            TabKind = "ffe"
)

// FieldKind is the storage class of a field, used by the numeric policy.
type FieldKind int

const (
	FieldNumeric FieldKind = iota
	FieldInteger
	FieldText
)

func (k FieldKind) String() string {
	switch k {
	case FieldNumeric:
		return "numeric"
	case FieldInteger:
		return "integer"
	case FieldText:
		return "text"
	default:
		return "unknown"
	}
}

// Field describes one logical field of a tab.
type Field struct {
	Name    string
	Aliases []string
	Rule    string
	Kind    FieldKind
}

// Candidates returns the column names that may hold the field, preferred first.
func (f Field) Candidates() []string {
	return append([]string{f.Name}, f.Aliases...)
}

// Tab describes where a tab's fields are stored.
// The property tab writes the deal header and has no fact pointer.
type Tab struct {
	Kind       TabKind
	Table      string
	FactColumn string
	Fields     []Field
	aliases    []string
	index      map[string]int
}

// IsHeader reports whether the tab writes the deal header instead of a dimension.
func (t Tab) IsHeader() bool {
	return t.Kind == TabProperty
}

// Field looks up a field by logical name.
func (t Tab) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.Fields[i], true
}

// IDColumns returns the canonical primary key names of the tab's table.
func (t Tab) IDColumns() []string {
	if t.IsHeader() {
		return DealIDColumns
	}
	return []string{"id", t.FactColumn, strings.TrimPrefix(t.Table, "dim_") + "_key"}
}

// PointerColumns returns the fact columns that may hold the tab's pointer.
func (t Tab) PointerColumns() []string {
	if t.IsHeader() {
		return nil
	}
	return []string{t.FactColumn, strings.TrimSuffix(t.FactColumn, "_id") + "_key"}
}

func newTab(kind TabKind, table, factColumn string, record any, aliases ...string) Tab {
	fields := fieldsOf(reflect.TypeOf(record))
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Name] = i
	}
	return Tab{
		Kind:       kind,
		Table:      table,
		FactColumn: factColumn,
		Fields:     fields,
		aliases:    aliases,
		index:      index,
	}
}

// fieldsOf derives field descriptors from db/aliases/validate struct tags.
// Embedded structs are flattened; untagged fields are skipped.
func fieldsOf(t reflect.Type) []Field {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous {
			fields = append(fields, fieldsOf(sf.Type)...)
			continue
		}
		name := sf.Tag.Get("db")
		if name == "" || name == "-" {
			continue
		}
		f := Field{Name: name, Rule: sf.Tag.Get("validate"), Kind: kindOf(sf.Type)}
		if aliases := sf.Tag.Get("aliases"); aliases != "" {
			f.Aliases = strings.Split(aliases, ",")
		}
		fields = append(fields, f)
	}
	return fields
}

func kindOf(t reflect.Type) FieldKind {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return FieldInteger
	case reflect.Float32, reflect.Float64:
		return FieldNumeric
	default:
		return FieldText
	}
}

// tabs is in canonical order: the header first, then dimensions in the order
// the aggregator merges them.
var tabs = []Tab{
	newTab(TabProperty, DealsTable, "", PropertyDetails{}),
	newTab(TabAcquisition, "dim_acquisition", "acquisition_id", AcquisitionAssumptions{}),
	newTab(TabFinancing, "dim_financing", "financing_id", FinancingAssumptions{}),
	newTab(TabDisposition, "dim_disposition", "disposition_id", DispositionAssumptions{}),
	newTab(TabCapitalExpense, "dim_capital_expense", "capital_expense_id", CapitalExpenseAssumptions{}, "capex"),
	newTab(TabInflation, "dim_inflation", "inflation_id", InflationAssumptions{}),
	newTab(TabPenetration, "dim_penetration", "penetration_id", PenetrationAssumptions{}),
	newTab(TabRevenue, "dim_revenue", "revenue_id", RevenueAssumptions{}),
	newTab(TabDeptExpense, "dim_departmental_expense", "departmental_expense_id", DepartmentalExpenseAssumptions{}, "departmental-expense"),
	newTab(TabMgmtFee, "dim_management_fee", "management_fee_id", ManagementFeeAssumptions{}, "management-fee"),
	newTab(TabUndist1, "dim_undistributed1", "undistributed1_id", Undistributed1Assumptions{}, "undistributed-1"),
	newTab(TabUndist2, "dim_undistributed2", "undistributed2_id", Undistributed2Assumptions{}, "undistributed-2"),
	newTab(TabNonOpExpense, "dim_nonoperating_expense", "nonoperating_expense_id", NonOperatingExpenseAssumptions{}, "non-operating-expense"),
	newTab(TabFFE, "dim_ffe_reserve", "ffe_reserve_id", FFEReserveAssumptions{}, "ffe-reserve"),
}

var tabsByName = func() map[string]int {
	m := make(map[string]int)
	for i, t := range tabs {
		m[string(t.Kind)] = i
		for _, a := range t.aliases {
			m[a] = i
		}
	}
	return m
}()

// ParseTab resolves a submitted tab name, accepting long aliases.
func ParseTab(name string) (Tab, bool) {
	i, ok := tabsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Tab{}, false
	}
	return tabs[i], true
}

// MustTab returns the descriptor of a known kind and panics otherwise.
func MustTab(kind TabKind) Tab {
	t, ok := ParseTab(string(kind))
	if !ok {
		panic("models: unknown tab " + string(kind))
	}
	return t
}

// Tabs returns all 14 tab descriptors in canonical order.
func Tabs() []Tab {
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	return out
}

// DimensionTabs returns the 13 tabs backed by a dimension table.
func DimensionTabs() []Tab {
	return Tabs()[1:]
}

// TabNames lists the canonical tab names.
func TabNames() []string {
	names := make([]string, 0, len(tabs))
	for _, t := range tabs {
		names = append(names, string(t.Kind))
	}
	return names
}
