package models

import (
	"time"
)

// Table names of the star schema.
const (
	DealsTable = "deals"
	FactTable  = "fact_deal_assumptions"
)

// Deal statuses accepted by the property tab.
const (
	StatusDraft    = "Draft"
	StatusActive   = "Active"
	StatusPending  = "Pending"
	StatusClosed   = "Closed"
	StatusArchived = "Archived"
)

// Canonical identifier and display-name columns, most preferred first.
// Older databases used property_key as the deal key.
var (
	DealIDColumns   = []string{"id", "deal_id", "property_key"}
	DealNameColumns = []string{"deal_name", "name", "property_name"}
	FactDealColumns = []string{"deal_id", "property_key", "deal_key"}
)

// Audit and link columns written only when the live table has them.
const (
	ColumnCreatedBy   = "created_by"
	ColumnUpdatedBy   = "updated_by"
	ColumnCreatedAt   = "created_at"
	ColumnUpdatedAt   = "updated_at"
	DimensionDealLink = "deal_id"
)

// PropertyDetails holds the mutable header fields written by the property tab.
// Nil means "not supplied".
type PropertyDetails struct {
	DealName        *string `db:"deal_name" aliases:"name" validate:"max=255" json:"deal_name,omitempty"`
	PropertyName    *string `db:"property_name" validate:"max=255" json:"property_name,omitempty"`
	PropertyAddress *string `db:"property_address" aliases:"address" validate:"max=500" json:"property_address,omitempty"`
	City            *string `db:"city" validate:"max=120" json:"city,omitempty"`
	State           *string `db:"state" validate:"max=64" json:"state,omitempty"`
	NumberOfRooms   *int64  `db:"number_of_rooms" aliases:"room_count,rooms" json:"number_of_rooms,omitempty"`
	PropertyType    *string `db:"property_type" aliases:"type" validate:"max=120" json:"property_type,omitempty"`
	Status          *string `db:"status" validate:"oneof=Draft Active Pending Closed Archived" json:"status,omitempty"`
}

// Deal is the header entity of an investment record.
type Deal struct {
	PropertyDetails
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	ID        int64     `db:"id" json:"id"`
}

// NewDeal is the input for creating a deal header.
type NewDeal struct {
	Fields map[string]any
	Actor  string
}

// AssumptionFact is the per-deal row pointing at the current record of each
// dimension. A nil pointer means the tab has never been saved.
type AssumptionFact struct {
	CreatedBy             *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy             *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt             *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt             *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	AcquisitionID         *int64     `db:"acquisition_id" json:"acquisition_id,omitempty"`
	FinancingID           *int64     `db:"financing_id" json:"financing_id,omitempty"`
	DispositionID         *int64     `db:"disposition_id" json:"disposition_id,omitempty"`
	CapitalExpenseID      *int64     `db:"capital_expense_id" json:"capital_expense_id,omitempty"`
	InflationID           *int64     `db:"inflation_id" json:"inflation_id,omitempty"`
	PenetrationID         *int64     `db:"penetration_id" json:"penetration_id,omitempty"`
	RevenueID             *int64     `db:"revenue_id" json:"revenue_id,omitempty"`
	DepartmentalExpenseID *int64     `db:"departmental_expense_id" json:"departmental_expense_id,omitempty"`
	ManagementFeeID       *int64     `db:"management_fee_id" json:"management_fee_id,omitempty"`
	Undistributed1ID      *int64     `db:"undistributed1_id" json:"undistributed1_id,omitempty"`
	Undistributed2ID      *int64     `db:"undistributed2_id" json:"undistributed2_id,omitempty"`
	NonOperatingExpenseID *int64     `db:"nonoperating_expense_id" json:"nonoperating_expense_id,omitempty"`
	FFEReserveID          *int64     `db:"ffe_reserve_id" json:"ffe_reserve_id,omitempty"`
	DealID                int64      `db:"deal_id" json:"deal_id"`
}

func (f *AssumptionFact) slot(kind TabKind) **int64 {
	switch kind {
	case TabAcquisition:
		return &f.AcquisitionID
	case TabFinancing:
		return &f.FinancingID
	case TabDisposition:
		return &f.DispositionID
	case TabCapitalExpense:
		return &f.CapitalExpenseID
	case TabInflation:
		return &f.InflationID
	case TabPenetration:
		return &f.PenetrationID
	case TabRevenue:
		return &f.RevenueID
	case TabDeptExpense:
		return &f.DepartmentalExpenseID
	case TabMgmtFee:
		return &f.ManagementFeeID
	case TabUndist1:
		return &f.Undistributed1ID
	case TabUndist2:
		return &f.Undistributed2ID
	case TabNonOpExpense:
		return &f.NonOperatingExpenseID
	case TabFFE:
		return &f.FFEReserveID
	default:
		return nil
	}
}

// Pointer returns the dimension id recorded for kind, if any.
func (f *AssumptionFact) Pointer(kind TabKind) (int64, bool) {
	p := f.slot(kind)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// SetPointer records id as the current dimension row for kind.
// It is a no-op for the property tab, which has no pointer.
func (f *AssumptionFact) SetPointer(kind TabKind, id int64) {
	if p := f.slot(kind); p != nil {
		*p = &id
	}
}

// PointerCount returns how many dimensions the fact row references.
func (f *AssumptionFact) PointerCount() int {
	n := 0
	for _, tab := range DimensionTabs() {
		if _, ok := f.Pointer(tab.Kind); ok {
			n++
		}
	}
	return n
}

// DealFromRecord builds a Deal from a header record keyed by logical field
// names. Missing or mistyped values are left unset.
func DealFromRecord(record map[string]any) Deal {
	var d Deal
	d.ID, _ = record["id"].(int64)
	d.DealName = stringField(record, "deal_name")
	d.PropertyName = stringField(record, "property_name")
	d.PropertyAddress = stringField(record, "property_address")
	d.City = stringField(record, "city")
	d.State = stringField(record, "state")
	d.PropertyType = stringField(record, "property_type")
	d.Status = stringField(record, "status")
	d.CreatedBy = stringField(record, ColumnCreatedBy)
	if rooms, ok := record["number_of_rooms"].(int64); ok {
		d.NumberOfRooms = &rooms
	}
	d.CreatedAt, _ = record[ColumnCreatedAt].(time.Time)
	d.UpdatedAt, _ = record[ColumnUpdatedAt].(time.Time)
	return d
}

func stringField(record map[string]any, key string) *string {
	if s, ok := record[key].(string); ok {
		return &s
	}
	return nil
}
