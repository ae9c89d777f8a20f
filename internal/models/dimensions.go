package models

// Dimension records, one struct per tab. The db tags are the pinned column
// layout of each dim_* table; nil fields are "not yet specified".
// Rates and percentages are stored as percent values (8.5 means 8.5%).

// AcquisitionAssumptions is the dim_acquisition record.
type AcquisitionAssumptions struct {
	PurchasePrice    *float64 `db:"purchase_price" json:"purchase_price,omitempty"`
	ClosingCostsPct  *float64 `db:"closing_costs_pct" json:"closing_costs_pct,omitempty"`
	AcquisitionCosts *float64 `db:"acquisition_costs" json:"acquisition_costs,omitempty"`
	CapRateGoingIn   *float64 `db:"cap_rate_going_in" json:"cap_rate_going_in,omitempty"`
	HoldPeriod       *int64   `db:"hold_period" json:"hold_period,omitempty"`
	AcquisitionMonth *int64   `db:"acquisition_month" json:"acquisition_month,omitempty"`
	AcquisitionYear  *int64   `db:"acquisition_year" json:"acquisition_year,omitempty"`
}

// FinancingAssumptions is the dim_financing record.
type FinancingAssumptions struct {
	LoanToValue        *float64 `db:"loan_to_value" json:"loan_to_value,omitempty"`
	LoanAmount         *float64 `db:"loan_amount" json:"loan_amount,omitempty"`
	InterestRate       *float64 `db:"interest_rate" json:"interest_rate,omitempty"`
	LoanTerm           *int64   `db:"loan_term" json:"loan_term,omitempty"`
	AmortizationPeriod *int64   `db:"amortization_period" json:"amortization_period,omitempty"`
	NumLoans           *int64   `db:"num_loans" json:"num_loans,omitempty"`
	OriginationFeePct  *float64 `db:"origination_fee_pct" json:"origination_fee_pct,omitempty"`
}

// DispositionAssumptions is the dim_disposition record.
type DispositionAssumptions struct {
	ExitCapRate      *float64 `db:"exit_cap_rate" json:"exit_cap_rate,omitempty"`
	SalesExpensePct  *float64 `db:"sales_expense_pct" json:"sales_expense_pct,omitempty"`
	DispositionMonth *int64   `db:"disposition_month" json:"disposition_month,omitempty"`
	DispositionYear  *int64   `db:"disposition_year" json:"disposition_year,omitempty"`
}

// CapitalExpenseAssumptions is the dim_capital_expense record.
type CapitalExpenseAssumptions struct {
	CapexBudget         *float64 `db:"capex_budget" json:"capex_budget,omitempty"`
	CapexPerRoom        *float64 `db:"capex_per_room" json:"capex_per_room,omitempty"`
	RenovationMonths    *int64   `db:"renovation_months" json:"renovation_months,omitempty"`
	CapexContingencyPct *float64 `db:"capex_contingency_pct" json:"capex_contingency_pct,omitempty"`
}

// InflationAssumptions is the dim_inflation record.
type InflationAssumptions struct {
	InflationRateGeneral  *float64 `db:"inflation_rate_general" json:"inflation_rate_general,omitempty"`
	InflationRateRevenue  *float64 `db:"inflation_rate_revenue" json:"inflation_rate_revenue,omitempty"`
	InflationRateExpenses *float64 `db:"inflation_rate_expenses" json:"inflation_rate_expenses,omitempty"`
	InflationYears        *int64   `db:"inflation_years" json:"inflation_years,omitempty"`
}

// PenetrationAssumptions is the dim_penetration record.
type PenetrationAssumptions struct {
	CompName              *string  `db:"comp_name" validate:"max=255" json:"comp_name,omitempty"`
	CompNumberOfRooms     *int64   `db:"comp_number_of_rooms" json:"comp_number_of_rooms,omitempty"`
	MarketOccupancyPct    *float64 `db:"market_occupancy_pct" json:"market_occupancy_pct,omitempty"`
	MarketPenetrationPct  *float64 `db:"market_penetration_pct" json:"market_penetration_pct,omitempty"`
	OccupiedRoomGrowthPct *float64 `db:"occupied_room_growth_pct" json:"occupied_room_growth_pct,omitempty"`
	PropertyOccupancyPct  *float64 `db:"property_occupancy_pct" json:"property_occupancy_pct,omitempty"`
}

// RevenueAssumptions is the dim_revenue record.
type RevenueAssumptions struct {
	ADRBase                     *float64 `db:"adr_base" json:"adr_base,omitempty"`
	ADRGrowthPct                *float64 `db:"adr_growth_pct" json:"adr_growth_pct,omitempty"`
	FnBRevenuePerOccupiedRoom   *float64 `db:"fnb_revenue_per_occupied_room" json:"fnb_revenue_per_occupied_room,omitempty"`
	OtherRevenuePerOccupiedRoom *float64 `db:"other_revenue_per_occupied_room" json:"other_revenue_per_occupied_room,omitempty"`
	OtherRevenuePct             *float64 `db:"other_revenue_pct" json:"other_revenue_pct,omitempty"`
}

// DepartmentalExpenseAssumptions is the dim_departmental_expense record.
type DepartmentalExpenseAssumptions struct {
	RoomsExpensePct     *float64 `db:"rooms_expense_pct" json:"rooms_expense_pct,omitempty"`
	FnBExpensePct       *float64 `db:"fnb_expense_pct" json:"fnb_expense_pct,omitempty"`
	OtherDeptExpensePct *float64 `db:"other_dept_expense_pct" json:"other_dept_expense_pct,omitempty"`
}

// ManagementFeeAssumptions is the dim_management_fee record.
type ManagementFeeAssumptions struct {
	BaseManagementFeePct      *float64 `db:"base_management_fee_pct" json:"base_management_fee_pct,omitempty"`
	IncentiveManagementFeePct *float64 `db:"incentive_management_fee_pct" json:"incentive_management_fee_pct,omitempty"`
	FranchiseFeePct           *float64 `db:"franchise_fee_pct" json:"franchise_fee_pct,omitempty"`
}

// Undistributed1Assumptions is the dim_undistributed1 record.
type Undistributed1Assumptions struct {
	AdminGeneralPct           *float64 `db:"admin_general_pct" json:"admin_general_pct,omitempty"`
	SalesMarketingPct         *float64 `db:"sales_marketing_pct" json:"sales_marketing_pct,omitempty"`
	PropertyOpsMaintenancePct *float64 `db:"property_ops_maintenance_pct" json:"property_ops_maintenance_pct,omitempty"`
}

// Undistributed2Assumptions is the dim_undistributed2 record.
type Undistributed2Assumptions struct {
	UtilitiesPct          *float64 `db:"utilities_pct" json:"utilities_pct,omitempty"`
	ITSystemsPct          *float64 `db:"it_systems_pct" json:"it_systems_pct,omitempty"`
	UndistributedOtherPct *float64 `db:"undistributed_other_pct" json:"undistributed_other_pct,omitempty"`
}

// NonOperatingExpenseAssumptions is the dim_nonoperating_expense record.
type NonOperatingExpenseAssumptions struct {
	PropertyTaxes     *float64 `db:"property_taxes" json:"property_taxes,omitempty"`
	Insurance         *float64 `db:"insurance" json:"insurance,omitempty"`
	GroundRent        *float64 `db:"ground_rent" json:"ground_rent,omitempty"`
	OtherNonOpExpense *float64 `db:"other_nonop_expense" json:"other_nonop_expense,omitempty"`
}

// FFEReserveAssumptions is the dim_ffe_reserve record.
type FFEReserveAssumptions struct {
	FFEReservePct       *float64 `db:"ffe_reserve_pct" json:"ffe_reserve_pct,omitempty"`
	FFEReserveStartYear *int64   `db:"ffe_reserve_start_year" json:"ffe_reserve_start_year,omitempty"`
}
