package quickbooks

import "fmt"

// CompanyInfo is the company profile of the connected QuickBooks realm.
type CompanyInfo struct {
	ID                   string `json:"Id"`
	CompanyName          string `json:"CompanyName"`
	LegalName            string `json:"LegalName,omitempty"`
	Country              string `json:"Country,omitempty"`
	CompanyAddr          *Addr  `json:"CompanyAddr,omitempty"`
	Email                *Email `json:"Email,omitempty"`
	FiscalYearStartMonth string `json:"FiscalYearStartMonth,omitempty"`
}

// Validate checks the required CompanyInfo fields.
func (c *CompanyInfo) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("missing Id")
	}
	if c.CompanyName == "" {
		return fmt.Errorf("missing CompanyName")
	}
	return nil
}

// Addr is a QuickBooks postal address.
type Addr struct {
	Line1                  string `json:"Line1,omitempty"`
	City                   string `json:"City,omitempty"`
	CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
	PostalCode             string `json:"PostalCode,omitempty"`
}

// Email is a QuickBooks email address wrapper.
type Email struct {
	Address string `json:"Address,omitempty"`
}

// Ref is a QuickBooks entity reference (id plus display name).
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

// Invoice is one invoice row of the connected realm.
type Invoice struct {
	ID          string  `json:"Id"`
	DocNumber   string  `json:"DocNumber,omitempty"`
	TxnDate     string  `json:"TxnDate,omitempty"`
	DueDate     string  `json:"DueDate,omitempty"`
	TotalAmt    float64 `json:"TotalAmt"`
	Balance     float64 `json:"Balance"`
	CustomerRef *Ref    `json:"CustomerRef,omitempty"`
}

// Validate checks the required Invoice fields.
func (i *Invoice) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("missing Id")
	}
	return nil
}

// Customer is one customer row of the connected realm.
type Customer struct {
	ID               string  `json:"Id"`
	DisplayName      string  `json:"DisplayName"`
	CompanyName      string  `json:"CompanyName,omitempty"`
	Active           bool    `json:"Active,omitempty"`
	Balance          float64 `json:"Balance,omitempty"`
	PrimaryEmailAddr *Email  `json:"PrimaryEmailAddr,omitempty"`
}

// Validate checks the required Customer fields.
func (c *Customer) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("missing Id")
	}
	if c.DisplayName == "" {
		return fmt.Errorf("missing DisplayName")
	}
	return nil
}
