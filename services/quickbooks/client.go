// Package quickbooks reads accounting data from the QuickBooks Online API on
// behalf of one agent session. All reads go through the realm-scoped query
// endpoint; every payload is validated before it leaves the service.
package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/giantswarm/mcp-backoffice/session"
	"github.com/giantswarm/mcp-backoffice/upstream"
)

// DefaultBaseURL is the production QuickBooks Online API host.
const DefaultBaseURL = "https://quickbooks.api.intuit.com"

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Service reads company, invoice, and customer data for one realm.
type Service struct {
	executor *upstream.Executor
	baseURL  string
	realmID  string
	logger   *slog.Logger
}

// Config holds QuickBooks service configuration.
type Config struct {
	// Executor issues the authenticated API calls.
	Executor *upstream.Executor

	// RealmID is the QuickBooks company realm all reads are scoped to.
	RealmID string

	// BaseURL overrides the API host (default: production). Sandbox realms
	// use https://sandbox-quickbooks.api.intuit.com.
	BaseURL string

	// Logger for structured logging (optional).
	Logger *slog.Logger
}

// New creates a QuickBooks service for one realm.
func New(cfg Config) (*Service, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.RealmID == "" {
		return nil, fmt.Errorf("realm ID is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		executor: cfg.Executor,
		baseURL:  baseURL,
		realmID:  cfg.RealmID,
		logger:   logger,
	}, nil
}

// companyInfoEnvelope is the response wrapper of the companyinfo endpoint.
type companyInfoEnvelope struct {
	CompanyInfo json.RawMessage `json:"CompanyInfo"`
	Time        string          `json:"time"`
}

// queryEnvelope is the response wrapper of the query endpoint. The inner
// QueryResponse carries exactly one resource array per query.
type queryEnvelope struct {
	QueryResponse queryResponse `json:"QueryResponse"`
	Time          string        `json:"time"`
}

type queryResponse struct {
	Invoice       []json.RawMessage `json:"Invoice"`
	Customer      []json.RawMessage `json:"Customer"`
	StartPosition int               `json:"startPosition"`
	MaxResults    int               `json:"maxResults"`
	TotalCount    int               `json:"totalCount"`
}

// CompanyInfo returns the profile of the connected realm.
func (s *Service) CompanyInfo(ctx context.Context, cred *session.Credential) (*CompanyInfo, error) {
	u := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s", s.baseURL, s.realmID, s.realmID)

	body, err := s.executor.Get(ctx, u, cred)
	if err != nil {
		return nil, err
	}

	var env companyInfoEnvelope
	if err := upstream.DecodeStrict(body, "company info envelope", &env); err != nil {
		return nil, err
	}

	var info CompanyInfo
	if err := upstream.Decode(env.CompanyInfo, "company info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Invoices returns one page of invoices, sorted by due date descending.
// page is zero-based; QuickBooks positions start at 1.
func (s *Service) Invoices(ctx context.Context, cred *session.Credential, page, pageSize int) ([]Invoice, error) {
	rows, err := s.query(ctx, cred, "SELECT * FROM Invoice ORDERBY DueDate DESC", page, pageSize)
	if err != nil {
		return nil, err
	}

	invoices := make([]Invoice, 0, len(rows.Invoice))
	for _, raw := range rows.Invoice {
		var inv Invoice
		if err := upstream.Decode(raw, "invoice", &inv); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}

	s.logger.Debug("Fetched invoices", "realm_id", s.realmID, "page", page, "count", len(invoices))
	return invoices, nil
}

// Customers returns one page of customers, sorted by display name.
func (s *Service) Customers(ctx context.Context, cred *session.Credential, page, pageSize int) ([]Customer, error) {
	rows, err := s.query(ctx, cred, "SELECT * FROM Customer ORDERBY DisplayName", page, pageSize)
	if err != nil {
		return nil, err
	}

	customers := make([]Customer, 0, len(rows.Customer))
	for _, raw := range rows.Customer {
		var cust Customer
		if err := upstream.Decode(raw, "customer", &cust); err != nil {
			return nil, err
		}
		customers = append(customers, cust)
	}

	s.logger.Debug("Fetched customers", "realm_id", s.realmID, "page", page, "count", len(customers))
	return customers, nil
}

// query runs one paged statement against the realm's query endpoint and
// returns the decoded inner response.
func (s *Service) query(ctx context.Context, cred *session.Credential, statement string, page, pageSize int) (*queryResponse, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	stmt := fmt.Sprintf("%s STARTPOSITION %d MAXRESULTS %d", statement, page*pageSize+1, pageSize)
	u := fmt.Sprintf("%s/v3/company/%s/query?query=%s", s.baseURL, s.realmID, url.QueryEscape(stmt))

	body, err := s.executor.Get(ctx, u, cred)
	if err != nil {
		return nil, err
	}

	var env queryEnvelope
	if err := upstream.DecodeStrict(body, "query envelope", &env); err != nil {
		return nil, err
	}
	return &env.QueryResponse, nil
}
