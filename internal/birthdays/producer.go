// Package birthdays produces one work item per client whose birthday is
// today. Candidates come from the client_by_email_dob query; each one is
// reloaded with its full master data and enriched with emails, employees
// and optionally a salutation.
package birthdays

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/database"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/enrich"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
)

// WorkItem is handed to the consumer that sends the congratulations
type WorkItem struct {
	Client *models.Client `json:"client"`
}

// Candidate identifies a client whose birthday is today
type Candidate struct {
	BMDID     string
	CompanyID int64
	DOB       time.Time
}

// Source is the subset of the query facade the producer needs
type Source interface {
	enrich.Source
	ClientsWithEmailAndDOB(ctx context.Context) iter.Seq2[database.Record, error]
	ClientFromFrist(ctx context.Context, lookup database.ClientLookup) (*models.Client, error)
}

// Options controls the enrichment of each work item
type Options struct {
	Employees enrich.EmployeeOptions

	// EmailAdressart selects emails by address type; empty uses the display email
	EmailAdressart string

	// DefaultSalutation and SalutationFreifeld set the client salutation;
	// a contact person salutation replaces it
	DefaultSalutation  string
	SalutationFreifeld string

	// ContactPersonType enables the contact person salutation when set
	ContactPersonType       models.ContactPersonType
	ContactPersonIdentifier string
}

// DefaultOptions matches the producer's historic behavior: display email,
// main case handler only.
func DefaultOptions() Options {
	return Options{
		Employees: enrich.EmployeeOptions{
			Sachbearbeiter: models.SachbearbeiterHaupt,
			Mode:           models.ModeDefault,
		},
	}
}

// Producer builds birthday work items
type Producer struct {
	src      Source
	enricher *enrich.Enricher
	opts     Options
	now      func() time.Time
	logger   *slog.Logger
	progress func(done, total int)
}

// Option configures a Producer
type Option func(*Producer)

// WithClock sets the source of "today"
func WithClock(now func() time.Time) Option {
	return func(p *Producer) { p.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// WithProgress is called after each enriched candidate
func WithProgress(fn func(done, total int)) Option {
	return func(p *Producer) { p.progress = fn }
}

// New creates a Producer
func New(src Source, opts Options, options ...Option) *Producer {
	p := &Producer{
		src:      src,
		enricher: enrich.New(src),
		opts:     opts,
		now:      time.Now,
		logger:   slog.Default(),
		progress: func(int, int) {},
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// IsBirthday reports whether dob falls on today's day and month.
// 29 February only matches on 29 February.
func IsBirthday(dob, today time.Time) bool {
	return dob.Day() == today.Day() && dob.Month() == today.Month()
}

// Candidates streams the clients with email and birth date and keeps those
// whose birthday is today. A client listed with several emails is returned once.
func (p *Producer) Candidates(ctx context.Context) ([]Candidate, error) {
	today := p.now()
	seen := make(map[string]bool)
	var candidates []Candidate

	for rec, err := range p.src.ClientsWithEmailAndDOB(ctx) {
		if err != nil {
			return nil, fmt.Errorf("stream birthday candidates: %w", err)
		}

		id := rec.String("bmd_id")
		dob, ok := rec.Time("dob")
		if !ok {
			p.logger.Debug("skipping client without readable dob", "bmd_id", id)
			continue
		}
		if !IsBirthday(dob, today) || seen[id] {
			continue
		}
		companyID, ok := rec.Int64("bmd_company_id")
		if !ok {
			p.logger.Warn("skipping client without company id", "bmd_id", id)
			continue
		}

		seen[id] = true
		candidates = append(candidates, Candidate{BMDID: id, CompanyID: companyID, DOB: dob})
	}

	return candidates, nil
}

// Produce returns one enriched work item per birthday candidate
func (p *Producer) Produce(ctx context.Context) ([]WorkItem, error) {
	candidates, err := p.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("birthday candidates found",
		"count", len(candidates),
		"date", p.now().Format("2006-01-02"))

	items := make([]WorkItem, 0, len(candidates))
	for i, cand := range candidates {
		item, err := p.workItem(ctx, cand)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, *item)
		}
		p.progress(i+1, len(candidates))
	}

	return items, nil
}

func (p *Producer) workItem(ctx context.Context, cand Candidate) (*WorkItem, error) {
	client, err := p.src.ClientFromFrist(ctx, database.ByClientID{ClientID: cand.BMDID, CompanyID: cand.CompanyID})
	if err != nil {
		return nil, fmt.Errorf("load client %s: %w", cand.BMDID, err)
	}
	if client == nil {
		p.logger.Warn("birthday client not found", "bmd_id", cand.BMDID, "company_id", cand.CompanyID)
		return nil, nil
	}

	if p.opts.EmailAdressart != "" {
		err = p.enricher.SetEmailsByAdressart(ctx, client, p.opts.EmailAdressart)
	} else {
		err = p.enricher.SetDisplayEmails(ctx, client)
	}
	if err != nil {
		return nil, err
	}

	if p.opts.DefaultSalutation != "" || p.opts.SalutationFreifeld != "" {
		if err := p.enricher.SetSalutation(ctx, client, p.opts.DefaultSalutation, p.opts.SalutationFreifeld); err != nil {
			return nil, err
		}
	}

	if p.opts.ContactPersonType != "" {
		if err := p.enricher.SetContactPersonSalutation(ctx, client, p.opts.ContactPersonType, p.opts.ContactPersonIdentifier); err != nil {
			return nil, err
		}
	}

	if err := p.enricher.SetEmployees(ctx, client, p.opts.Employees); err != nil {
		return nil, err
	}

	return &WorkItem{Client: client}, nil
}

// WriteJSON writes the work items as an indented JSON array
func WriteJSON(w io.Writer, items []WorkItem) error {
	if items == nil {
		items = []WorkItem{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode work items: %w", err)
	}
	return nil
}
