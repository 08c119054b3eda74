package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// Plan is a YAML description of one end-to-end market launch.
type Plan struct {
	Description PlanDescription `yaml:"description"`
	Oracle      PlanOracle      `yaml:"oracle"`
	Event       PlanEvent       `yaml:"event"`
	Market      PlanMarket      `yaml:"market"`
	Trades      []PlanTrade     `yaml:"trades"`
}

type PlanDescription struct {
	Title          string    `yaml:"title"`
	Description    string    `yaml:"description"`
	Outcomes       []string  `yaml:"outcomes"`
	ResolutionDate time.Time `yaml:"resolution_date"`
}

// PlanOracle selects the oracle. An ultimate oracle without a forwarded
// oracle forwards to a centralized oracle created from the description.
type PlanOracle struct {
	Kind              string `yaml:"kind"`
	ForwardedOracle   string `yaml:"forwarded_oracle"`
	SpreadMultiplier  uint8  `yaml:"spread_multiplier"`
	ChallengePeriod   uint64 `yaml:"challenge_period"`
	ChallengeAmount   string `yaml:"challenge_amount"`
	FrontRunnerPeriod uint64 `yaml:"front_runner_period"`
}

// PlanEvent describes the outcome space. A categorical event without an
// outcome count uses the number of description outcomes.
type PlanEvent struct {
	Kind         string `yaml:"kind"`
	OutcomeCount int    `yaml:"outcome_count"`
	LowerBound   string `yaml:"lower_bound"`
	UpperBound   string `yaml:"upper_bound"`
	Decimals     int32  `yaml:"decimals"`
}

type PlanMarket struct {
	Fee     uint32 `yaml:"fee"`
	Funding string `yaml:"funding"`
	// SkipFunding leaves the market unfunded.
	SkipFunding bool `yaml:"skip_funding"`
}

type PlanTrade struct {
	OutcomeIndex     int    `yaml:"outcome_index"`
	CollateralAmount string `yaml:"collateral_amount"`
}

// LoadPlan reads and decodes a plan file, rejecting unknown keys.
func LoadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plan: open %s: %w", path, err)
	}
	defer f.Close()
	return DecodePlan(f)
}

func DecodePlan(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("plan: decode: %w", err)
	}
	return &p, nil
}

// PlanRunner is the subset of the market service a plan drives.
type PlanRunner interface {
	PublishDescription(ctx context.Context, d domain.EventDescription) (domain.EventDescription, error)
	CreateOracle(ctx context.Context, o domain.Oracle) (domain.Oracle, error)
	CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
	CreateMarket(ctx context.Context, m domain.Market) (domain.Market, error)
	FundMarket(ctx context.Context, m domain.Market) (domain.Market, error)
	BuyShares(ctx context.Context, m domain.Market, outcomeIndex int, collateralAmount string) (domain.TradeResult, error)
}

// StepRow is one line of the pipeline summary.
type StepRow struct {
	Step   domain.Step
	Key    string
	TxHash string
	Note   string
}

// RunPlan executes the plan in order and stops at the first failure. The
// rows of every completed step are returned either way.
func RunPlan(ctx context.Context, svc PlanRunner, p *Plan) ([]StepRow, error) {
	var rows []StepRow

	desc, err := svc.PublishDescription(ctx, domain.EventDescription{
		Title:          p.Description.Title,
		Description:    p.Description.Description,
		Outcomes:       p.Description.Outcomes,
		ResolutionDate: p.Description.ResolutionDate,
	})
	if err != nil {
		return rows, err
	}
	rows = append(rows, StepRow{Step: domain.StepDescriptionPublished, Key: desc.ContentHash, Note: desc.Title})

	oracle, oracleRows, err := runOracle(ctx, svc, p.Oracle, desc.ContentHash)
	rows = append(rows, oracleRows...)
	if err != nil {
		return rows, err
	}

	ev := domain.Event{
		Kind:         domain.EventKind(p.Event.Kind),
		Oracle:       oracle.Address,
		OutcomeCount: p.Event.OutcomeCount,
		LowerBound:   p.Event.LowerBound,
		UpperBound:   p.Event.UpperBound,
		Decimals:     p.Event.Decimals,
	}
	if ev.OutcomeCount == 0 {
		ev.OutcomeCount = len(p.Description.Outcomes)
	}
	ev, err = svc.CreateEvent(ctx, ev)
	if err != nil {
		return rows, err
	}
	rows = append(rows, StepRow{Step: domain.StepEventCreated, Key: ev.Address, TxHash: ev.TxHash, Note: string(ev.Kind)})

	market, err := svc.CreateMarket(ctx, domain.Market{
		Event:   ev.Address,
		Fee:     p.Market.Fee,
		Funding: p.Market.Funding,
	})
	if err != nil {
		return rows, err
	}
	rows = append(rows, StepRow{Step: domain.StepMarketCreated, Key: market.Address, TxHash: market.TxHash, Note: "fee " + strconv.FormatUint(uint64(market.Fee), 10)})

	if !p.Market.SkipFunding {
		market, err = svc.FundMarket(ctx, market)
		if err != nil {
			return rows, err
		}
		rows = append(rows, StepRow{Step: domain.StepMarketFunded, Key: market.Address, TxHash: market.FundTxHash, Note: "funding " + market.Funding})
	}

	for _, t := range p.Trades {
		res, err := svc.BuyShares(ctx, market, t.OutcomeIndex, t.CollateralAmount)
		if err != nil {
			return rows, err
		}
		rows = append(rows, StepRow{
			Step:   domain.StepSharesBought,
			Key:    market.Address,
			TxHash: res.TxHash,
			Note:   fmt.Sprintf("outcome %d: %s tokens", res.OutcomeIndex, res.OutcomeTokenCount),
		})
	}
	return rows, nil
}

func runOracle(ctx context.Context, svc PlanRunner, po PlanOracle, contentHash string) (domain.Oracle, []StepRow, error) {
	kind, err := domain.ParseOracleKind(po.Kind)
	if err != nil {
		return domain.Oracle{}, nil, err
	}

	var rows []StepRow
	forwarded := po.ForwardedOracle
	if kind == domain.OracleCentralized || forwarded == "" {
		o, err := svc.CreateOracle(ctx, domain.Oracle{Kind: domain.OracleCentralized, ContentHash: contentHash})
		if err != nil {
			return domain.Oracle{}, rows, err
		}
		rows = append(rows, StepRow{Step: domain.StepOracleCreated, Key: o.Address, TxHash: o.TxHash, Note: string(o.Kind)})
		if kind == domain.OracleCentralized {
			return o, rows, nil
		}
		forwarded = o.Address
	}

	o, err := svc.CreateOracle(ctx, domain.Oracle{
		Kind: domain.OracleUltimate,
		Ultimate: &domain.UltimateOracleParams{
			ForwardedOracle:   forwarded,
			SpreadMultiplier:  po.SpreadMultiplier,
			ChallengePeriod:   po.ChallengePeriod,
			ChallengeAmount:   po.ChallengeAmount,
			FrontRunnerPeriod: po.FrontRunnerPeriod,
		},
	})
	if err != nil {
		return domain.Oracle{}, rows, err
	}
	rows = append(rows, StepRow{Step: domain.StepOracleCreated, Key: o.Address, TxHash: o.TxHash, Note: string(o.Kind)})
	return o, rows, nil
}

// RenderSummary prints rows as a table.
func RenderSummary(w io.Writer, rows []StepRow) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Step", "Address / Hash", "Tx", "Note")
	for i, r := range rows {
		if err := table.Append(strconv.Itoa(i+1), string(r.Step), r.Key, r.TxHash, r.Note); err != nil {
			return fmt.Errorf("plan: summary row %d: %w", i+1, err)
		}
	}
	return table.Render()
}
