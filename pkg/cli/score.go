package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/leadpulse/pkg/score"
	"github.com/urfave/cli/v3"
)

const (
	industryFlagName   = "industry"
	sourceFlagName     = "source"
	titleFlagName      = "title"
	engagementFlagName = "engagement"
	daysFlagName       = "days"
	aovFlagName        = "aov"
	frequencyFlagName  = "frequency"
	lifespanFlagName   = "lifespan"
	marginFlagName     = "margin"
)

func newScoreCmd() *cli.Command {
	return &cli.Command{
		Name:            "score",
		Usage:           "Runs the predictive scores",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "lead",
				Usage:  "Predicts a lead score in [0,100]",
				Action: cmdScoreLead,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: industryFlagName, Usage: "Lead industry"},
					&cli.StringFlag{Name: sourceFlagName, Usage: "Lead source"},
					&cli.StringFlag{Name: titleFlagName, Usage: "Contact title"},
					&cli.StringFlag{Name: engagementFlagName, Usage: "Engagement level"},
					&cli.IntFlag{Name: daysFlagName, Usage: "Days since last activity"},
					&cli.Uint64Flag{Name: seedFlagName, Usage: "Random seed (default: from config)"},
				},
			},
			{
				Name:   "clv",
				Usage:  "Calculates customer lifetime value",
				Action: cmdScoreCLV,
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: aovFlagName, Usage: "Average order value (default: from config)"},
					&cli.FloatFlag{Name: frequencyFlagName, Usage: "Purchases per year (default: from config)"},
					&cli.FloatFlag{Name: lifespanFlagName, Usage: "Customer lifespan in years (default: from config)"},
					&cli.FloatFlag{Name: marginFlagName, Usage: "Profit margin (default: from config)"},
				},
			},
			{
				Name:   "churn",
				Usage:  "Predicts churn probability",
				Action: cmdScoreChurn,
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: daysFlagName, Usage: "Days since last purchase (default: from config)"},
					&cli.FloatFlag{Name: frequencyFlagName, Usage: "Purchases per year (default: from config)"},
				},
			},
		},
	}
}

type leadScoreResult struct {
	Attributes score.LeadAttributes `json:"attributes" yaml:"attributes"`
	LeadScore  int                  `json:"lead_score" yaml:"leadScore"`
}

type clvResult struct {
	Params score.CLVParams `json:"params" yaml:"params"`
	CLV    float64         `json:"clv" yaml:"clv"`
}

type churnResult struct {
	Params           score.ChurnParams `json:"params" yaml:"params"`
	ChurnProbability float64           `json:"churn_probability" yaml:"churnProbability"`
}

func cmdScoreLead(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	seed := cfg.Config.Dataset.Seed
	if cmd.IsSet(seedFlagName) {
		seed = cmd.Uint64(seedFlagName)
	}
	if cmd.Int(daysFlagName) < 0 {
		return fmt.Errorf("days since activity must not be negative: %w", score.ErrInvalidInput)
	}

	attrs := score.LeadAttributes{
		Industry:          cmd.String(industryFlagName),
		LeadSource:        cmd.String(sourceFlagName),
		ContactTitle:      cmd.String(titleFlagName),
		EngagementLevel:   cmd.String(engagementFlagName),
		DaysSinceActivity: cmd.Int(daysFlagName),
	}

	e := score.NewEngine(seed)
	return printResult(cmd, &leadScoreResult{
		Attributes: attrs,
		LeadScore:  e.PredictLeadScore(attrs),
	})
}

func cmdScoreCLV(_ context.Context, cmd *cli.Command) error {
	p := getConfig(cmd).Config.Scoring.CLV
	floatFromFlag(cmd, aovFlagName, &p.AvgOrderValue)
	floatFromFlag(cmd, frequencyFlagName, &p.PurchaseFrequency)
	floatFromFlag(cmd, lifespanFlagName, &p.LifespanYears)
	floatFromFlag(cmd, marginFlagName, &p.ProfitMargin)

	if err := p.Validate(); err != nil {
		return err
	}
	return printResult(cmd, &clvResult{Params: p, CLV: score.CalculateCLV(p)})
}

func cmdScoreChurn(_ context.Context, cmd *cli.Command) error {
	p := getConfig(cmd).Config.Scoring.Churn
	floatFromFlag(cmd, daysFlagName, &p.DaysSinceLastPurchase)
	floatFromFlag(cmd, frequencyFlagName, &p.PurchaseFrequency)

	if err := p.Validate(); err != nil {
		return err
	}
	return printResult(cmd, &churnResult{Params: p, ChurnProbability: score.PredictChurnProbability(p)})
}

// floatFromFlag overrides v only when the flag was set explicitly.
func floatFromFlag(cmd *cli.Command, name string, v *float64) {
	if cmd.IsSet(name) {
		*v = cmd.Float(name)
	}
}
