// Command bvctl runs compensation jobs and inspects participants from a shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/sudo-init-do/binaryhub/internal/alerts"
	"github.com/sudo-init-do/binaryhub/internal/auth"
	"github.com/sudo-init-do/binaryhub/internal/compensation"
	"github.com/sudo-init-do/binaryhub/internal/config"
	"github.com/sudo-init-do/binaryhub/internal/db"
	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/repository"
)

func main() {
	app := &cli.App{
		Name:  "bvctl",
		Usage: "binary volume compensation operations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "remainder", Usage: "remainder policy (consume_all or retain_remainder)"},
			&cli.IntFlag{Name: "workers", Usage: "batch reconciliation workers"},
		},
		Commands: []*cli.Command{
			{
				Name:   "process-all",
				Usage:  "reconcile matches for every active participant",
				Action: withService(processAll),
			},
			{
				Name:      "force-match",
				Usage:     "reconcile matches for one participant",
				ArgsUsage: "<participant-id>",
				Action:    withService(forceMatch),
			},
			{
				Name:      "summary",
				Usage:     "print a participant's volume summary",
				ArgsUsage: "<participant-id>",
				Action:    withService(summary),
			},
			{
				Name:      "activate",
				Usage:     "activate a participant and distribute its contribution",
				ArgsUsage: "<participant-id>",
				Action:    withService(activate),
			},
			{
				Name:      "token",
				Usage:     "issue a signed access token",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Value: "participant"},
					&cli.DurationFlag{Name: "ttl", Value: auth.DefaultTTL},
				},
				Action: issueToken,
			},
			{
				Name:  "simulate",
				Usage: "build a full binary tree in memory, activate it and print the outcome",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "depth", Value: 3, Usage: "tree depth below the root"},
					&cli.Int64Flag{Name: "bv-value", Value: 10, Usage: "plan value per matched unit"},
				},
				Action: simulate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func compensationConfig(c *cli.Context, base config.Compensation) (config.Compensation, error) {
	return base.Override(c.String("remainder"), c.Int("workers"))
}

type serviceAction func(c *cli.Context, svc *compensation.Service) error

// withService connects to Postgres and hands the action a ready service.
func withService(action serviceAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		comp, err := compensationConfig(c, cfg.Compensation)
		if err != nil {
			return err
		}
		log, err := logger.NewLogger(cfg.Development)
		if err != nil {
			return err
		}
		defer log.Sync()

		pool, err := db.Init(c.Context, cfg.DSN(), log)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := repository.NewRetrying(
			repository.NewPostgresDB(pool, cfg.DBLockTimeout, log),
			cfg.TxMaxAttempts, cfg.TxRetryDelay, log,
		)
		svc := compensation.NewService(store, comp, alerts.Nop{}, log)
		return action(c, svc)
	}
}

func participantArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one participant id")
	}
	return c.Args().First(), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func processAll(c *cli.Context, svc *compensation.Service) error {
	report, err := svc.ProcessAllParticipants(c.Context)
	if report != nil {
		if perr := printJSON(report); perr != nil {
			return perr
		}
	}
	return err
}

func forceMatch(c *cli.Context, svc *compensation.Service) error {
	id, err := participantArg(c)
	if err != nil {
		return err
	}
	res, err := svc.ForceProcessMatches(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func summary(c *cli.Context, svc *compensation.Service) error {
	id, err := participantArg(c)
	if err != nil {
		return err
	}
	s, err := svc.GetSummary(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(s)
}

func activate(c *cli.Context, svc *compensation.Service) error {
	id, err := participantArg(c)
	if err != nil {
		return err
	}
	res, err := svc.ActivateAccount(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func issueToken(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one user id")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	token, err := auth.IssueToken(cfg.JWTSecret, c.Args().First(), c.String("role"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type simulatedNode struct {
	Username string `json:"username"`
	Sponsor  string `json:"sponsor,omitempty"`
	Side     string `json:"side,omitempty"`
	Left     int64  `json:"carry_left"`
	Right    int64  `json:"carry_right"`
	Earned   string `json:"total_income"`
}

// simulate registers a complete tree of the given depth, approves a plan
// payment for each participant in registration order and prints the
// resulting carry and income per participant.
func simulate(c *cli.Context) error {
	depth := c.Int("depth")
	if depth < 0 || depth > 10 {
		return fmt.Errorf("depth must be between 0 and 10")
	}
	comp, err := compensationConfig(c, config.DefaultCompensation())
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(true)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc := compensation.NewService(repository.NewMemory(), comp, alerts.Nop{}, log)
	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	plan, err := svc.CreatePlan(ctx, "simulation", decimal.NewFromInt(100), decimal.NewFromInt(c.Int64("bv-value")))
	if err != nil {
		return err
	}

	root, err := svc.RegisterParticipant(ctx, compensation.RegisterRequest{Username: "n0", Email: "n0@example.com"})
	if err != nil {
		return err
	}
	order := []string{root.ID}
	nodes := []simulatedNode{{Username: root.Username}}
	level := []string{root.Username}
	for d := 0; d < depth; d++ {
		var next []string
		for _, sponsor := range level {
			for _, side := range []string{"left", "right"} {
				name := fmt.Sprintf("n%d", len(nodes))
				p, err := svc.RegisterParticipant(ctx, compensation.RegisterRequest{
					Username: name, Email: name + "@example.com", Sponsor: sponsor, Side: side,
				})
				if err != nil {
					return err
				}
				order = append(order, p.ID)
				nodes = append(nodes, simulatedNode{Username: name, Sponsor: sponsor, Side: side})
				next = append(next, name)
			}
		}
		level = next
	}

	for i, id := range order {
		if _, err := svc.ApprovePayment(ctx, compensation.PaymentApproved{
			ParticipantID: id, PlanID: plan.ID, PaymentID: fmt.Sprintf("sim-%d", i),
		}); err != nil {
			return err
		}
	}

	for i, id := range order {
		s, err := svc.GetSummary(ctx, id)
		if err != nil {
			return err
		}
		w, err := svc.WalletBalance(ctx, id)
		if err != nil {
			return err
		}
		nodes[i].Left, nodes[i].Right = s.CarryLeft, s.CarryRight
		nodes[i].Earned = w.TotalEarned.StringFixed(2)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"participants": nodes, "stats": stats})
}
